package repository

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestBuildProspectListWhere(t *testing.T) {
	scope := uuid.New()
	status := "qualified"
	minScore := 70

	where, args, next := buildProspectListWhere(ListParams{
		ScopeUserID: &scope,
		Status:      &status,
		MinScore:    &minScore,
		Search:      "dupont",
	})

	for _, fragment := range []string{
		"deleted_at IS NULL",
		"assigned_to = $1",
		"status = $2",
		"score >= $3",
		"first_name ILIKE $4 OR last_name ILIKE $4",
	} {
		if !strings.Contains(where, fragment) {
			t.Errorf("expected %q in %q", fragment, where)
		}
	}
	if len(args) != 4 || next != 5 {
		t.Fatalf("expected 4 args and next index 5, got %d and %d", len(args), next)
	}
	if args[3] != "%dupont%" {
		t.Fatalf("expected search pattern, got %v", args[3])
	}
}

func TestBuildProspectListWhereDefaults(t *testing.T) {
	where, args, next := buildProspectListWhere(ListParams{})
	if where != "deleted_at IS NULL" || len(args) != 0 || next != 1 {
		t.Fatalf("unexpected defaults: %q %v %d", where, args, next)
	}
}

func TestBuildUpdateSetSkipsNilFields(t *testing.T) {
	city := "Lyon"
	score := 80
	clauses, args := buildUpdateSet(UpdateProspectParams{City: &city, Score: &score})
	if len(clauses) != 2 || clauses[0] != "city = $1" || clauses[1] != "score = $2" {
		t.Fatalf("unexpected clauses %v", clauses)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}
}

func TestBuildUpdateSetCanClearAssignee(t *testing.T) {
	clauses, args := buildUpdateSet(UpdateProspectParams{AssignedToSet: true})
	if len(clauses) != 1 || clauses[0] != "assigned_to = $1" {
		t.Fatalf("unexpected clauses %v", clauses)
	}
	if args[0].(*uuid.UUID) != nil {
		t.Fatal("expected nil assignee")
	}
}

func TestBuildUpdateSetCanClearBirthDate(t *testing.T) {
	age := 50
	clauses, args := buildUpdateSet(UpdateProspectParams{ClearBirthDate: true, Age: &age})
	if len(clauses) != 2 || clauses[0] != "birth_date = $1" || clauses[1] != "age = $2" {
		t.Fatalf("unexpected clauses %v", clauses)
	}
	if args[0].(*time.Time) != nil {
		t.Fatal("expected a null birth date")
	}
}

func TestMapProspectSortColumn(t *testing.T) {
	cases := map[string]string{
		"score":    "score",
		"lastName": "last_name",
		"budget":   "budget_monthly",
		"":         "created_at",
		"drop":     "created_at",
	}
	for in, want := range cases {
		if got := mapProspectSortColumn(in); got != want {
			t.Errorf("mapProspectSortColumn(%q) = %q, want %q", in, got, want)
		}
	}
}
