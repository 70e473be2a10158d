package repository

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestBuildTaskListWhereOverdue(t *testing.T) {
	scope := uuid.New()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	where, args, next := buildTaskListWhere(ListParams{ScopeUserID: &scope, Overdue: true, Now: now})

	want := "FROM tasks WHERE 1=1 AND assigned_to = $1 AND status = 'pending' AND due_date < $2"
	if where != want {
		t.Fatalf("unexpected where:\n got %s\nwant %s", where, want)
	}
	if len(args) != 2 || args[0] != scope || args[1] != now || next != 3 {
		t.Fatalf("unexpected args %v next %d", args, next)
	}
}

func TestBuildTaskListWhereNoFilters(t *testing.T) {
	where, args, next := buildTaskListWhere(ListParams{})
	if strings.Contains(where, "AND") || len(args) != 0 || next != 1 {
		t.Fatalf("expected bare query, got %q %v", where, args)
	}
}

func TestMapTaskSortColumn(t *testing.T) {
	cases := map[string]string{"priority": "priority", "createdAt": "created_at", "": "due_date", "drop table": "due_date"}
	for in, want := range cases {
		if got := mapTaskSortColumn(in); got != want {
			t.Errorf("mapTaskSortColumn(%q) = %q, want %q", in, got, want)
		}
	}
}
