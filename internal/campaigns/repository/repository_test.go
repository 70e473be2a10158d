package repository

import (
	"strings"
	"testing"
)

func TestBuildCampaignListWhere(t *testing.T) {
	status := "active"
	where, args, next := buildCampaignListWhere(ListParams{Status: &status, Search: "été"})

	if !strings.Contains(where, "status = $1") || !strings.Contains(where, "name ILIKE $2") {
		t.Fatalf("unexpected where %q", where)
	}
	if len(args) != 2 || args[1] != "%été%" {
		t.Fatalf("unexpected args %v", args)
	}
	if next != 3 {
		t.Fatalf("expected next placeholder 3, got %d", next)
	}
}

func TestBuildCampaignListWhereEmpty(t *testing.T) {
	where, args, next := buildCampaignListWhere(ListParams{})
	if where != " WHERE 1=1" || len(args) != 0 || next != 1 {
		t.Fatalf("unexpected %q %v %d", where, args, next)
	}
}
