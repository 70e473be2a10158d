package repository

import (
	"strings"
	"testing"
)

func TestBuildGlobalSearchQuery(t *testing.T) {
	query := buildGlobalSearchQuery([]string{"client", "task", "unknown"})
	if strings.Count(query, "UNION ALL") != 1 {
		t.Fatalf("expected two unioned selects, got %s", query)
	}
	if !strings.Contains(query, "FROM clients") || !strings.Contains(query, "FROM tasks") {
		t.Fatalf("missing entity selects: %s", query)
	}
	if strings.Contains(query, "FROM prospects") {
		t.Fatal("prospects were not requested")
	}
}

func TestProspectSearchExcludesArchived(t *testing.T) {
	if !strings.Contains(entitySearches["prospect"], "deleted_at IS NULL") {
		t.Fatal("archived prospects must never be returned")
	}
}
