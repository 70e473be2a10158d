package service

import (
	"context"
	"testing"

	"premunia_crm_backend/internal/search"
	"premunia_crm_backend/internal/search/transport"
	"premunia_crm_backend/platform/httpkit"
	"premunia_crm_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeIndex struct {
	search.Noop
	scope *uuid.UUID
	hits  []search.Hit
}

func (f *fakeIndex) Enabled() bool { return true }
func (f *fakeIndex) Search(_ context.Context, _ string, scope *uuid.UUID, _ int) ([]search.Hit, int, error) {
	f.scope = scope
	return f.hits, len(f.hits), nil
}

func TestParseTypes(t *testing.T) {
	got := parseTypes("client, task,task,bogus")
	if len(got) != 2 || got[0] != "client" || got[1] != "task" {
		t.Fatalf("unexpected types %v", got)
	}
	if len(parseTypes("")) != len(allTypes) {
		t.Fatal("empty filter should search every type")
	}
}

func TestGlobalSearchUsesIndexForProspects(t *testing.T) {
	idx := &fakeIndex{hits: []search.Hit{{Document: search.Document{ID: "p1", FirstName: "Jeanne", LastName: "Martin"}, Relevance: 1.2}}}
	svc := New(nil, idx, logger.Discard())
	user := uuid.New()

	resp, err := svc.GlobalSearch(context.Background(), httpkit.NewIdentity(user, "", httpkit.RoleCommercial), transport.SearchRequest{Query: "martin", Types: "prospect"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Engine != engineElasticsearch || len(resp.Items) != 1 || resp.Items[0].Title != "Jeanne Martin" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if idx.scope == nil || *idx.scope != user {
		t.Fatal("commercial search must be scoped to the caller")
	}
}

func TestGlobalSearchBlankQuery(t *testing.T) {
	svc := New(nil, search.Noop{}, logger.Discard())
	resp, err := svc.GlobalSearch(context.Background(), httpkit.NewIdentity(uuid.New(), ""), transport.SearchRequest{Query: "   "})
	if err != nil || len(resp.Items) != 0 {
		t.Fatalf("expected empty result, got %+v %v", resp, err)
	}
}
