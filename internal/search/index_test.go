package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

type searchCfg struct{ url string }

func (c searchCfg) GetElasticsearchURL() string   { return c.url }
func (c searchCfg) GetElasticsearchIndex() string { return "prospects" }
func (c searchCfg) IsSearchEnabled() bool         { return c.url != "" }

func fakeElastic(t *testing.T, handler http.HandlerFunc) *ElasticIndex {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	idx, err := NewElasticIndex(searchCfg{url: srv.URL})
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	return idx
}

func TestSearchScopesToAssignee(t *testing.T) {
	scope := uuid.New()
	var body map[string]interface{}

	idx := fakeElastic(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/prospects/_search") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		_, _ = io.WriteString(w, `{"hits":{"total":{"value":1},"hits":[{"_score":2.5,"_source":{"id":"p1","firstName":"Jeanne","lastName":"Martin","segment":"premium","status":"new","score":90}}]}}`)
	})

	hits, total, err := idx.Search(context.Background(), "martin", &scope, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 1 || len(hits) != 1 || hits[0].LastName != "Martin" || hits[0].Relevance != 2.5 {
		t.Fatalf("unexpected hits %+v total %d", hits, total)
	}

	raw, _ := json.Marshal(body)
	if !strings.Contains(string(raw), scope.String()) {
		t.Fatalf("expected assignee filter in query, got %s", raw)
	}
}

func TestDeleteIgnoresMissingDocument(t *testing.T) {
	idx := fakeElastic(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"result":"not_found"}`)
	})
	if err := idx.Delete(context.Background(), uuid.New()); err != nil {
		t.Fatalf("expected 404 to be ignored, got %v", err)
	}
}

func TestNewIndexDisabled(t *testing.T) {
	idx, err := NewIndex(searchCfg{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.Enabled() {
		t.Fatal("expected noop index when search is not configured")
	}
}

func TestBuildQueryWithoutScope(t *testing.T) {
	q := buildQuery("dupont", nil, 5)
	boolQuery := q["query"].(map[string]interface{})["bool"].(map[string]interface{})
	if _, ok := boolQuery["filter"]; ok {
		t.Fatal("unscoped query must not filter on assignee")
	}
	if q["size"] != 5 {
		t.Fatalf("unexpected size %v", q["size"])
	}
}
