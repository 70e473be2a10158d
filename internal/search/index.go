// Package search provides prospect full-text search on Elasticsearch and a
// cross-entity lookup on PostgreSQL.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"premunia_crm_backend/platform/config"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
)

// Document is the indexed projection of a prospect.
type Document struct {
	ID         string    `json:"id"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	City       string    `json:"city,omitempty"`
	PostalCode string    `json:"postalCode,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	Segment    string    `json:"segment"`
	Status     string    `json:"status"`
	Score      int       `json:"score"`
	AssignedTo string    `json:"assignedTo,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Hit is one search result with its relevance.
type Hit struct {
	Document
	Relevance float64 `json:"relevance"`
}

// ProspectIndex is implemented by ElasticIndex and Noop.
type ProspectIndex interface {
	Enabled() bool
	EnsureIndex(ctx context.Context) error
	Index(ctx context.Context, doc Document) error
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, query string, scopeUserID *uuid.UUID, limit int) ([]Hit, int, error)
}

const indexMapping = `{
  "settings": {
    "analysis": {
      "analyzer": {
        "folded": {"type": "custom", "tokenizer": "standard", "filter": ["lowercase", "asciifolding"]}
      }
    }
  },
  "mappings": {
    "properties": {
      "id":         {"type": "keyword"},
      "firstName":  {"type": "text", "analyzer": "folded"},
      "lastName":   {"type": "text", "analyzer": "folded"},
      "email":      {"type": "text", "analyzer": "folded"},
      "phone":      {"type": "keyword"},
      "city":       {"type": "text", "analyzer": "folded"},
      "postalCode": {"type": "keyword"},
      "notes":      {"type": "text", "analyzer": "folded"},
      "segment":    {"type": "keyword"},
      "status":     {"type": "keyword"},
      "score":      {"type": "integer"},
      "assignedTo": {"type": "keyword"},
      "createdAt":  {"type": "date"}
    }
  }
}`

// ElasticIndex stores prospects in a single Elasticsearch index.
type ElasticIndex struct {
	client *elasticsearch.Client
	index  string
}

// NewElasticIndex creates the client. It does not contact the cluster.
func NewElasticIndex(cfg config.SearchConfig) (*ElasticIndex, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.GetElasticsearchURL()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}
	return &ElasticIndex{client: client, index: cfg.GetElasticsearchIndex()}, nil
}

// NewIndex returns an ElasticIndex when search is configured and Noop otherwise.
func NewIndex(cfg config.SearchConfig) (ProspectIndex, error) {
	if !cfg.IsSearchEnabled() {
		return Noop{}, nil
	}
	return NewElasticIndex(cfg)
}

func (e *ElasticIndex) Enabled() bool { return true }

// EnsureIndex creates the index with its mapping when missing.
func (e *ElasticIndex) EnsureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{e.index}}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = esapi.IndicesCreateRequest{
		Index: e.index,
		Body:  bytes.NewReader([]byte(indexMapping)),
	}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch error: %s", res.String())
	}
	return nil
}

func (e *ElasticIndex) Index(ctx context.Context, doc Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	res, err := esapi.IndexRequest{
		Index:      e.index,
		DocumentID: doc.ID,
		Body:       bytes.NewReader(body),
	}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch error: %s", res.String())
	}
	return nil
}

func (e *ElasticIndex) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := esapi.DeleteRequest{
		Index:      e.index,
		DocumentID: id.String(),
	}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("elasticsearch error: %s", res.String())
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Score  float64  `json:"_score"`
			Source Document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// buildQuery matches names, email, phone, city and notes, filtered to the
// assignee when scoped.
func buildQuery(query string, scopeUserID *uuid.UUID, limit int) map[string]interface{} {
	boolQuery := map[string]interface{}{
		"must": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    []string{"firstName^3", "lastName^3", "email^2", "phone^2", "city", "notes"},
				"fuzziness": "AUTO",
			},
		},
	}
	if scopeUserID != nil {
		boolQuery["filter"] = []interface{}{
			map[string]interface{}{"term": map[string]interface{}{"assignedTo": scopeUserID.String()}},
		}
	}
	return map[string]interface{}{
		"size":  limit,
		"query": map[string]interface{}{"bool": boolQuery},
	}
}

func (e *ElasticIndex) Search(ctx context.Context, query string, scopeUserID *uuid.UUID, limit int) ([]Hit, int, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(buildQuery(query, scopeUserID, limit)); err != nil {
		return nil, 0, fmt.Errorf("failed to encode query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.index),
		e.client.Search.WithBody(&buf),
		e.client.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, 0, fmt.Errorf("elasticsearch error: %s", res.String())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, 0, fmt.Errorf("failed to parse response: %w", err)
	}

	hits := make([]Hit, len(parsed.Hits.Hits))
	for i, h := range parsed.Hits.Hits {
		hits[i] = Hit{Document: h.Source, Relevance: h.Score}
	}
	return hits, parsed.Hits.Total.Value, nil
}

// Noop is used when Elasticsearch is not configured.
type Noop struct{}

func (Noop) Enabled() bool                           { return false }
func (Noop) EnsureIndex(context.Context) error       { return nil }
func (Noop) Index(context.Context, Document) error   { return nil }
func (Noop) Delete(context.Context, uuid.UUID) error { return nil }
func (Noop) Search(context.Context, string, *uuid.UUID, int) ([]Hit, int, error) {
	return nil, 0, nil
}

var (
	_ ProspectIndex = (*ElasticIndex)(nil)
	_ ProspectIndex = Noop{}
)
