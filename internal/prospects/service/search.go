package service

import (
	"context"
	"strings"

	"premunia_crm_backend/internal/prospects/repository"
	"premunia_crm_backend/internal/prospects/transport"
	"premunia_crm_backend/platform/apperr"
	"premunia_crm_backend/platform/httpkit"
)

// Search runs a free-text prospect lookup. Elasticsearch is used when
// configured; the database ILIKE search answers otherwise or when it fails.
func (s *Service) Search(ctx context.Context, identity httpkit.Identity, req transport.SearchProspectsRequest) (transport.SearchProspectsResponse, error) {
	q := strings.TrimSpace(req.Query)
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}

	if s.index.Enabled() {
		hits, total, err := s.index.Search(ctx, q, identity.ScopeUserID(), limit)
		if err == nil {
			items := make([]transport.SearchHit, len(hits))
			for i, h := range hits {
				items[i] = transport.SearchHit{
					ID:        h.ID,
					FirstName: h.FirstName,
					LastName:  h.LastName,
					City:      h.City,
					Segment:   h.Segment,
					Status:    h.Status,
					Score:     h.Score,
					Relevance: h.Relevance,
				}
			}
			return transport.SearchProspectsResponse{Items: items, Total: total, Engine: "elasticsearch"}, nil
		}
		s.log.Warn("prospect index search failed, using database", "error", err)
	}

	prospects, total, err := s.repo.List(ctx, repository.ListParams{
		ScopeUserID: identity.ScopeUserID(),
		Search:      q,
		Limit:       limit,
		SortBy:      "score",
		SortOrder:   "desc",
	})
	if err != nil {
		return transport.SearchProspectsResponse{}, apperr.Unavailable("prospects.Search", err)
	}

	items := make([]transport.SearchHit, len(prospects))
	for i, p := range prospects {
		items[i] = transport.SearchHit{
			ID:        p.ID.String(),
			FirstName: p.FirstName,
			LastName:  p.LastName,
			City:      deref(p.City),
			Segment:   p.Segment,
			Status:    p.Status,
			Score:     p.Score,
		}
	}
	return transport.SearchProspectsResponse{Items: items, Total: total, Engine: "database"}, nil
}
