package service

import (
	"context"
	"strings"

	"premunia_crm_backend/internal/search"
	"premunia_crm_backend/internal/search/repository"
	"premunia_crm_backend/internal/search/transport"
	"premunia_crm_backend/platform/apperr"
	"premunia_crm_backend/platform/httpkit"
	"premunia_crm_backend/platform/logger"
)

const (
	engineDatabase      = "database"
	engineElasticsearch = "elasticsearch"
)

type Service struct {
	repo  *repository.Repository
	index search.ProspectIndex
	log   *logger.Logger
}

func New(repo *repository.Repository, index search.ProspectIndex, log *logger.Logger) *Service {
	return &Service{repo: repo, index: index, log: log}
}

// GlobalSearch answers the header search box. Prospects come from
// Elasticsearch when it is configured, everything else from PostgreSQL.
func (s *Service) GlobalSearch(ctx context.Context, identity httpkit.Identity, req transport.SearchRequest) (*transport.SearchResponse, error) {
	q := strings.TrimSpace(req.Query)
	if q == "" {
		return &transport.SearchResponse{Items: []transport.SearchResultItem{}, Engine: engineDatabase}, nil
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	types := parseTypes(req.Types)
	scope := identity.ScopeUserID()

	items := make([]transport.SearchResultItem, 0, limit)
	total := 0
	engine := engineDatabase

	if s.index.Enabled() && wants(types, "prospect") {
		hits, hitTotal, err := s.index.Search(ctx, q, scope, limit)
		if err != nil {
			s.log.Warn("elasticsearch search failed, falling back to database", "error", err)
		} else {
			engine = engineElasticsearch
			total += hitTotal
			for _, h := range hits {
				items = append(items, transport.SearchResultItem{
					ID:        h.ID,
					Type:      "prospect",
					Title:     h.FirstName + " " + h.LastName,
					Subtitle:  h.City,
					Status:    h.Status,
					Link:      buildFrontendLink("prospect", h.ID),
					Score:     h.Relevance,
					CreatedAt: h.CreatedAt,
				})
			}
			types = without(types, "prospect")
		}
	}

	if len(types) > 0 {
		results, err := s.repo.GlobalSearch(ctx, q, scope, types, limit)
		if err != nil {
			return nil, apperr.Unavailable("search.GlobalSearch", err)
		}
		if len(results) > 0 {
			total += int(results[0].Total)
		}
		for _, r := range results {
			items = append(items, transport.SearchResultItem{
				ID:        r.ID.String(),
				Type:      r.Type,
				Title:     r.Title,
				Subtitle:  r.Subtitle,
				Status:    r.Status,
				Link:      buildFrontendLink(r.Type, r.ID.String()),
				CreatedAt: r.CreatedAt,
			})
		}
	}

	if len(items) > limit {
		items = items[:limit]
	}
	return &transport.SearchResponse{Items: items, Total: total, Engine: engine}, nil
}

var allTypes = []string{"prospect", "client", "appointment", "task"}

func parseTypes(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return append([]string(nil), allTypes...)
	}
	out := make([]string, 0, len(allTypes))
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if wants(allTypes, part) && !wants(out, part) {
			out = append(out, part)
		}
	}
	return out
}

func wants(types []string, t string) bool {
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}

func without(types []string, t string) []string {
	out := make([]string, 0, len(types))
	for _, v := range types {
		if v != t {
			out = append(out, v)
		}
	}
	return out
}

func buildFrontendLink(entityType, id string) string {
	switch entityType {
	case "prospect":
		return "/prospects/" + id
	case "client":
		return "/clients/" + id
	case "appointment":
		return "/appointments/" + id
	case "task":
		return "/tasks/" + id
	default:
		return "/"
	}
}
