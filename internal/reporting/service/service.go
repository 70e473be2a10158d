package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	campaignrepo "premunia_crm_backend/internal/campaigns/repository"
	"premunia_crm_backend/internal/events"
	"premunia_crm_backend/internal/prospects/lifecycle"
	prospectrepo "premunia_crm_backend/internal/prospects/repository"
	"premunia_crm_backend/internal/reporting/repository"
	"premunia_crm_backend/internal/reporting/transport"
	"premunia_crm_backend/platform/apperr"
	"premunia_crm_backend/platform/cache"
	"premunia_crm_backend/platform/httpkit"
	"premunia_crm_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const cachePrefix = "reports:"

type Store interface {
	CountProspectsCreated(ctx context.Context, scope *uuid.UUID, from, to time.Time) (int, error)
	CountClientsCreated(ctx context.Context, scope *uuid.UUID, from, to time.Time) (int, error)
	CountUpcomingAppointments(ctx context.Context, scope *uuid.UUID, now time.Time) (int, error)
	CountOverdueTasks(ctx context.Context, scope *uuid.UUID, now time.Time) (int, error)
	CountOpportunitiesCreated(ctx context.Context, scope *uuid.UUID, from, to time.Time) (int, error)
	WonRevenue(ctx context.Context, scope *uuid.UUID, from, to time.Time) (float64, int, error)
	PipelineValue(ctx context.Context, scope *uuid.UUID) (float64, error)
	SegmentBreakdown(ctx context.Context, scope *uuid.UUID) ([]repository.SegmentStat, error)
	TeamPerformance(ctx context.Context) ([]repository.MemberStat, error)
}

// ProspectCounter groups prospects by funnel status.
type ProspectCounter interface {
	CountByStatus(ctx context.Context, scopeUserID *uuid.UUID) ([]prospectrepo.StatusCount, error)
}

// CampaignStats sums campaign delivery and engagement.
type CampaignStats interface {
	Performance(ctx context.Context, from, to time.Time) (campaignrepo.Performance, error)
}

type Service struct {
	store     Store
	prospects ProspectCounter
	campaigns CampaignStats
	cache     cache.Cache
	ttl       time.Duration
	log       *logger.Logger
	now       func() time.Time
}

func New(store Store, prospects ProspectCounter, campaigns CampaignStats, c cache.Cache, ttl time.Duration, log *logger.Logger) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	return &Service{
		store:     store,
		prospects: prospects,
		campaigns: campaigns,
		cache:     c,
		ttl:       ttl,
		log:       log,
		now:       time.Now,
	}
}

// DashboardStats returns the four home-screen counters for the caller's scope.
func (s *Service) DashboardStats(ctx context.Context, identity httpkit.Identity) (transport.DashboardStats, error) {
	scope := identity.ScopeUserID()
	return cached(ctx, s, "dashboard:"+scopeKey(scope), func() (transport.DashboardStats, error) {
		now := s.now().UTC()
		monthStart, monthEnd := monthBounds(now)

		var stats transport.DashboardStats
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			stats.ProspectsThisMonth, err = s.store.CountProspectsCreated(gctx, scope, monthStart, monthEnd)
			return err
		})
		g.Go(func() (err error) {
			stats.ClientsThisMonth, err = s.store.CountClientsCreated(gctx, scope, monthStart, monthEnd)
			return err
		})
		g.Go(func() (err error) {
			stats.UpcomingAppointments, err = s.store.CountUpcomingAppointments(gctx, scope, now)
			return err
		})
		g.Go(func() (err error) {
			stats.OverdueTasks, err = s.store.CountOverdueTasks(gctx, scope, now)
			return err
		})
		if err := g.Wait(); err != nil {
			return transport.DashboardStats{}, apperr.Unavailable("reporting.DashboardStats", err)
		}
		return stats, nil
	})
}

// Analytics computes revenue and conversion figures over [from, to].
func (s *Service) Analytics(ctx context.Context, identity httpkit.Identity, req transport.AnalyticsRequest) (transport.Analytics, error) {
	from, to, err := s.analyticsWindow(req)
	if err != nil {
		return transport.Analytics{}, err
	}
	scope := identity.ScopeUserID()
	key := fmt.Sprintf("analytics:%s:%s:%s", scopeKey(scope), from.Format(time.DateOnly), to.Format(time.DateOnly))

	return cached(ctx, s, key, func() (transport.Analytics, error) {
		end := to.AddDate(0, 0, 1)
		monthStart, monthEnd := monthBounds(s.now().UTC())

		var (
			out     transport.Analytics
			revenue float64
			won     int
			perf    campaignrepo.Performance
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			revenue, won, err = s.store.WonRevenue(gctx, scope, from, end)
			return err
		})
		g.Go(func() (err error) {
			out.MonthlyRevenue, _, err = s.store.WonRevenue(gctx, scope, monthStart, monthEnd)
			return err
		})
		g.Go(func() (err error) {
			out.ProspectsCount, err = s.store.CountProspectsCreated(gctx, scope, from, end)
			return err
		})
		g.Go(func() (err error) {
			out.OpportunitiesCount, err = s.store.CountOpportunitiesCreated(gctx, scope, from, end)
			return err
		})
		g.Go(func() (err error) {
			out.PipelineValue, err = s.store.PipelineValue(gctx, scope)
			return err
		})
		g.Go(func() (err error) {
			perf, err = s.campaigns.Performance(gctx, from, end)
			return err
		})
		if err := g.Wait(); err != nil {
			return transport.Analytics{}, apperr.Unavailable("reporting.Analytics", err)
		}

		out.From = from.Format(time.DateOnly)
		out.To = to.Format(time.DateOnly)
		out.TotalRevenue = round2(revenue)
		out.MonthlyRevenue = round2(out.MonthlyRevenue)
		out.PipelineValue = round2(out.PipelineValue)
		out.WonDeals = won
		out.ConversionRate = percent(won, out.ProspectsCount)
		out.AvgDealSize = round2(revenue / float64(max(won, 1)))
		out.CampaignsPerformance = transport.CampaignsPerformance{
			Sent:      perf.Sent,
			Opened:    perf.Opened,
			Clicked:   perf.Clicked,
			Converted: perf.Converted,
		}
		return out, nil
	})
}

// Pipeline returns prospect counts for every funnel status, in funnel order.
func (s *Service) Pipeline(ctx context.Context, identity httpkit.Identity) (transport.Pipeline, error) {
	scope := identity.ScopeUserID()
	return cached(ctx, s, "pipeline:"+scopeKey(scope), func() (transport.Pipeline, error) {
		counts, err := s.prospects.CountByStatus(ctx, scope)
		if err != nil {
			return transport.Pipeline{}, apperr.Unavailable("reporting.Pipeline", err)
		}
		return buildPipeline(counts), nil
	})
}

func (s *Service) SegmentBreakdown(ctx context.Context, identity httpkit.Identity) ([]transport.SegmentStat, error) {
	scope := identity.ScopeUserID()
	return cached(ctx, s, "segments:"+scopeKey(scope), func() ([]transport.SegmentStat, error) {
		stats, err := s.store.SegmentBreakdown(ctx, scope)
		if err != nil {
			return nil, apperr.Unavailable("reporting.SegmentBreakdown", err)
		}
		out := make([]transport.SegmentStat, len(stats))
		for i, st := range stats {
			out[i] = transport.SegmentStat{
				Segment:   st.Segment,
				Count:     st.Count,
				AvgBudget: round2(st.AvgBudget),
				AvgScore:  round2(st.AvgScore),
			}
		}
		return out, nil
	})
}

// TeamPerformance ranks commercial users by won revenue. Managers only.
func (s *Service) TeamPerformance(ctx context.Context, identity httpkit.Identity) ([]transport.MemberPerformance, error) {
	if !identity.IsManager() {
		return nil, apperr.Forbidden("team performance is restricted to managers")
	}
	return cached(ctx, s, "team:all", func() ([]transport.MemberPerformance, error) {
		members, err := s.store.TeamPerformance(ctx)
		if err != nil {
			return nil, apperr.Unavailable("reporting.TeamPerformance", err)
		}
		out := make([]transport.MemberPerformance, len(members))
		for i, m := range members {
			out[i] = transport.MemberPerformance{
				UserID:    m.UserID,
				Name:      fullName(m.FirstName, m.LastName, m.Email),
				Email:     m.Email,
				Prospects: m.Prospects,
				WonDeals:  m.WonDeals,
				Revenue:   round2(m.Revenue),
			}
		}
		return out, nil
	})
}

// invalidatingEvents change at least one report.
var invalidatingEvents = []events.Event{
	events.ProspectCreated{},
	events.ProspectUpdated{},
	events.ProspectStatusChanged{},
	events.ProspectAssigned{},
	events.ProspectArchived{},
	events.ProspectConverted{},
	events.TaskCompleted{},
	events.TaskChanged{},
	events.AppointmentScheduled{},
	events.AppointmentStatusChanged{},
	events.CampaignCompleted{},
	events.CampaignChanged{},
	events.OpportunityStageChanged{},
	events.OpportunityChanged{},
}

// RegisterInvalidation drops every cached report when domain data changes.
func (s *Service) RegisterInvalidation(bus events.Bus) {
	handler := events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		if err := s.cache.DeletePrefix(ctx, cachePrefix); err != nil {
			s.log.Warn("report cache invalidation failed", "event", e.EventName(), "error", err)
		}
		return nil
	})
	for _, e := range invalidatingEvents {
		bus.Subscribe(e.EventName(), handler)
	}
}

func cached[T any](ctx context.Context, s *Service, key string, load func() (T, error)) (T, error) {
	key = cachePrefix + key
	var hit T
	err := s.cache.GetJSON(ctx, key, &hit)
	if err == nil {
		return hit, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.log.Warn("report cache read failed", "key", key, "error", err)
	}

	value, err := load()
	if err != nil {
		return value, err
	}
	if err := s.cache.SetJSON(ctx, key, value, s.ttl); err != nil {
		s.log.Warn("report cache write failed", "key", key, "error", err)
	}
	return value, nil
}

func (s *Service) analyticsWindow(req transport.AnalyticsRequest) (time.Time, time.Time, error) {
	today := s.now().UTC().Truncate(24 * time.Hour)
	to := today
	if req.To != "" {
		parsed, err := time.Parse(time.DateOnly, req.To)
		if err != nil {
			return time.Time{}, time.Time{}, apperr.Validation("invalid to date")
		}
		to = parsed
	}
	from := to.AddDate(-1, 0, 1)
	if req.From != "" {
		parsed, err := time.Parse(time.DateOnly, req.From)
		if err != nil {
			return time.Time{}, time.Time{}, apperr.Validation("invalid from date")
		}
		from = parsed
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, apperr.Validation("from must not be after to")
	}
	return from, to, nil
}

func buildPipeline(counts []prospectrepo.StatusCount) transport.Pipeline {
	byStatus := make(map[string]prospectrepo.StatusCount, len(counts))
	for _, c := range counts {
		byStatus[c.Status] = c
	}

	out := transport.Pipeline{Stages: make([]transport.PipelineStage, 0, len(lifecycle.All))}
	var scoreSum float64
	for _, status := range lifecycle.All {
		c := byStatus[string(status)]
		out.Stages = append(out.Stages, transport.PipelineStage{
			Status:   string(status),
			Count:    c.Count,
			AvgScore: round2(c.AvgScore),
		})
		out.Total += c.Count
		scoreSum += c.AvgScore * float64(c.Count)
	}
	if out.Total > 0 {
		out.AvgScore = round2(scoreSum / float64(out.Total))
	}
	return out
}

func monthBounds(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

func scopeKey(scope *uuid.UUID) string {
	if scope == nil {
		return "all"
	}
	return scope.String()
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round2(float64(part) / float64(whole) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func fullName(first, last, fallback string) string {
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "" || last != "":
		return first + last
	default:
		return fallback
	}
}
