package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	campaignrepo "premunia_crm_backend/internal/campaigns/repository"
	"premunia_crm_backend/internal/events"
	prospectrepo "premunia_crm_backend/internal/prospects/repository"
	"premunia_crm_backend/internal/reporting/repository"
	"premunia_crm_backend/internal/reporting/transport"
	"premunia_crm_backend/platform/apperr"
	"premunia_crm_backend/platform/cache"
	"premunia_crm_backend/platform/httpkit"
	"premunia_crm_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
)

var testNow = time.Date(2025, 6, 18, 9, 0, 0, 0, time.UTC)

type stubStore struct {
	calls atomic.Int32
}

func (s *stubStore) CountProspectsCreated(_ context.Context, _ *uuid.UUID, from, _ time.Time) (int, error) {
	s.calls.Add(1)
	if from.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)) {
		return 12, nil
	}
	return 40, nil
}

func (s *stubStore) CountClientsCreated(context.Context, *uuid.UUID, time.Time, time.Time) (int, error) {
	s.calls.Add(1)
	return 3, nil
}

func (s *stubStore) CountUpcomingAppointments(context.Context, *uuid.UUID, time.Time) (int, error) {
	s.calls.Add(1)
	return 5, nil
}

func (s *stubStore) CountOverdueTasks(context.Context, *uuid.UUID, time.Time) (int, error) {
	s.calls.Add(1)
	return 2, nil
}

func (s *stubStore) CountOpportunitiesCreated(context.Context, *uuid.UUID, time.Time, time.Time) (int, error) {
	return 15, nil
}

func (s *stubStore) WonRevenue(_ context.Context, _ *uuid.UUID, from, _ time.Time) (float64, int, error) {
	if from.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)) {
		return 1500, 1, nil
	}
	return 10000, 8, nil
}

func (s *stubStore) PipelineValue(context.Context, *uuid.UUID) (float64, error) {
	return 4321.456, nil
}

func (s *stubStore) SegmentBreakdown(context.Context, *uuid.UUID) ([]repository.SegmentStat, error) {
	return []repository.SegmentStat{{Segment: "premium", Count: 4, AvgBudget: 180.456, AvgScore: 91}}, nil
}

func (s *stubStore) TeamPerformance(context.Context) ([]repository.MemberStat, error) {
	return []repository.MemberStat{{UserID: uuid.New(), FirstName: "Claire", LastName: "Roux", Email: "c.roux@premunia.fr", WonDeals: 3, Revenue: 2400}}, nil
}

type stubProspects struct{ scope *uuid.UUID }

func (s *stubProspects) CountByStatus(_ context.Context, scope *uuid.UUID) ([]prospectrepo.StatusCount, error) {
	s.scope = scope
	return []prospectrepo.StatusCount{
		{Status: "qualified", Count: 2, AvgScore: 80},
		{Status: "new", Count: 6, AvgScore: 60},
	}, nil
}

type stubCampaigns struct{}

func (stubCampaigns) Performance(context.Context, time.Time, time.Time) (campaignrepo.Performance, error) {
	return campaignrepo.Performance{Sent: 100, Opened: 40, Clicked: 10, Converted: 2}, nil
}

func newTestService(c cache.Cache) (*Service, *stubStore, *stubProspects) {
	store := &stubStore{}
	prospects := &stubProspects{}
	svc := New(store, prospects, stubCampaigns{}, c, time.Minute, logger.Discard())
	svc.now = func() time.Time { return testNow }
	return svc, store, prospects
}

var manager = httpkit.NewIdentity(uuid.New(), "", httpkit.RoleManager)

func TestDashboardStats(t *testing.T) {
	svc, store, _ := newTestService(nil)

	stats, err := svc.DashboardStats(context.Background(), manager)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	want := transport.DashboardStats{ProspectsThisMonth: 12, ClientsThisMonth: 3, UpcomingAppointments: 5, OverdueTasks: 2}
	if stats != want {
		t.Fatalf("got %+v, want %+v", stats, want)
	}
	if store.calls.Load() != 4 {
		t.Fatalf("expected 4 counts, got %d", store.calls.Load())
	}
}

func TestDashboardStatsIsCachedPerScope(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := cache.NewRedis("redis://" + mr.Addr())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	svc, store, _ := newTestService(c)
	ctx := context.Background()
	seller := httpkit.NewIdentity(uuid.New(), "", httpkit.RoleCommercial)

	for i := 0; i < 3; i++ {
		if _, err := svc.DashboardStats(ctx, manager); err != nil {
			t.Fatal(err)
		}
	}
	if store.calls.Load() != 4 {
		t.Fatalf("repeated reads should hit the cache, got %d store calls", store.calls.Load())
	}
	if _, err := svc.DashboardStats(ctx, seller); err != nil {
		t.Fatal(err)
	}
	if store.calls.Load() != 8 {
		t.Fatalf("a different scope must not share the cache, got %d store calls", store.calls.Load())
	}
	if !mr.Exists("crm:reports:dashboard:" + seller.UserID().String()) {
		t.Fatal("expected a scoped cache key")
	}

	bus := events.NewInMemoryBus(logger.Discard())
	svc.RegisterInvalidation(bus)
	if err := bus.PublishSync(ctx, events.ProspectCreated{BaseEvent: events.NewBaseEvent(), ProspectID: uuid.New()}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.DashboardStats(ctx, manager); err != nil {
		t.Fatal(err)
	}
	if store.calls.Load() != 12 {
		t.Fatalf("events should invalidate the cache, got %d store calls", store.calls.Load())
	}

	writes := []events.Event{
		events.OpportunityChanged{BaseEvent: events.NewBaseEvent(), OpportunityID: uuid.New(), Change: events.ChangeCreated},
		events.TaskChanged{BaseEvent: events.NewBaseEvent(), TaskID: uuid.New(), Change: events.ChangeDeleted},
		events.CampaignChanged{BaseEvent: events.NewBaseEvent(), CampaignID: uuid.New(), Change: events.ChangeEngaged},
	}
	for i, e := range writes {
		if err := bus.PublishSync(ctx, e); err != nil {
			t.Fatal(err)
		}
		if _, err := svc.DashboardStats(ctx, manager); err != nil {
			t.Fatal(err)
		}
		if want := int32(16 + 4*i); store.calls.Load() != want {
			t.Fatalf("%s should invalidate the cache, got %d store calls", e.EventName(), store.calls.Load())
		}
	}
}

func TestAnalytics(t *testing.T) {
	svc, _, _ := newTestService(nil)

	a, err := svc.Analytics(context.Background(), manager, transport.AnalyticsRequest{})
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if a.From != "2024-06-19" || a.To != "2025-06-18" {
		t.Fatalf("unexpected default window %s..%s", a.From, a.To)
	}
	if a.TotalRevenue != 10000 || a.MonthlyRevenue != 1500 || a.WonDeals != 8 {
		t.Fatalf("unexpected revenue figures %+v", a)
	}
	if a.ConversionRate != 20 || a.AvgDealSize != 1250 {
		t.Fatalf("unexpected ratios %v / %v", a.ConversionRate, a.AvgDealSize)
	}
	if a.PipelineValue != 4321.46 || a.CampaignsPerformance.Opened != 40 {
		t.Fatalf("unexpected pipeline or campaign figures %+v", a)
	}
}

func TestAnalyticsRejectsInvertedWindow(t *testing.T) {
	svc, _, _ := newTestService(nil)
	_, err := svc.Analytics(context.Background(), manager, transport.AnalyticsRequest{From: "2025-05-01", To: "2025-04-01"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPipelineListsEveryStatusInOrder(t *testing.T) {
	svc, _, prospects := newTestService(nil)
	seller := httpkit.NewIdentity(uuid.New(), "", httpkit.RoleCommercial)

	p, err := svc.Pipeline(context.Background(), seller)
	if err != nil {
		t.Fatal(err)
	}
	if prospects.scope == nil || *prospects.scope != seller.UserID() {
		t.Fatal("pipeline should be scoped to the commercial user")
	}
	if len(p.Stages) != 6 || p.Stages[0].Status != "new" || p.Stages[0].Count != 6 || p.Stages[1].Count != 0 {
		t.Fatalf("unexpected stages %+v", p.Stages)
	}
	if p.Total != 8 || p.AvgScore != 65 {
		t.Fatalf("unexpected totals %d / %v", p.Total, p.AvgScore)
	}
}

func TestTeamPerformanceIsManagerOnly(t *testing.T) {
	svc, _, _ := newTestService(nil)
	seller := httpkit.NewIdentity(uuid.New(), "", httpkit.RoleCommercial)

	if _, err := svc.TeamPerformance(context.Background(), seller); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	team, err := svc.TeamPerformance(context.Background(), manager)
	if err != nil {
		t.Fatal(err)
	}
	if team[0].Name != "Claire Roux" || team[0].Revenue != 2400 {
		t.Fatalf("unexpected team row %+v", team[0])
	}
}

func TestSegmentBreakdownRounds(t *testing.T) {
	svc, _, _ := newTestService(nil)
	segments, err := svc.SegmentBreakdown(context.Background(), manager)
	if err != nil {
		t.Fatal(err)
	}
	if segments[0].AvgBudget != 180.46 {
		t.Fatalf("expected rounded budget, got %v", segments[0].AvgBudget)
	}
}
