package service

import (
	"context"
	"testing"
	"time"

	"premunia_crm_backend/internal/goals/repository"
	"premunia_crm_backend/internal/goals/transport"
	"premunia_crm_backend/platform/apperr"
	"premunia_crm_backend/platform/httpkit"
	"premunia_crm_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRepo struct {
	items    map[uuid.UUID]repository.Goal
	measured float64
	measures []string
}

func (f *fakeRepo) Create(_ context.Context, p repository.CreateGoalParams) (repository.Goal, error) {
	createdBy := p.CreatedBy
	g := repository.Goal{
		ID:          uuid.New(),
		UserID:      p.UserID,
		Type:        p.Type,
		Period:      p.Period,
		TargetValue: p.TargetValue,
		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
		Description: p.Description,
		CreatedBy:   &createdBy,
	}
	f.items[g.ID] = g
	return g, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Goal, error) {
	g, ok := f.items[id]
	if !ok {
		return repository.Goal{}, repository.ErrNotFound
	}
	return g, nil
}

func (f *fakeRepo) Update(_ context.Context, id uuid.UUID, p repository.UpdateGoalParams) (repository.Goal, error) {
	g, ok := f.items[id]
	if !ok {
		return repository.Goal{}, repository.ErrNotFound
	}
	if p.TargetValue != nil {
		g.TargetValue = *p.TargetValue
	}
	if p.EndDate != nil {
		g.EndDate = *p.EndDate
	}
	f.items[id] = g
	return g, nil
}

func (f *fakeRepo) SetCurrentValue(_ context.Context, id uuid.UUID, value float64) (repository.Goal, error) {
	g := f.items[id]
	g.CurrentValue = value
	f.items[id] = g
	return g, nil
}

func (f *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

func (f *fakeRepo) List(_ context.Context, p repository.ListParams) ([]repository.Goal, int, error) {
	out := []repository.Goal{}
	for _, g := range f.items {
		if p.UserID != nil && g.UserID != *p.UserID {
			continue
		}
		out = append(out, g)
	}
	return out, len(out), nil
}

func (f *fakeRepo) Measure(_ context.Context, goalType string, _ uuid.UUID, start, end time.Time) (float64, error) {
	f.measures = append(f.measures, goalType+" "+start.Format(time.DateOnly)+".."+end.Format(time.DateOnly))
	return f.measured, nil
}

var manager = httpkit.NewIdentity(uuid.New(), "", httpkit.RoleManager)

func newTestService() (*Service, *fakeRepo) {
	repo := &fakeRepo{items: map[uuid.UUID]repository.Goal{}}
	return New(repo, logger.Discard()), repo
}

func TestCreateDerivesEndDate(t *testing.T) {
	svc, _ := newTestService()
	seller := uuid.New()

	g, err := svc.Create(context.Background(), manager, transport.CreateGoalRequest{
		UserID: seller, Type: transport.TypeRevenue, Period: transport.PeriodQuarterly, TargetValue: 15000, StartDate: "2025-04-01",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if g.EndDate != "2025-06-30" {
		t.Fatalf("expected quarter end, got %s", g.EndDate)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService()
	seller := httpkit.NewIdentity(uuid.New(), "", httpkit.RoleCommercial)
	req := transport.CreateGoalRequest{UserID: uuid.New(), Type: transport.TypeDeals, Period: transport.PeriodMonthly, TargetValue: 5, StartDate: "2025-05-01"}

	if _, err := svc.Create(context.Background(), seller, req); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("commercial cannot set goals, got %v", err)
	}

	req.EndDate = "2025-04-01"
	if _, err := svc.Create(context.Background(), manager, req); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("end before start should fail, got %v", err)
	}
}

func TestRefreshStoresLiveValue(t *testing.T) {
	svc, repo := newTestService()
	seller := httpkit.NewIdentity(uuid.New(), "", httpkit.RoleCommercial)
	g, _ := svc.Create(context.Background(), manager, transport.CreateGoalRequest{
		UserID: seller.UserID(), Type: transport.TypeAppointments, Period: transport.PeriodMonthly, TargetValue: 20, StartDate: "2025-05-01",
	})

	repo.measured = 25
	resp, err := svc.Refresh(context.Background(), seller, g.ID)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if resp.CurrentValue != 25 || resp.Progress != 100 {
		t.Fatalf("expected capped progress, got %v / %v", resp.CurrentValue, resp.Progress)
	}
	if repo.measures[0] != "appointments 2025-05-01..2025-05-31" {
		t.Fatalf("unexpected measure window %v", repo.measures)
	}

	other := httpkit.NewIdentity(uuid.New(), "", httpkit.RoleCommercial)
	if _, err := svc.Refresh(context.Background(), other, g.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("another commercial must not see the goal, got %v", err)
	}
}

func TestListScopesCommercialToOwnGoals(t *testing.T) {
	svc, _ := newTestService()
	seller := httpkit.NewIdentity(uuid.New(), "", httpkit.RoleCommercial)
	for _, userID := range []uuid.UUID{seller.UserID(), uuid.New()} {
		if _, err := svc.Create(context.Background(), manager, transport.CreateGoalRequest{
			UserID: userID, Type: transport.TypeProspects, Period: transport.PeriodYearly, TargetValue: 100, StartDate: "2025-01-01",
		}); err != nil {
			t.Fatal(err)
		}
	}

	mine, err := svc.List(context.Background(), seller, transport.ListGoalsRequest{UserID: uuid.NewString()})
	if err != nil {
		t.Fatal(err)
	}
	if mine.Total != 1 || mine.Items[0].UserID != seller.UserID() {
		t.Fatalf("commercial should only see own goal, got %+v", mine.Items)
	}
	all, _ := svc.List(context.Background(), manager, transport.ListGoalsRequest{})
	if all.Total != 2 {
		t.Fatalf("manager should see 2 goals, got %d", all.Total)
	}
}

func TestProgress(t *testing.T) {
	cases := []struct {
		current, target, want float64
	}{
		{0, 10, 0},
		{1, 3, 33.33},
		{7500, 10000, 75},
		{12, 10, 100},
		{5, 0, 0},
	}
	for _, tc := range cases {
		if got := Progress(tc.current, tc.target); got != tc.want {
			t.Errorf("Progress(%v, %v) = %v, want %v", tc.current, tc.target, got, tc.want)
		}
	}
}

func TestPeriodEnd(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := map[string]string{
		transport.PeriodMonthly:   "2024-01-31",
		transport.PeriodQuarterly: "2024-03-31",
		transport.PeriodYearly:    "2024-12-31",
	}
	for period, want := range cases {
		if got := PeriodEnd(start, period).Format(time.DateOnly); got != want {
			t.Errorf("PeriodEnd(%s) = %s, want %s", period, got, want)
		}
	}
}
