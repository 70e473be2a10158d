package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"premunia_crm_backend/internal/comparator"
	"premunia_crm_backend/internal/events"
	"premunia_crm_backend/internal/prospects/repository"
	"premunia_crm_backend/internal/prospects/transport"
	"premunia_crm_backend/internal/search"
	"premunia_crm_backend/platform/apperr"
	"premunia_crm_backend/platform/httpkit"
	"premunia_crm_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRepo struct {
	mu        sync.Mutex
	prospects map[uuid.UUID]repository.Prospect
	history   []repository.ChangeStatusParams
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{prospects: map[uuid.UUID]repository.Prospect{}}
}

func (f *fakeRepo) Create(_ context.Context, p repository.CreateProspectParams) (repository.Prospect, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	created := repository.Prospect{
		ID: uuid.New(), FirstName: p.FirstName, LastName: p.LastName, Email: p.Email, Phone: p.Phone,
		BirthDate: p.BirthDate, Age: p.Age, City: p.City, PostalCode: p.PostalCode,
		BudgetMonthly: p.BudgetMonthly, HealthStatus: p.HealthStatus, UrgencyLevel: p.UrgencyLevel,
		Score: p.Score, Segment: p.Segment, Status: p.Status, AssignedTo: p.AssignedTo, Notes: p.Notes,
		CreatedAt: now, UpdatedAt: now,
	}
	f.prospects[created.ID] = created
	return created, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Prospect, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prospects[id]
	if !ok {
		return repository.Prospect{}, repository.ErrNotFound
	}
	return p, nil
}

func (f *fakeRepo) Update(_ context.Context, id uuid.UUID, params repository.UpdateProspectParams) (repository.Prospect, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prospects[id]
	if !ok {
		return repository.Prospect{}, repository.ErrNotFound
	}
	if params.BudgetMonthly != nil {
		p.BudgetMonthly = *params.BudgetMonthly
	}
	if params.HealthStatus != nil {
		p.HealthStatus = *params.HealthStatus
	}
	if params.Age != nil {
		p.Age = *params.Age
	}
	if params.BirthDate != nil || params.ClearBirthDate {
		p.BirthDate = params.BirthDate
	}
	if params.Score != nil {
		p.Score = *params.Score
	}
	if params.Segment != nil {
		p.Segment = *params.Segment
	}
	if params.AssignedToSet {
		p.AssignedTo = params.AssignedTo
	}
	if params.Notes != nil {
		p.Notes = params.Notes
	}
	f.prospects[id] = p
	return p, nil
}

func (f *fakeRepo) UpdateScore(_ context.Context, id uuid.UUID, score int, segment string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.prospects[id]
	p.Score, p.Segment = score, segment
	f.prospects[id] = p
	return nil
}

func (f *fakeRepo) Archive(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.prospects, id)
	return nil
}

func (f *fakeRepo) List(_ context.Context, params repository.ListParams) ([]repository.Prospect, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := []repository.Prospect{}
	for _, p := range f.prospects {
		if params.ScopeUserID != nil && (p.AssignedTo == nil || *p.AssignedTo != *params.ScopeUserID) {
			continue
		}
		items = append(items, p)
	}
	return items, len(items), nil
}

func (f *fakeRepo) ChangeStatus(_ context.Context, params repository.ChangeStatusParams) (repository.Prospect, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.prospects[params.ProspectID]
	if p.Status != params.FromStatus {
		return repository.Prospect{}, repository.ErrNotFound
	}
	p.Status = params.ToStatus
	f.prospects[p.ID] = p
	f.history = append(f.history, params)
	return p, nil
}

func (f *fakeRepo) ListStatusHistory(context.Context, uuid.UUID) ([]repository.StatusChange, error) {
	return nil, nil
}

func (f *fakeRepo) ForEach(_ context.Context, _ int, fn func(repository.Prospect) error) error {
	f.mu.Lock()
	items := make([]repository.Prospect, 0, len(f.prospects))
	for _, p := range f.prospects {
		items = append(items, p)
	}
	f.mu.Unlock()
	for _, p := range items {
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.EventName()
	}
	return out
}

type stubComparatorConfig struct{}

func (stubComparatorConfig) GetComparatorScriptURL() string  { return "https://widget.example/cmp.js" }
func (stubComparatorConfig) GetComparatorPartnerKey() string { return "key" }

func newTestService() (*Service, *fakeRepo, *recordingBus) {
	repo := newFakeRepo()
	bus := &recordingBus{}
	svc := New(repo, bus, search.Noop{}, comparator.New(stubComparatorConfig{}), nil, logger.Discard())
	svc.now = func() time.Time { return time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC) }
	return svc, repo, bus
}

func commercial() httpkit.Identity {
	return httpkit.NewIdentity(uuid.New(), "commercial@premunia.fr", httpkit.RoleCommercial)
}

func manager() httpkit.Identity {
	return httpkit.NewIdentity(uuid.New(), "manager@premunia.fr", httpkit.RoleManager)
}

func TestCreateScoresAndAssignsToCommercial(t *testing.T) {
	svc, _, bus := newTestService()
	user := commercial()

	resp, err := svc.Create(context.Background(), user, transport.CreateProspectRequest{
		FirstName:     " Jeanne ",
		LastName:      "Martin",
		Phone:         "06 12 34 56 78",
		Age:           67,
		BudgetMonthly: 120,
		HealthStatus:  "excellent",
		UrgencyLevel:  "high",
		Notes:         "<b>Rappeler</b> mardi",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Score != 100 || resp.Segment != "premium" {
		t.Fatalf("expected 100/premium, got %d/%s", resp.Score, resp.Segment)
	}
	if resp.Status != "new" || resp.FirstName != "Jeanne" {
		t.Fatalf("unexpected prospect %+v", resp)
	}
	if resp.Phone == nil || *resp.Phone != "+33612345678" {
		t.Fatalf("phone not normalized: %v", resp.Phone)
	}
	if resp.Notes == nil || *resp.Notes != "Rappeler mardi" {
		t.Fatalf("notes not sanitized: %v", resp.Notes)
	}
	if resp.AssignedTo == nil || *resp.AssignedTo != user.UserID() {
		t.Fatal("commercial should own the prospects they create")
	}
	if names := bus.names(); len(names) != 1 || names[0] != "prospects.prospect.created" {
		t.Fatalf("unexpected events %v", names)
	}
}

func TestCreateDerivesAgeFromBirthDate(t *testing.T) {
	svc, _, _ := newTestService()
	birth := transport.Date{Time: time.Date(1958, 7, 1, 0, 0, 0, 0, time.UTC)}

	resp, err := svc.Create(context.Background(), manager(), transport.CreateProspectRequest{
		FirstName: "Paul", LastName: "Durand", BirthDate: &birth, Age: 30,
		BudgetMonthly: 60, HealthStatus: "good", UrgencyLevel: "medium",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Birthday not reached yet on 2026-06-15.
	if resp.Age != 67 {
		t.Fatalf("expected age 67, got %d", resp.Age)
	}
	if resp.Score != 95 || resp.Segment != "standard" {
		t.Fatalf("expected 95/standard, got %d/%s", resp.Score, resp.Segment)
	}
	if resp.AssignedTo != nil {
		t.Fatal("manager-created prospects stay unassigned unless requested")
	}
}

func TestCreateRequiresAge(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Create(context.Background(), manager(), transport.CreateProspectRequest{
		FirstName: "A", LastName: "B", BudgetMonthly: 50, HealthStatus: "good", UrgencyLevel: "low",
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateRescoresFromMergedInputs(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	user := manager()
	created, err := svc.Create(ctx, user, transport.CreateProspectRequest{
		FirstName: "Anne", LastName: "Petit", Age: 55, BudgetMonthly: 40,
		HealthStatus: "average", UrgencyLevel: "low",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Score != 55 || created.Segment != "standard" {
		t.Fatalf("expected 55/standard, got %d/%s", created.Score, created.Segment)
	}

	age := 65
	budget := 90.0
	updated, err := svc.Update(ctx, user, created.ID, transport.UpdateProspectRequest{Age: &age, BudgetMonthly: &budget})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	// 50 + 20 (age) + 10 (budget) + 5 (average) + 0 (low)
	if updated.Score != 85 || updated.Segment != "premium" {
		t.Fatalf("expected 85/premium, got %d/%s", updated.Score, updated.Segment)
	}
}

func TestBudgetIsScoredAtStoredPrecision(t *testing.T) {
	cases := []struct {
		budget      float64
		wantBudget  float64
		wantScore   int
		wantSegment string
	}{
		{79.996, 80, 80, "premium"},
		{99.995, 100, 85, "premium"},
		{79.994, 79.99, 80, "standard"},
		{49.999, 50, 80, "standard"},
	}
	for _, tc := range cases {
		svc, repo, _ := newTestService()
		resp, err := svc.Create(context.Background(), manager(), transport.CreateProspectRequest{
			FirstName: "Odette", LastName: "Garnier", Age: 65, BudgetMonthly: tc.budget,
			HealthStatus: "poor", UrgencyLevel: "low",
		})
		if err != nil {
			t.Fatalf("budget %v: unexpected error: %v", tc.budget, err)
		}
		stored := repo.prospects[resp.ID]
		if stored.BudgetMonthly != tc.wantBudget || resp.Score != tc.wantScore || resp.Segment != tc.wantSegment {
			t.Errorf("budget %v: got %v %d/%s, want %v %d/%s", tc.budget,
				stored.BudgetMonthly, resp.Score, resp.Segment, tc.wantBudget, tc.wantScore, tc.wantSegment)
		}

		preview, err := svc.ScorePreview(transport.ScorePreviewRequest{
			Age: 65, BudgetMonthly: tc.budget, HealthStatus: "poor", UrgencyLevel: "low",
		})
		if err != nil || preview.Score != tc.wantScore || preview.Segment != tc.wantSegment {
			t.Errorf("budget %v: preview %+v err=%v disagrees with stored record", tc.budget, preview, err)
		}
	}
}

func TestBudgetBelowOneCentIsRejected(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Create(context.Background(), manager(), transport.CreateProspectRequest{
		FirstName: "A", LastName: "B", Age: 70, BudgetMonthly: 0.004, HealthStatus: "good", UrgencyLevel: "low",
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateRoundsBudgetBeforeScoring(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	user := manager()
	created, _ := svc.Create(ctx, user, transport.CreateProspectRequest{
		FirstName: "Simone", LastName: "Fabre", Age: 65, BudgetMonthly: 40,
		HealthStatus: "poor", UrgencyLevel: "low",
	})

	budget := 79.996
	updated, err := svc.Update(ctx, user, created.ID, transport.UpdateProspectRequest{BudgetMonthly: &budget})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if repo.prospects[created.ID].BudgetMonthly != 80 || updated.Segment != "premium" {
		t.Fatalf("expected 80 and premium, got %v and %s", repo.prospects[created.ID].BudgetMonthly, updated.Segment)
	}
}

func TestUpdateRejectsFutureBirthDate(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	user := manager()
	created, _ := svc.Create(ctx, user, transport.CreateProspectRequest{
		FirstName: "Yvonne", LastName: "Caron", Age: 67, BudgetMonthly: 120,
		HealthStatus: "excellent", UrgencyLevel: "high",
	})

	future := transport.Date{Time: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}
	_, err := svc.Update(ctx, user, created.ID, transport.UpdateProspectRequest{BirthDate: &future})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	stored := repo.prospects[created.ID]
	if stored.Age != 67 || stored.Score != 100 || stored.Segment != "premium" || stored.BirthDate != nil {
		t.Fatalf("rejected update must not change the prospect: %+v", stored)
	}
}

func TestUpdateAgeReplacesBirthDate(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	user := manager()
	birth := transport.Date{Time: time.Date(1955, 6, 15, 0, 0, 0, 0, time.UTC)}
	created, err := svc.Create(ctx, user, transport.CreateProspectRequest{
		FirstName: "Marcel", LastName: "Roche", BirthDate: &birth, BudgetMonthly: 120,
		HealthStatus: "excellent", UrgencyLevel: "high",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Age != 71 {
		t.Fatalf("expected age 71, got %d", created.Age)
	}

	age := 50
	updated, err := svc.Update(ctx, user, created.ID, transport.UpdateProspectRequest{Age: &age})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Age != 50 || updated.Score != 90 || updated.Segment != "standard" || updated.BirthDate != nil {
		t.Fatalf("unexpected prospect after age edit %+v", updated)
	}

	changed, err := svc.Rescore(ctx)
	if err != nil {
		t.Fatalf("rescore: %v", err)
	}
	if got := repo.prospects[created.ID]; changed != 0 || got.Age != 50 || got.Segment != "standard" {
		t.Fatalf("rescore reverted the age edit: changed=%d prospect=%+v", changed, got)
	}
}

func TestUpdateWithoutScoringInputsKeepsScore(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	user := manager()
	created, _ := svc.Create(ctx, user, transport.CreateProspectRequest{
		FirstName: "Luc", LastName: "Moreau", Age: 72, BudgetMonthly: 60,
		HealthStatus: "good", UrgencyLevel: "medium",
	})

	notes := "client prudent"
	if _, err := svc.Update(ctx, user, created.ID, transport.UpdateProspectRequest{Notes: &notes}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := repo.prospects[created.ID].Score; got != 95 {
		t.Fatalf("score changed without scoring inputs: %d", got)
	}
}

func TestCommercialCannotSeeOthersProspects(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	owner := commercial()
	created, _ := svc.Create(ctx, owner, transport.CreateProspectRequest{
		FirstName: "Marie", LastName: "Roux", Age: 70, BudgetMonthly: 100,
		HealthStatus: "good", UrgencyLevel: "low",
	})

	if _, err := svc.Get(ctx, commercial(), created.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found for another commercial, got %v", err)
	}
	if _, err := svc.Get(ctx, manager(), created.ID); err != nil {
		t.Fatalf("manager should see every prospect: %v", err)
	}

	list, err := svc.List(ctx, commercial(), transport.ListProspectsRequest{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list.Total != 0 || list.PageSize != defaultPageSize || list.Page != 1 {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestChangeStatus(t *testing.T) {
	svc, repo, bus := newTestService()
	ctx := context.Background()
	user := manager()
	created, _ := svc.Create(ctx, user, transport.CreateProspectRequest{
		FirstName: "Henri", LastName: "Blanc", Age: 80, BudgetMonthly: 150,
		HealthStatus: "poor", UrgencyLevel: "high",
	})

	resp, err := svc.ChangeStatus(ctx, user, created.ID, transport.ChangeStatusRequest{Status: "contacted", Reason: "premier appel"})
	if err != nil {
		t.Fatalf("change status: %v", err)
	}
	if resp.Status != "contacted" || len(repo.history) != 1 || *repo.history[0].Reason != "premier appel" {
		t.Fatalf("history not recorded: %+v", repo.history)
	}

	if _, err := svc.ChangeStatus(ctx, user, created.ID, transport.ChangeStatusRequest{Status: "closed_won"}); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("contacted -> closed_won should conflict, got %v", err)
	}

	if _, err := svc.ChangeStatus(ctx, user, created.ID, transport.ChangeStatusRequest{Status: "contacted"}); err != nil {
		t.Fatalf("same status should be a no-op: %v", err)
	}
	if len(repo.history) != 1 {
		t.Fatal("no-op change must not write history")
	}

	names := bus.names()
	if names[len(names)-1] != "prospects.prospect.status_changed" {
		t.Fatalf("unexpected events %v", names)
	}
}

func TestAssignRequiresManager(t *testing.T) {
	svc, _, bus := newTestService()
	ctx := context.Background()
	boss := manager()
	created, _ := svc.Create(ctx, boss, transport.CreateProspectRequest{
		FirstName: "Rose", LastName: "Lemoine", Age: 62, BudgetMonthly: 85,
		HealthStatus: "good", UrgencyLevel: "medium",
	})
	assignee := uuid.New()
	req := transport.AssignProspectRequest{AssigneeID: transport.OptionalUUID{Value: &assignee, Set: true}}

	if _, err := svc.Assign(ctx, commercial(), created.ID, req); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	resp, err := svc.Assign(ctx, boss, created.ID, req)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if resp.AssignedTo == nil || *resp.AssignedTo != assignee {
		t.Fatal("assignee not stored")
	}
	names := bus.names()
	if names[len(names)-1] != "prospects.prospect.assigned" {
		t.Fatalf("unexpected events %v", names)
	}
}

func TestArchiveHidesProspect(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	user := manager()
	created, _ := svc.Create(ctx, user, transport.CreateProspectRequest{
		FirstName: "Noel", LastName: "Garnier", Age: 66, BudgetMonthly: 70,
		HealthStatus: "good", UrgencyLevel: "low",
	})

	if err := svc.Archive(ctx, user, created.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, err := svc.Get(ctx, user, created.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("archived prospect still visible: %v", err)
	}
}

func TestScorePreview(t *testing.T) {
	svc, _, _ := newTestService()
	resp, err := svc.ScorePreview(transport.ScorePreviewRequest{Age: 72, BudgetMonthly: 60, HealthStatus: "good", UrgencyLevel: "medium"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Score != 95 || resp.Segment != "standard" {
		t.Fatalf("expected 95/standard, got %+v", resp)
	}
}

func TestComparatorUsesProspectFields(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	user := manager()
	created, _ := svc.Create(ctx, user, transport.CreateProspectRequest{
		FirstName: "Odile", LastName: "Faure", Age: 74, BudgetMonthly: 110,
		HealthStatus: "good", UrgencyLevel: "low", PostalCode: "69003",
	})

	widget, err := svc.Comparator(ctx, user, created.ID)
	if err != nil {
		t.Fatalf("comparator: %v", err)
	}
	if widget.Age != 74 || widget.Budget != 110 || widget.PostalCode != "69003" {
		t.Fatalf("unexpected widget %+v", widget)
	}
}

func TestRescoreRefreshesAgeFromBirthDate(t *testing.T) {
	svc, repo, _ := newTestService()
	birth := time.Date(1966, 1, 10, 0, 0, 0, 0, time.UTC)
	id := uuid.New()
	repo.prospects[id] = repository.Prospect{
		ID: id, BirthDate: &birth, Age: 59, BudgetMonthly: 90,
		HealthStatus: "good", UrgencyLevel: "low", Score: 70, Segment: "standard", Status: "new",
	}

	changed, err := svc.Rescore(context.Background())
	if err != nil {
		t.Fatalf("rescore: %v", err)
	}
	got := repo.prospects[id]
	if changed != 1 || got.Age != 60 || got.Score != 90 || got.Segment != "premium" {
		t.Fatalf("unexpected rescore result changed=%d prospect=%+v", changed, got)
	}
}
