package service

import (
	"context"
	"slices"
	"testing"
	"time"

	"premunia_crm_backend/internal/campaigns/catalogue"
	"premunia_crm_backend/internal/campaigns/repository"
	"premunia_crm_backend/internal/campaigns/transport"
	"premunia_crm_backend/internal/events"
	"premunia_crm_backend/internal/scheduler"
	"premunia_crm_backend/platform/apperr"
	"premunia_crm_backend/platform/httpkit"
	"premunia_crm_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRepo struct {
	items map[uuid.UUID]repository.Campaign
}

func (f *fakeRepo) Create(_ context.Context, p repository.CreateCampaignParams) (repository.Campaign, error) {
	createdBy := p.CreatedBy
	c := repository.Campaign{
		ID:            uuid.New(),
		Name:          p.Name,
		Description:   p.Description,
		Type:          p.Type,
		TargetSegment: p.TargetSegment,
		Status:        "draft",
		TemplateKey:   p.TemplateKey,
		CreatedBy:     &createdBy,
	}
	f.items[c.ID] = c
	return c, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Campaign, error) {
	c, ok := f.items[id]
	if !ok {
		return repository.Campaign{}, repository.ErrNotFound
	}
	return c, nil
}

func (f *fakeRepo) Update(_ context.Context, id uuid.UUID, p repository.UpdateCampaignParams) (repository.Campaign, error) {
	c, ok := f.items[id]
	if !ok || (c.Status != "draft" && c.Status != "paused") {
		return repository.Campaign{}, repository.ErrNotFound
	}
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Type != nil {
		c.Type = *p.Type
	}
	if p.TemplateKey != nil {
		c.TemplateKey = p.TemplateKey
	}
	f.items[id] = c
	return c, nil
}

func (f *fakeRepo) SetStatus(_ context.Context, id uuid.UUID, status string, from ...string) (repository.Campaign, error) {
	c, ok := f.items[id]
	if !ok || !slices.Contains(from, c.Status) {
		return repository.Campaign{}, repository.ErrNotFound
	}
	c.Status = status
	f.items[id] = c
	return c, nil
}

func (f *fakeRepo) AddEngagement(_ context.Context, id uuid.UUID, opened, clicked, converted int) (repository.Campaign, error) {
	c, ok := f.items[id]
	if !ok {
		return repository.Campaign{}, repository.ErrNotFound
	}
	c.OpenedCount += opened
	c.ClickedCount += clicked
	c.ConvertedCount += converted
	f.items[id] = c
	return c, nil
}

func (f *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	c, ok := f.items[id]
	if !ok || c.Status != "draft" {
		return repository.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

func (f *fakeRepo) List(context.Context, repository.ListParams) ([]repository.Campaign, int, error) {
	out := make([]repository.Campaign, 0, len(f.items))
	for _, c := range f.items {
		out = append(out, c)
	}
	return out, len(out), nil
}

type fakeEnqueuer struct {
	payloads  []scheduler.CampaignDispatchPayload
	templates []scheduler.TemplateSendPayload
	runAt     []time.Time
}

func (f *fakeEnqueuer) EnqueueCampaignDispatch(_ context.Context, p scheduler.CampaignDispatchPayload) error {
	f.payloads = append(f.payloads, p)
	return nil
}

func (f *fakeEnqueuer) ScheduleTemplateSend(_ context.Context, p scheduler.TemplateSendPayload, runAt time.Time) error {
	f.templates = append(f.templates, p)
	f.runAt = append(f.runAt, runAt)
	return nil
}

type recordingBus struct{ published []events.Event }

func (b *recordingBus) Publish(_ context.Context, e events.Event)             { b.published = append(b.published, e) }
func (b *recordingBus) PublishSync(ctx context.Context, e events.Event) error { b.Publish(ctx, e); return nil }
func (b *recordingBus) Subscribe(string, events.Handler)                     {}

func newTestService(t *testing.T) (*Service, *fakeRepo, *fakeEnqueuer, *recordingBus) {
	t.Helper()
	templates, err := catalogue.Load()
	if err != nil {
		t.Fatalf("load catalogue: %v", err)
	}
	repo := &fakeRepo{items: map[uuid.UUID]repository.Campaign{}}
	enqueuer := &fakeEnqueuer{}
	bus := &recordingBus{}
	return New(repo, templates, enqueuer, bus, logger.Discard()), repo, enqueuer, bus
}

var marketing = httpkit.NewIdentity(uuid.New(), "marketing@premunia.fr", httpkit.RoleMarketing)

func TestCreateRequiresCampaignRole(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	commercial := httpkit.NewIdentity(uuid.New(), "", httpkit.RoleCommercial)

	_, err := svc.Create(context.Background(), commercial, transport.CreateCampaignRequest{Name: "Relance", Type: "email"})
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCreateDefaultsSegmentAndChecksTemplate(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	c, err := svc.Create(context.Background(), marketing, transport.CreateCampaignRequest{Name: "Accueil", Type: "email", TemplateKey: "welcome_senior"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.TargetSegment != transport.SegmentAll || c.Status != transport.CampaignStatusDraft {
		t.Fatalf("unexpected campaign %+v", c)
	}

	_, err = svc.Create(context.Background(), marketing, transport.CreateCampaignRequest{Name: "SMS", Type: "sms", TemplateKey: "welcome_senior"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected channel mismatch to fail validation, got %v", err)
	}

	_, err = svc.Create(context.Background(), marketing, transport.CreateCampaignRequest{Name: "Inconnu", Type: "email", TemplateKey: "nope"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected unknown template to fail validation, got %v", err)
	}
}

func TestLaunchQueuesDispatchOnce(t *testing.T) {
	svc, _, enqueuer, bus := newTestService(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, marketing, transport.CreateCampaignRequest{Name: "Accueil", Type: "email", TemplateKey: "welcome_senior", TargetSegment: "premium"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	bus.published = nil
	launched, err := svc.Launch(ctx, marketing, c.ID)
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if launched.Status != transport.CampaignStatusActive {
		t.Fatalf("expected active, got %s", launched.Status)
	}
	if len(enqueuer.payloads) != 1 || enqueuer.payloads[0].CampaignID != c.ID.String() {
		t.Fatalf("unexpected enqueued payloads %+v", enqueuer.payloads)
	}
	if _, ok := bus.published[0].(events.CampaignLaunched); !ok {
		t.Fatalf("expected CampaignLaunched, got %+v", bus.published)
	}

	if _, err := svc.Launch(ctx, marketing, c.ID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("relaunching an active campaign should conflict, got %v", err)
	}
	if len(enqueuer.payloads) != 1 {
		t.Fatal("dispatch must not be queued twice")
	}
}

func TestLaunchEmailWithoutTemplate(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	c, err := svc.Create(context.Background(), marketing, transport.CreateCampaignRequest{Name: "Vide", Type: "email"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Launch(context.Background(), marketing, c.ID); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPauseAndEdit(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	c, _ := svc.Create(ctx, marketing, transport.CreateCampaignRequest{Name: "Appels", Type: "call"})

	if _, err := svc.Pause(ctx, marketing, c.ID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("pausing a draft should conflict, got %v", err)
	}
	if _, err := svc.Pause(ctx, marketing, uuid.New()); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("pausing a missing campaign should be not found, got %v", err)
	}

	if _, err := svc.Launch(ctx, marketing, c.ID); err != nil {
		t.Fatalf("launch: %v", err)
	}
	name := "Appels seniors"
	if _, err := svc.Update(ctx, marketing, c.ID, transport.UpdateCampaignRequest{Name: &name}); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("active campaigns are read-only, got %v", err)
	}

	if _, err := svc.Pause(ctx, marketing, c.ID); err != nil {
		t.Fatalf("pause: %v", err)
	}
	updated, err := svc.Update(ctx, marketing, c.ID, transport.UpdateCampaignRequest{Name: &name})
	if err != nil {
		t.Fatalf("update paused: %v", err)
	}
	if updated.Name != name {
		t.Fatalf("expected renamed campaign, got %q", updated.Name)
	}
}

func TestRecordEngagement(t *testing.T) {
	svc, repo, _, bus := newTestService(t)
	ctx := context.Background()
	c, _ := svc.Create(ctx, marketing, transport.CreateCampaignRequest{Name: "SMS", Type: "sms"})

	if _, err := svc.RecordEngagement(ctx, c.ID, transport.RecordEngagementRequest{Opened: 1}); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("draft engagement should conflict, got %v", err)
	}

	stored := repo.items[c.ID]
	stored.Status = "completed"
	repo.items[c.ID] = stored

	resp, err := svc.RecordEngagement(ctx, c.ID, transport.RecordEngagementRequest{Opened: 4, Clicked: 2, Converted: 1})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if resp.OpenedCount != 4 || resp.ClickedCount != 2 || resp.ConvertedCount != 1 {
		t.Fatalf("unexpected counts %+v", resp)
	}
	last, ok := bus.published[len(bus.published)-1].(events.CampaignChanged)
	if !ok || last.Change != events.ChangeEngaged || last.CampaignID != c.ID {
		t.Fatalf("expected an engagement change event, got %+v", bus.published)
	}
}

func TestDeleteOnlyDrafts(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()
	c, _ := svc.Create(ctx, marketing, transport.CreateCampaignRequest{Name: "SMS", Type: "sms"})

	stored := repo.items[c.ID]
	stored.Status = "active"
	repo.items[c.ID] = stored
	if err := svc.Delete(ctx, marketing, c.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found for active campaign, got %v", err)
	}

	stored.Status = "draft"
	repo.items[c.ID] = stored
	if err := svc.Delete(ctx, marketing, c.ID); err != nil {
		t.Fatalf("delete draft: %v", err)
	}
}

func TestTemplatesListsCatalogue(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	if len(svc.Templates()) != 4 {
		t.Fatalf("expected 4 templates, got %d", len(svc.Templates()))
	}
}

type subscribingBus struct {
	handlers map[string]events.Handler
}

func (b *subscribingBus) Publish(ctx context.Context, e events.Event) { _ = b.PublishSync(ctx, e) }
func (b *subscribingBus) PublishSync(ctx context.Context, e events.Event) error {
	if h, ok := b.handlers[e.EventName()]; ok {
		return h.Handle(ctx, e)
	}
	return nil
}
func (b *subscribingBus) Subscribe(name string, h events.Handler) { b.handlers[name] = h }

func TestProspectIntakeSchedulesWelcomeTemplate(t *testing.T) {
	svc, _, enqueuer, _ := newTestService(t)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	bus := &subscribingBus{handlers: map[string]events.Handler{}}
	svc.RegisterTriggers(bus)
	ctx := context.Background()

	premium := uuid.New()
	if err := bus.PublishSync(ctx, events.ProspectCreated{BaseEvent: events.NewBaseEvent(), ProspectID: premium, Segment: "premium"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := bus.PublishSync(ctx, events.ProspectCreated{BaseEvent: events.NewBaseEvent(), ProspectID: uuid.New(), Segment: "standard"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(enqueuer.templates) != 1 {
		t.Fatalf("expected one scheduled template, got %+v", enqueuer.templates)
	}
	got := enqueuer.templates[0]
	if got.TemplateKey != "welcome_senior" || got.ProspectID != premium.String() || !enqueuer.runAt[0].Equal(now) {
		t.Fatalf("unexpected scheduled template %+v at %v", got, enqueuer.runAt[0])
	}
}

func TestTriggersNeedAJobQueue(t *testing.T) {
	templates, err := catalogue.Load()
	if err != nil {
		t.Fatalf("load catalogue: %v", err)
	}
	svc := New(&fakeRepo{items: map[uuid.UUID]repository.Campaign{}}, templates, nil, &recordingBus{}, logger.Discard())
	bus := &subscribingBus{handlers: map[string]events.Handler{}}
	svc.RegisterTriggers(bus)
	if len(bus.handlers) != 0 {
		t.Fatal("triggers must not subscribe without a job queue")
	}
}
