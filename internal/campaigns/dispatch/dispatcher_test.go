package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"premunia_crm_backend/internal/campaigns/catalogue"
	"premunia_crm_backend/internal/campaigns/repository"
	"premunia_crm_backend/internal/events"
	prospectrepo "premunia_crm_backend/internal/prospects/repository"
	"premunia_crm_backend/platform/logger"
	"premunia_crm_backend/platform/metrics"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memoryCampaigns struct {
	campaign  repository.Campaign
	completed []int
}

func (m *memoryCampaigns) GetByID(context.Context, uuid.UUID) (repository.Campaign, error) {
	return m.campaign, nil
}

func (m *memoryCampaigns) CompleteDispatch(_ context.Context, _ uuid.UUID, sent int) (repository.Campaign, error) {
	if m.campaign.Status != "active" {
		return repository.Campaign{}, repository.ErrNotFound
	}
	m.completed = append(m.completed, sent)
	m.campaign.Status = "completed"
	m.campaign.SentCount += sent
	return m.campaign, nil
}

type staticTargets struct {
	segments []string
	list     []prospectrepo.Prospect
}

func (s *staticTargets) GetByID(_ context.Context, id uuid.UUID) (prospectrepo.Prospect, error) {
	for _, p := range s.list {
		if p.ID == id {
			return p, nil
		}
	}
	return prospectrepo.Prospect{}, prospectrepo.ErrNotFound
}

func (s *staticTargets) ListTargets(_ context.Context, segment string) ([]prospectrepo.Prospect, error) {
	s.segments = append(s.segments, segment)
	return s.list, nil
}

type flakySender struct {
	mu     sync.Mutex
	sent   map[string]string
	failTo string
}

func (s *flakySender) SendAppointmentReminder(context.Context, string, string, string, string, string) error {
	return nil
}
func (s *flakySender) SendTaskReminder(context.Context, string, string, string) error { return nil }
func (s *flakySender) SendProspectAssigned(context.Context, string, string, string, int) error {
	return nil
}

func (s *flakySender) SendCampaignMessage(_ context.Context, to, subject, _ string) error {
	if to == s.failTo {
		return errors.New("mailbox unavailable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[to] = subject
	return nil
}

type recordingBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, e)
}
func (b *recordingBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}
func (b *recordingBus) Subscribe(string, events.Handler) {}

func strPtr(s string) *string { return &s }

func prospect(first, mail string) prospectrepo.Prospect {
	return prospectrepo.Prospect{ID: uuid.New(), FirstName: first, LastName: "Martin", Email: strPtr(mail), Segment: "premium"}
}

func newDispatcher(t *testing.T, c repository.Campaign, targets []prospectrepo.Prospect, sender *flakySender) (*Dispatcher, *memoryCampaigns, *staticTargets, *recordingBus, *metrics.Registry) {
	t.Helper()
	templates, err := catalogue.Load()
	if err != nil {
		t.Fatalf("load catalogue: %v", err)
	}
	store := &memoryCampaigns{campaign: c}
	lister := &staticTargets{list: targets}
	bus := &recordingBus{}
	m := metrics.New()
	return New(store, lister, templates, sender, bus, m, logger.Discard()), store, lister, bus, m
}

func TestDispatchEmailCampaign(t *testing.T) {
	c := repository.Campaign{ID: uuid.New(), Type: "email", Status: "active", TargetSegment: "premium", TemplateKey: strPtr("welcome_senior")}
	targets := []prospectrepo.Prospect{
		prospect("Jeanne", "jeanne@example.fr"),
		prospect("Paul", "paul@example.fr"),
		prospect("Louis", "bounce@example.fr"),
	}
	sender := &flakySender{sent: map[string]string{}, failTo: "bounce@example.fr"}
	d, store, lister, bus, m := newDispatcher(t, c, targets, sender)

	if err := d.Dispatch(context.Background(), c.ID, uuid.New()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if len(lister.segments) != 1 || lister.segments[0] != "premium" {
		t.Fatalf("unexpected segment lookups %v", lister.segments)
	}
	if sender.sent["jeanne@example.fr"] != "Jeanne, bienvenue chez Premunia" {
		t.Fatalf("unexpected subjects %v", sender.sent)
	}
	if len(store.completed) != 1 || store.completed[0] != 2 {
		t.Fatalf("expected 2 delivered, got %v", store.completed)
	}
	done, ok := bus.published[0].(events.CampaignCompleted)
	if !ok || done.Targeted != 3 || done.Sent != 2 || done.Failed != 1 {
		t.Fatalf("unexpected completion event %+v", bus.published)
	}
	if got := testutil.ToFloat64(m.CampaignMessages.WithLabelValues("email", "error")); got != 1 {
		t.Fatalf("expected one failed message metric, got %v", got)
	}
}

func TestDispatchAllSegmentListsEveryone(t *testing.T) {
	c := repository.Campaign{ID: uuid.New(), Type: "sms", Status: "active", TargetSegment: "all"}
	targets := []prospectrepo.Prospect{prospect("A", "a@x.fr"), prospect("B", "b@x.fr")}
	d, store, lister, _, _ := newDispatcher(t, c, targets, &flakySender{sent: map[string]string{}})

	if err := d.Dispatch(context.Background(), c.ID, uuid.Nil); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if lister.segments[0] != "" {
		t.Fatalf("all should list without a segment filter, got %q", lister.segments[0])
	}
	if store.completed[0] != 2 {
		t.Fatalf("sms campaigns count their targets, got %v", store.completed)
	}
}

func TestDispatchSkipsInactiveCampaign(t *testing.T) {
	c := repository.Campaign{ID: uuid.New(), Type: "email", Status: "paused", TemplateKey: strPtr("welcome_senior")}
	sender := &flakySender{sent: map[string]string{}}
	d, store, lister, _, _ := newDispatcher(t, c, []prospectrepo.Prospect{prospect("A", "a@x.fr")}, sender)

	if err := d.Dispatch(context.Background(), c.ID, uuid.Nil); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(lister.segments) != 0 || len(sender.sent) != 0 || len(store.completed) != 0 {
		t.Fatal("paused campaign must not be sent")
	}
}

func TestDispatchUnknownTemplateFails(t *testing.T) {
	c := repository.Campaign{ID: uuid.New(), Type: "email", Status: "active", TargetSegment: "all", TemplateKey: strPtr("missing")}
	d, store, _, _, _ := newDispatcher(t, c, []prospectrepo.Prospect{prospect("A", "a@x.fr")}, &flakySender{sent: map[string]string{}})

	if err := d.Dispatch(context.Background(), c.ID, uuid.Nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
	if len(store.completed) != 0 {
		t.Fatal("campaign must stay active for retry")
	}
}

func TestSendTemplate(t *testing.T) {
	open := prospect("Jeanne", "jeanne@example.fr")
	won := prospect("Paul", "paul@example.fr")
	won.Status = "closed_won"
	noMail := prospect("Louis", "")
	sender := &flakySender{sent: map[string]string{}}
	d, _, _, _, m := newDispatcher(t, repository.Campaign{}, []prospectrepo.Prospect{open, won, noMail}, sender)
	ctx := context.Background()

	for _, id := range []uuid.UUID{open.ID, won.ID, noMail.ID, uuid.New()} {
		if err := d.SendTemplate(ctx, "welcome_senior", id); err != nil {
			t.Fatalf("send template to %s: %v", id, err)
		}
	}
	if err := d.SendTemplate(ctx, "retired_template", open.ID); err != nil {
		t.Fatalf("unknown template should be dropped: %v", err)
	}

	if len(sender.sent) != 1 || sender.sent["jeanne@example.fr"] != "Jeanne, bienvenue chez Premunia" {
		t.Fatalf("unexpected deliveries %v", sender.sent)
	}
	if got := testutil.ToFloat64(m.CampaignMessages.WithLabelValues("email", "ok")); got != 1 {
		t.Fatalf("expected one delivered message metric, got %v", got)
	}
}

func TestSendTemplateReturnsSendError(t *testing.T) {
	p := prospect("Louis", "bounce@example.fr")
	d, _, _, _, _ := newDispatcher(t, repository.Campaign{}, []prospectrepo.Prospect{p}, &flakySender{sent: map[string]string{}, failTo: "bounce@example.fr"})

	if err := d.SendTemplate(context.Background(), "welcome_senior", p.ID); err == nil {
		t.Fatal("expected the send error so the job is retried")
	}
}
