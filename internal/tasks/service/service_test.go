package service

import (
	"context"
	"testing"
	"time"

	"premunia_crm_backend/internal/events"
	"premunia_crm_backend/internal/scheduler"
	"premunia_crm_backend/internal/tasks/repository"
	"premunia_crm_backend/internal/tasks/transport"
	"premunia_crm_backend/platform/apperr"
	"premunia_crm_backend/platform/httpkit"
	"premunia_crm_backend/platform/logger"
	"premunia_crm_backend/platform/metrics"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var testNow = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

type fakeRepo struct {
	tasks map[uuid.UUID]repository.Task
}

func (f *fakeRepo) Create(_ context.Context, p repository.CreateTaskParams) (repository.Task, error) {
	createdBy := p.CreatedBy
	t := repository.Task{
		ID: uuid.New(), Title: p.Title, Description: p.Description, ProspectID: p.ProspectID,
		AssignedTo: p.AssignedTo, CreatedBy: &createdBy, Status: "pending", Priority: p.Priority,
		DueDate: p.DueDate, CreatedAt: testNow, UpdatedAt: testNow,
	}
	f.tasks[t.ID] = t
	return t, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return repository.Task{}, repository.ErrNotFound
	}
	return t, nil
}

func (f *fakeRepo) Update(_ context.Context, id uuid.UUID, p repository.UpdateTaskParams) (repository.Task, error) {
	t := f.tasks[id]
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.DueDate != nil {
		t.DueDate = p.DueDate
	}
	if p.AssignedToSet {
		t.AssignedTo = p.AssignedTo
	}
	f.tasks[id] = t
	return t, nil
}

func (f *fakeRepo) Complete(_ context.Context, id uuid.UUID) (repository.Task, error) {
	t := f.tasks[id]
	t.Status = "done"
	if t.CompletedAt == nil {
		now := testNow
		t.CompletedAt = &now
	}
	f.tasks[id] = t
	return t, nil
}

func (f *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.tasks, id)
	return nil
}

func (f *fakeRepo) List(context.Context, repository.ListParams) ([]repository.Task, int, error) {
	return nil, 0, nil
}

type fakeReminders struct {
	taskRuns []time.Time
}

func (f *fakeReminders) ScheduleAppointmentReminder(context.Context, scheduler.AppointmentReminderPayload, time.Time) error {
	return nil
}

func (f *fakeReminders) ScheduleTaskReminder(_ context.Context, _ scheduler.TaskReminderPayload, runAt time.Time) error {
	f.taskRuns = append(f.taskRuns, runAt)
	return nil
}

type countingBus struct{ published []events.Event }

func (b *countingBus) Publish(_ context.Context, e events.Event)             { b.published = append(b.published, e) }
func (b *countingBus) PublishSync(ctx context.Context, e events.Event) error { b.Publish(ctx, e); return nil }
func (b *countingBus) Subscribe(string, events.Handler)                    {}

func newTestService() (*Service, *fakeRepo, *fakeReminders, *countingBus, *metrics.Registry) {
	repo := &fakeRepo{tasks: map[uuid.UUID]repository.Task{}}
	reminders := &fakeReminders{}
	bus := &countingBus{}
	m := metrics.New()
	svc := New(repo, bus, reminders, m, logger.Discard())
	svc.now = func() time.Time { return testNow }
	return svc, repo, reminders, bus, m
}

func TestCreateSchedulesReminderAnHourBefore(t *testing.T) {
	svc, _, reminders, _, _ := newTestService()
	due := testNow.Add(5 * time.Hour)
	user := httpkit.NewIdentity(uuid.New(), "", httpkit.RoleCommercial)

	task, err := svc.Create(context.Background(), user, transport.CreateTaskRequest{Title: "Rappeler Mme Martin", DueDate: &due})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Priority != defaultPriority || task.Status != transport.TaskStatusPending {
		t.Fatalf("unexpected defaults %+v", task)
	}
	if task.AssignedTo == nil || *task.AssignedTo != user.UserID() {
		t.Fatal("task should default to the creator")
	}
	if len(reminders.taskRuns) != 1 || !reminders.taskRuns[0].Equal(due.Add(-time.Hour)) {
		t.Fatalf("unexpected reminders %v", reminders.taskRuns)
	}
}

func TestCreateSkipsPastReminder(t *testing.T) {
	svc, _, reminders, _, _ := newTestService()
	due := testNow.Add(30 * time.Minute)
	if _, err := svc.Create(context.Background(), httpkit.NewIdentity(uuid.New(), "", httpkit.RoleManager), transport.CreateTaskRequest{Title: "Urgent", DueDate: &due}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reminders.taskRuns) != 0 {
		t.Fatal("reminder in the past must not be scheduled")
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	svc, _, _, bus, m := newTestService()
	ctx := context.Background()
	user := httpkit.NewIdentity(uuid.New(), "", httpkit.RoleCommercial)
	task, _ := svc.Create(ctx, user, transport.CreateTaskRequest{Title: "Envoyer devis"})

	first, err := svc.Complete(ctx, user, task.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if first.Status != transport.TaskStatusDone || first.CompletedAt == nil {
		t.Fatalf("task not completed: %+v", first)
	}
	if _, err := svc.Complete(ctx, user, task.ID); err != nil {
		t.Fatalf("second complete: %v", err)
	}

	completions := 0
	for _, e := range bus.published {
		if _, ok := e.(events.TaskCompleted); ok {
			completions++
		}
	}
	if completions != 1 {
		t.Fatalf("expected one completion event, got %d", completions)
	}
	if got := testutil.ToFloat64(m.TasksCompleted); got != 1 {
		t.Fatalf("expected one completion metric, got %v", got)
	}
}

func TestWritesPublishTaskChanges(t *testing.T) {
	svc, _, _, bus, _ := newTestService()
	ctx := context.Background()
	user := httpkit.NewIdentity(uuid.New(), "", httpkit.RoleCommercial)

	task, err := svc.Create(ctx, user, transport.CreateTaskRequest{Title: "Relance"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	title := "Relance mutuelle"
	if _, err := svc.Update(ctx, user, task.ID, transport.UpdateTaskRequest{Title: &title}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := svc.Delete(ctx, user, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	want := []string{events.ChangeCreated, events.ChangeUpdated, events.ChangeDeleted}
	if len(bus.published) != len(want) {
		t.Fatalf("expected %d events, got %+v", len(want), bus.published)
	}
	for i, e := range bus.published {
		changed, ok := e.(events.TaskChanged)
		if !ok || changed.Change != want[i] || changed.TaskID != task.ID {
			t.Fatalf("event %d: got %+v, want %s", i, e, want[i])
		}
	}
}

func TestCommercialCannotTouchOthersTasks(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	ctx := context.Background()
	owner := httpkit.NewIdentity(uuid.New(), "", httpkit.RoleCommercial)
	task, _ := svc.Create(ctx, owner, transport.CreateTaskRequest{Title: "Relance"})

	other := httpkit.NewIdentity(uuid.New(), "", httpkit.RoleCommercial)
	if err := svc.Delete(ctx, other, task.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateReassignRequiresManager(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	ctx := context.Background()
	owner := httpkit.NewIdentity(uuid.New(), "", httpkit.RoleCommercial)
	task, _ := svc.Create(ctx, owner, transport.CreateTaskRequest{Title: "Relance"})

	target := uuid.New()
	req := transport.UpdateTaskRequest{AssignedTo: transport.OptionalUUID{Value: &target, Set: true}}
	if _, err := svc.Update(ctx, owner, task.ID, req); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestIsOverdue(t *testing.T) {
	past := testNow.Add(-time.Minute)
	future := testNow.Add(time.Minute)
	cases := []struct {
		status string
		due    *time.Time
		want   bool
	}{
		{"pending", &past, true},
		{"in_progress", &past, false},
		{"pending", &future, false},
		{"pending", nil, false},
	}
	for _, tc := range cases {
		if got := IsOverdue(tc.status, tc.due, testNow); got != tc.want {
			t.Errorf("IsOverdue(%s, %v) = %v, want %v", tc.status, tc.due, got, tc.want)
		}
	}
}
