package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apptrepo "premunia_crm_backend/internal/appointments/repository"
	"premunia_crm_backend/internal/events"
	taskrepo "premunia_crm_backend/internal/tasks/repository"
	"premunia_crm_backend/platform/config"
	"premunia_crm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	appointmentReminderLead = 24 * time.Hour
	taskReminderLead        = time.Hour
	// reminderSlack tolerates queue latency before a reminder counts as stale.
	reminderSlack = 15 * time.Minute
)

// AppointmentStore is the read side the appointment reminder needs.
type AppointmentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (apptrepo.Appointment, error)
	ProspectName(ctx context.Context, prospectID uuid.UUID) (string, error)
}

// TaskStore is the read side the task reminder needs.
type TaskStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (taskrepo.Task, error)
}

// CampaignDispatcher sends a launched campaign to its targets.
type CampaignDispatcher interface {
	Dispatch(ctx context.Context, campaignID uuid.UUID, requestedBy uuid.UUID) error
}

// TemplateSender delivers a triggered catalogue template to one prospect.
type TemplateSender interface {
	SendTemplate(ctx context.Context, templateKey string, prospectID uuid.UUID) error
}

// WorkerDeps are the stores and ports the task handlers use. A nil
// dispatcher or template sender leaves those tasks unhandled.
type WorkerDeps struct {
	Appointments AppointmentStore
	Tasks        TaskStore
	Campaigns    CampaignDispatcher
	Templates    TemplateSender
	Bus          events.Bus
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	deps   WorkerDeps
	log    *logger.Logger
	now    func() time.Time
}

func NewWorker(cfg config.SchedulerConfig, deps WorkerDeps, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := newWorker(deps, log)
	w.server = server
	return w, nil
}

func newWorker(deps WorkerDeps, log *logger.Logger) *Worker {
	w := &Worker{
		mux:  asynq.NewServeMux(),
		deps: deps,
		log:  log,
		now:  time.Now,
	}

	w.mux.HandleFunc(TaskAppointmentReminder, w.handleAppointmentReminder)
	w.mux.HandleFunc(TaskTaskReminder, w.handleTaskReminder)
	if deps.Campaigns != nil {
		w.mux.HandleFunc(TaskCampaignDispatch, w.handleCampaignDispatch)
	}
	if deps.Templates != nil {
		w.mux.HandleFunc(TaskTemplateSend, w.handleTemplateSend)
	}
	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handleAppointmentReminder re-reads the appointment and drops the reminder
// when it was cancelled, completed or moved since it was scheduled.
func (w *Worker) handleAppointmentReminder(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseAppointmentReminderPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	apptID, err := uuid.Parse(payload.AppointmentID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	appt, err := w.deps.Appointments.GetByID(ctx, apptID)
	if errors.Is(err, apptrepo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if appt.Status != "planned" && appt.Status != "confirmed" {
		return nil
	}
	if !dueWithin(appt.ScheduledAt, w.now(), appointmentReminderLead) {
		w.log.Info("skipping stale appointment reminder", "appointmentId", appt.ID)
		return nil
	}

	var prospectName string
	if appt.ProspectID != nil {
		prospectName, err = w.deps.Appointments.ProspectName(ctx, *appt.ProspectID)
		if err != nil && !errors.Is(err, apptrepo.ErrNotFound) {
			return err
		}
	}

	location := ""
	if appt.Location != nil {
		location = strings.TrimSpace(*appt.Location)
	}

	return w.deps.Bus.PublishSync(ctx, events.AppointmentReminderDue{
		BaseEvent:     events.NewBaseEvent(),
		AppointmentID: appt.ID,
		AssignedTo:    appt.AssignedTo,
		Title:         appt.Title,
		ScheduledAt:   appt.ScheduledAt,
		Location:      location,
		MeetingType:   appt.MeetingType,
		ProspectName:  prospectName,
	})
}

func (w *Worker) handleTaskReminder(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseTaskReminderPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	taskID, err := uuid.Parse(payload.TaskID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	t, err := w.deps.Tasks.GetByID(ctx, taskID)
	if errors.Is(err, taskrepo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if t.Status != "pending" && t.Status != "in_progress" {
		return nil
	}
	if t.AssignedTo == nil || t.DueDate == nil {
		return nil
	}
	if !dueWithin(*t.DueDate, w.now(), taskReminderLead) {
		w.log.Info("skipping stale task reminder", "taskId", t.ID)
		return nil
	}

	return w.deps.Bus.PublishSync(ctx, events.TaskDueSoon{
		BaseEvent:  events.NewBaseEvent(),
		TaskID:     t.ID,
		AssignedTo: *t.AssignedTo,
		Title:      t.Title,
		DueDate:    *t.DueDate,
	})
}

func (w *Worker) handleCampaignDispatch(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseCampaignDispatchPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	campaignID, err := uuid.Parse(payload.CampaignID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	requestedBy, _ := uuid.Parse(payload.RequestedBy)

	return w.deps.Campaigns.Dispatch(ctx, campaignID, requestedBy)
}

func (w *Worker) handleTemplateSend(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseTemplateSendPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	prospectID, err := uuid.Parse(payload.ProspectID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	return w.deps.Templates.SendTemplate(ctx, payload.TemplateKey, prospectID)
}

// dueWithin reports whether at is still ahead of now and no further than
// lead away. A reminder for a moved item arrives too early and fails this.
func dueWithin(at, now time.Time, lead time.Duration) bool {
	until := at.Sub(now)
	return until > 0 && until <= lead+reminderSlack
}
