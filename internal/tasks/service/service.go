package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"premunia_crm_backend/internal/events"
	"premunia_crm_backend/internal/scheduler"
	"premunia_crm_backend/internal/tasks/repository"
	"premunia_crm_backend/internal/tasks/transport"
	"premunia_crm_backend/platform/apperr"
	"premunia_crm_backend/platform/httpkit"
	"premunia_crm_backend/platform/logger"
	"premunia_crm_backend/platform/metrics"
	"premunia_crm_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	msgTaskNotFound = "task not found"
	defaultPriority = 3
	// ReminderLead is how long before the due date the assignee is reminded.
	ReminderLead = time.Hour
)

type Repository interface {
	Create(ctx context.Context, params repository.CreateTaskParams) (repository.Task, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Task, error)
	Update(ctx context.Context, id uuid.UUID, params repository.UpdateTaskParams) (repository.Task, error)
	Complete(ctx context.Context, id uuid.UUID) (repository.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params repository.ListParams) ([]repository.Task, int, error)
}

type Service struct {
	repo      Repository
	eventBus  events.Bus
	reminders scheduler.ReminderScheduler
	metrics   *metrics.Registry
	log       *logger.Logger
	now       func() time.Time
}

func New(repo Repository, eventBus events.Bus, reminders scheduler.ReminderScheduler, m *metrics.Registry, log *logger.Logger) *Service {
	return &Service{
		repo:      repo,
		eventBus:  eventBus,
		reminders: reminders,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

func (s *Service) Create(ctx context.Context, identity httpkit.Identity, req transport.CreateTaskRequest) (transport.TaskResponse, error) {
	priority := req.Priority
	if priority == 0 {
		priority = defaultPriority
	}

	assignee := req.AssignedTo
	if assignee == nil || !identity.IsManager() {
		userID := identity.UserID()
		assignee = &userID
	}

	task, err := s.repo.Create(ctx, repository.CreateTaskParams{
		Title:       sanitize.Text(req.Title),
		Description: optionalText(req.Description),
		ProspectID:  req.ProspectID,
		AssignedTo:  assignee,
		CreatedBy:   identity.UserID(),
		Priority:    priority,
		DueDate:     req.DueDate,
	})
	if err != nil {
		return transport.TaskResponse{}, apperr.Unavailable("tasks.Create", err)
	}

	s.scheduleReminder(ctx, task)
	s.publishChange(ctx, task, events.ChangeCreated)
	return s.toResponse(task), nil
}

func (s *Service) Get(ctx context.Context, identity httpkit.Identity, id uuid.UUID) (transport.TaskResponse, error) {
	task, err := s.ensureAccess(ctx, identity, id)
	if err != nil {
		return transport.TaskResponse{}, err
	}
	return s.toResponse(task), nil
}

func (s *Service) Update(ctx context.Context, identity httpkit.Identity, id uuid.UUID, req transport.UpdateTaskRequest) (transport.TaskResponse, error) {
	current, err := s.ensureAccess(ctx, identity, id)
	if err != nil {
		return transport.TaskResponse{}, err
	}
	if req.Status != nil && *req.Status == transport.TaskStatusDone {
		return s.Complete(ctx, identity, id)
	}

	params := repository.UpdateTaskParams{
		Title:       mapPtr(req.Title, sanitize.Text),
		Description: sanitize.TextPtr(req.Description),
		ProspectID:  req.ProspectID,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
	}
	if req.Status != nil {
		status := string(*req.Status)
		params.Status = &status
	}
	if req.AssignedTo.Set {
		if !identity.IsManager() {
			return transport.TaskResponse{}, apperr.Forbidden("only managers can reassign tasks")
		}
		params.AssignedTo = req.AssignedTo.Value
		params.AssignedToSet = true
	}

	task, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return transport.TaskResponse{}, mapRepoError("tasks.Update", err)
	}

	if req.DueDate != nil && (current.DueDate == nil || !current.DueDate.Equal(*req.DueDate)) {
		s.scheduleReminder(ctx, task)
	}
	s.publishChange(ctx, task, events.ChangeUpdated)
	return s.toResponse(task), nil
}

// Complete marks a task done and records its completion time.
func (s *Service) Complete(ctx context.Context, identity httpkit.Identity, id uuid.UUID) (transport.TaskResponse, error) {
	current, err := s.ensureAccess(ctx, identity, id)
	if err != nil {
		return transport.TaskResponse{}, err
	}
	if current.Status == string(transport.TaskStatusCancelled) {
		return transport.TaskResponse{}, apperr.Conflict("cancelled tasks cannot be completed")
	}

	task, err := s.repo.Complete(ctx, id)
	if err != nil {
		return transport.TaskResponse{}, mapRepoError("tasks.Complete", err)
	}

	if current.Status != string(transport.TaskStatusDone) {
		s.metrics.ObserveTaskCompleted()
		s.eventBus.Publish(ctx, events.TaskCompleted{
			BaseEvent:  events.NewBaseEvent(),
			TaskID:     task.ID,
			AssignedTo: task.AssignedTo,
		})
	}
	return s.toResponse(task), nil
}

func (s *Service) Delete(ctx context.Context, identity httpkit.Identity, id uuid.UUID) error {
	task, err := s.ensureAccess(ctx, identity, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoError("tasks.Delete", err)
	}
	s.publishChange(ctx, task, events.ChangeDeleted)
	return nil
}

func (s *Service) List(ctx context.Context, identity httpkit.Identity, req transport.ListTasksRequest) (transport.TaskListResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	params := repository.ListParams{
		ScopeUserID: identity.ScopeUserID(),
		DueBefore:   req.DueBefore,
		Overdue:     req.Overdue,
		Now:         s.now(),
		Offset:      (req.Page - 1) * req.PageSize,
		Limit:       req.PageSize,
		SortBy:      req.SortBy,
		SortOrder:   req.SortOrder,
	}
	if req.Status != "" {
		params.Status = &req.Status
	}
	var err error
	if params.ProspectID, err = parseOptionalUUID(req.ProspectID); err != nil {
		return transport.TaskListResponse{}, apperr.BadRequest("invalid prospectId")
	}
	if params.AssignedTo, err = parseOptionalUUID(req.AssignedTo); err != nil {
		return transport.TaskListResponse{}, apperr.BadRequest("invalid assignedTo")
	}

	tasks, total, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.TaskListResponse{}, apperr.Unavailable("tasks.List", err)
	}

	items := make([]transport.TaskResponse, len(tasks))
	for i, t := range tasks {
		items[i] = s.toResponse(t)
	}
	return transport.TaskListResponse{
		Items:      items,
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: (total + req.PageSize - 1) / req.PageSize,
	}, nil
}

// ensureAccess loads a task the caller may act on. Commercial staff only
// reach tasks assigned to them.
func (s *Service) ensureAccess(ctx context.Context, identity httpkit.Identity, id uuid.UUID) (repository.Task, error) {
	task, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return repository.Task{}, mapRepoError("tasks.Get", err)
	}
	if scope := identity.ScopeUserID(); scope != nil {
		if task.AssignedTo == nil || *task.AssignedTo != *scope {
			return repository.Task{}, apperr.NotFound(msgTaskNotFound)
		}
	}
	return task, nil
}

func (s *Service) publishChange(ctx context.Context, task repository.Task, change string) {
	s.eventBus.Publish(ctx, events.TaskChanged{
		BaseEvent:  events.NewBaseEvent(),
		TaskID:     task.ID,
		Change:     change,
		AssignedTo: task.AssignedTo,
	})
}

func (s *Service) scheduleReminder(ctx context.Context, task repository.Task) {
	if s.reminders == nil || task.DueDate == nil || task.AssignedTo == nil {
		return
	}
	runAt := task.DueDate.Add(-ReminderLead)
	if !runAt.After(s.now()) {
		return
	}
	if err := s.reminders.ScheduleTaskReminder(ctx, scheduler.TaskReminderPayload{TaskID: task.ID.String()}, runAt); err != nil {
		s.log.Warn("failed to schedule task reminder", "taskId", task.ID, "error", err)
	}
}

// IsOverdue reports a pending task past its due date.
func IsOverdue(status string, dueDate *time.Time, now time.Time) bool {
	return status == string(transport.TaskStatusPending) && dueDate != nil && dueDate.Before(now)
}

func (s *Service) toResponse(t repository.Task) transport.TaskResponse {
	return transport.TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		ProspectID:  t.ProspectID,
		AssignedTo:  t.AssignedTo,
		CreatedBy:   t.CreatedBy,
		Status:      transport.TaskStatus(t.Status),
		Priority:    t.Priority,
		DueDate:     t.DueDate,
		CompletedAt: t.CompletedAt,
		Overdue:     IsOverdue(t.Status, t.DueDate, s.now()),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func mapRepoError(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(msgTaskNotFound)
	}
	return apperr.Unavailable(op, err)
}

func parseOptionalUUID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func optionalText(value string) *string {
	value = sanitize.Text(value)
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func mapPtr(value *string, fn func(string) string) *string {
	if value == nil {
		return nil
	}
	result := fn(*value)
	return &result
}
