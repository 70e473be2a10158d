package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"premunia_crm_backend/internal/appointments/repository"
	"premunia_crm_backend/internal/appointments/transport"
	"premunia_crm_backend/internal/events"
	"premunia_crm_backend/internal/scheduler"
	"premunia_crm_backend/platform/apperr"
	"premunia_crm_backend/platform/httpkit"
	"premunia_crm_backend/platform/logger"
	"premunia_crm_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	dateFormat             = "2006-01-02"
	appointmentNotFoundMsg = "appointment not found"
	defaultDuration        = 60
	maxUpcoming            = 10
	// ReminderLead is how long before the start the assignee is reminded.
	ReminderLead = 24 * time.Hour
)

// statusTransitions lists where each status may go. Completed and cancelled are final.
var statusTransitions = map[transport.AppointmentStatus][]transport.AppointmentStatus{
	transport.AppointmentStatusPlanned:   {transport.AppointmentStatusConfirmed, transport.AppointmentStatusCompleted, transport.AppointmentStatusCancelled, transport.AppointmentStatusPostponed},
	transport.AppointmentStatusConfirmed: {transport.AppointmentStatusCompleted, transport.AppointmentStatusCancelled, transport.AppointmentStatusPostponed},
	transport.AppointmentStatusPostponed: {transport.AppointmentStatusPlanned, transport.AppointmentStatusConfirmed, transport.AppointmentStatusCancelled},
	transport.AppointmentStatusCompleted: {},
	transport.AppointmentStatusCancelled: {},
}

// Repository is the persistence the service needs.
type Repository interface {
	Create(ctx context.Context, params repository.CreateAppointmentParams) (repository.Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Appointment, error)
	Update(ctx context.Context, id uuid.UUID, params repository.UpdateAppointmentParams) (repository.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (repository.Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params repository.ListParams) ([]repository.Appointment, int, error)
	Upcoming(ctx context.Context, scopeUserID *uuid.UUID, now time.Time, limit int) ([]repository.Appointment, error)
	ListOverlapping(ctx context.Context, assignedTo uuid.UUID, start, end time.Time) ([]repository.Appointment, error)
}

// Service provides business logic for appointments
type Service struct {
	repo              Repository
	eventBus          events.Bus
	reminderScheduler scheduler.ReminderScheduler
	log               *logger.Logger
	now               func() time.Time
}

// New creates a new appointments service
func New(repo Repository, eventBus events.Bus, reminderScheduler scheduler.ReminderScheduler, log *logger.Logger) *Service {
	return &Service{
		repo:              repo,
		eventBus:          eventBus,
		reminderScheduler: reminderScheduler,
		log:               log,
		now:               time.Now,
	}
}

// Create books an appointment in the future and schedules its reminder.
func (s *Service) Create(ctx context.Context, identity httpkit.Identity, req transport.CreateAppointmentRequest) (transport.AppointmentResponse, error) {
	if !req.ScheduledAt.After(s.now()) {
		return transport.AppointmentResponse{}, apperr.Validation("scheduledAt must be in the future")
	}

	assignee := identity.UserID()
	if req.AssignedTo != nil && *req.AssignedTo != assignee {
		if !identity.IsManager() {
			return transport.AppointmentResponse{}, apperr.Forbidden("not authorized to book for another user")
		}
		assignee = *req.AssignedTo
	}

	duration := req.DurationMinutes
	if duration == 0 {
		duration = defaultDuration
	}
	meetingType := req.MeetingType
	if meetingType == "" {
		meetingType = transport.MeetingTypeInPerson
	}

	start := req.ScheduledAt
	end := start.Add(time.Duration(duration) * time.Minute)
	if err := s.checkTimeConflict(ctx, assignee, start, end, uuid.Nil); err != nil {
		return transport.AppointmentResponse{}, err
	}

	appt, err := s.repo.Create(ctx, repository.CreateAppointmentParams{
		Title:           sanitize.Text(req.Title),
		Description:     nilIfEmpty(sanitize.Text(req.Description)),
		ProspectID:      req.ProspectID,
		AssignedTo:      assignee,
		CreatedBy:       identity.UserID(),
		ScheduledAt:     start,
		DurationMinutes: duration,
		Location:        nilIfEmpty(sanitize.Text(req.Location)),
		MeetingType:     string(meetingType),
		Notes:           nilIfEmpty(sanitize.Text(req.Notes)),
	})
	if err != nil {
		return transport.AppointmentResponse{}, apperr.Unavailable("appointments.Create", err)
	}

	s.eventBus.Publish(ctx, events.AppointmentScheduled{
		BaseEvent:     events.NewBaseEvent(),
		AppointmentID: appt.ID,
		ProspectID:    appt.ProspectID,
		AssignedTo:    appt.AssignedTo,
		ScheduledAt:   appt.ScheduledAt,
	})
	s.scheduleReminder(ctx, appt)

	return toResponse(appt), nil
}

// checkTimeConflict checks for overlapping appointments, excluding excludeID if non-nil.
func (s *Service) checkTimeConflict(ctx context.Context, assignee uuid.UUID, start, end time.Time, excludeID uuid.UUID) error {
	existing, err := s.repo.ListOverlapping(ctx, assignee, start, end)
	if err != nil {
		return apperr.Unavailable("appointments.checkTimeConflict", err)
	}
	for _, appt := range existing {
		if excludeID != uuid.Nil && appt.ID == excludeID {
			continue
		}
		if start.Before(appt.EndsAt()) && end.After(appt.ScheduledAt) {
			return apperr.Conflict(fmt.Sprintf("timeslot already booked by %q", appt.Title))
		}
	}
	return nil
}

func (s *Service) scheduleReminder(ctx context.Context, appt repository.Appointment) {
	if s.reminderScheduler == nil {
		return
	}
	reminderAt := appt.ScheduledAt.Add(-ReminderLead)
	if !reminderAt.After(s.now()) {
		return
	}
	if err := s.reminderScheduler.ScheduleAppointmentReminder(ctx, scheduler.AppointmentReminderPayload{
		AppointmentID: appt.ID.String(),
	}, reminderAt); err != nil {
		s.log.Warn("failed to schedule appointment reminder", "appointmentId", appt.ID, "error", err)
	}
}

func (s *Service) GetByID(ctx context.Context, identity httpkit.Identity, id uuid.UUID) (transport.AppointmentResponse, error) {
	appt, err := s.ensureAccess(ctx, identity, id)
	if err != nil {
		return transport.AppointmentResponse{}, err
	}
	return toResponse(appt), nil
}

// Update edits an open appointment. Moving it re-checks conflicts and
// schedules a fresh reminder.
func (s *Service) Update(ctx context.Context, identity httpkit.Identity, id uuid.UUID, req transport.UpdateAppointmentRequest) (transport.AppointmentResponse, error) {
	current, err := s.ensureAccess(ctx, identity, id)
	if err != nil {
		return transport.AppointmentResponse{}, err
	}
	if isFinal(transport.AppointmentStatus(current.Status)) {
		return transport.AppointmentResponse{}, apperr.Conflict("appointment is " + current.Status)
	}

	moved := req.ScheduledAt != nil || req.DurationMinutes != nil
	if moved {
		start := current.ScheduledAt
		if req.ScheduledAt != nil {
			start = *req.ScheduledAt
			if !start.After(s.now()) {
				return transport.AppointmentResponse{}, apperr.Validation("scheduledAt must be in the future")
			}
		}
		duration := current.DurationMinutes
		if req.DurationMinutes != nil {
			duration = *req.DurationMinutes
		}
		end := start.Add(time.Duration(duration) * time.Minute)
		if err := s.checkTimeConflict(ctx, current.AssignedTo, start, end, current.ID); err != nil {
			return transport.AppointmentResponse{}, err
		}
	}

	params := repository.UpdateAppointmentParams{
		Title:           sanitize.TextPtr(req.Title),
		Description:     sanitize.TextPtr(req.Description),
		ProspectID:      req.ProspectID,
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
		Location:        sanitize.TextPtr(req.Location),
		Notes:           sanitize.TextPtr(req.Notes),
	}
	if req.MeetingType != nil {
		meetingType := string(*req.MeetingType)
		params.MeetingType = &meetingType
	}

	appt, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return transport.AppointmentResponse{}, mapRepoError("appointments.Update", err)
	}
	if req.ScheduledAt != nil && !req.ScheduledAt.Equal(current.ScheduledAt) {
		s.scheduleReminder(ctx, appt)
	}
	return toResponse(appt), nil
}

// UpdateStatus confirms, completes, cancels or postpones an appointment.
func (s *Service) UpdateStatus(ctx context.Context, identity httpkit.Identity, id uuid.UUID, req transport.UpdateAppointmentStatusRequest) (transport.AppointmentResponse, error) {
	appt, err := s.ensureAccess(ctx, identity, id)
	if err != nil {
		return transport.AppointmentResponse{}, err
	}

	oldStatus := transport.AppointmentStatus(appt.Status)
	if req.Status == oldStatus {
		return toResponse(appt), nil
	}
	if !canTransition(oldStatus, req.Status) {
		return transport.AppointmentResponse{}, apperr.Conflict(fmt.Sprintf("cannot move appointment from %s to %s", oldStatus, req.Status))
	}

	appt, err = s.repo.UpdateStatus(ctx, id, string(req.Status))
	if err != nil {
		return transport.AppointmentResponse{}, mapRepoError("appointments.UpdateStatus", err)
	}

	s.eventBus.Publish(ctx, events.AppointmentStatusChanged{
		BaseEvent:     events.NewBaseEvent(),
		AppointmentID: appt.ID,
		AssignedTo:    appt.AssignedTo,
		FromStatus:    string(oldStatus),
		ToStatus:      string(req.Status),
	})
	return toResponse(appt), nil
}

// Delete removes an appointment
func (s *Service) Delete(ctx context.Context, identity httpkit.Identity, id uuid.UUID) error {
	if _, err := s.ensureAccess(ctx, identity, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoError("appointments.Delete", err)
	}
	return nil
}

// List retrieves appointments with filtering
func (s *Service) List(ctx context.Context, identity httpkit.Identity, req transport.ListAppointmentsRequest) (transport.AppointmentListResponse, error) {
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
		Search:      strings.TrimSpace(req.Search),
		SortBy:      req.SortBy,
		SortOrder:   req.SortOrder,
		Offset:      (req.Page - 1) * req.PageSize,
		Limit:       req.PageSize,
	}
	if req.Status != "" {
		params.Status = &req.Status
	}
	if req.MeetingType != "" {
		params.MeetingType = &req.MeetingType
	}

	var err error
	if params.ProspectID, err = parseOptionalUUID(req.ProspectID); err != nil {
		return transport.AppointmentListResponse{}, apperr.BadRequest("invalid prospectId")
	}
	if params.AssignedTo, err = parseOptionalUUID(req.AssignedTo); err != nil {
		return transport.AppointmentListResponse{}, apperr.BadRequest("invalid assignedTo")
	}
	if params.From, err = parseRangeBound(req.From, false); err != nil {
		return transport.AppointmentListResponse{}, apperr.BadRequest("invalid from date")
	}
	if params.To, err = parseRangeBound(req.To, true); err != nil {
		return transport.AppointmentListResponse{}, apperr.BadRequest("invalid to date")
	}

	items, total, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.AppointmentListResponse{}, apperr.Unavailable("appointments.List", err)
	}

	resp := make([]transport.AppointmentResponse, len(items))
	for i, appt := range items {
		resp[i] = toResponse(appt)
	}
	return transport.AppointmentListResponse{
		Items:      resp,
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: (total + req.PageSize - 1) / req.PageSize,
	}, nil
}

// Upcoming returns at most ten planned or confirmed appointments, soonest first.
func (s *Service) Upcoming(ctx context.Context, identity httpkit.Identity, limit int) ([]transport.AppointmentResponse, error) {
	if limit <= 0 || limit > maxUpcoming {
		limit = maxUpcoming
	}
	items, err := s.repo.Upcoming(ctx, identity.ScopeUserID(), s.now(), limit)
	if err != nil {
		return nil, apperr.Unavailable("appointments.Upcoming", err)
	}
	resp := make([]transport.AppointmentResponse, len(items))
	for i, appt := range items {
		resp[i] = toResponse(appt)
	}
	return resp, nil
}

// ensureAccess loads an appointment. Commercial staff only see their own.
func (s *Service) ensureAccess(ctx context.Context, identity httpkit.Identity, id uuid.UUID) (repository.Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return repository.Appointment{}, mapRepoError("appointments.Get", err)
	}
	if scope := identity.ScopeUserID(); scope != nil && appt.AssignedTo != *scope {
		return repository.Appointment{}, apperr.NotFound(appointmentNotFoundMsg)
	}
	return appt, nil
}

func canTransition(from, to transport.AppointmentStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func isFinal(status transport.AppointmentStatus) bool {
	return status == transport.AppointmentStatusCompleted || status == transport.AppointmentStatusCancelled
}

func toResponse(a repository.Appointment) transport.AppointmentResponse {
	return transport.AppointmentResponse{
		ID:              a.ID,
		Title:           a.Title,
		Description:     a.Description,
		ProspectID:      a.ProspectID,
		AssignedTo:      a.AssignedTo,
		CreatedBy:       a.CreatedBy,
		Status:          transport.AppointmentStatus(a.Status),
		ScheduledAt:     a.ScheduledAt,
		EndsAt:          a.EndsAt(),
		DurationMinutes: a.DurationMinutes,
		Location:        a.Location,
		MeetingType:     transport.MeetingType(a.MeetingType),
		Notes:           a.Notes,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func mapRepoError(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(appointmentNotFoundMsg)
	}
	return apperr.Unavailable(op, err)
}

// parseRangeBound accepts RFC 3339 or a bare date. A bare upper bound covers
// the whole day.
func parseRangeBound(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateFormat, raw)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
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

func nilIfEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
