// Package notification turns domain events into emails and in-app
// notifications. Domain modules publish events and never talk to mail
// providers directly.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"premunia_crm_backend/internal/email"
	"premunia_crm_backend/internal/events"
	apphttp "premunia_crm_backend/internal/http"
	notifhandler "premunia_crm_backend/internal/notification/handler"
	"premunia_crm_backend/internal/notification/inapp"
	"premunia_crm_backend/internal/notification/sse"
	"premunia_crm_backend/platform/logger"

	"github.com/google/uuid"
)

const displayLayout = "02/01/2006 à 15:04"

// ErrUnknownUser is returned by a UserDirectory for ids it does not know.
var ErrUnknownUser = errors.New("unknown user")

// Contact is what notifications need to know about a staff member.
type Contact struct {
	Email    string
	FullName string
	Active   bool
}

// UserDirectory resolves staff members by id.
type UserDirectory interface {
	Contact(ctx context.Context, userID uuid.UUID) (Contact, error)
}

// Module handles all notification-related event subscriptions.
type Module struct {
	sender   email.Sender
	users    UserDirectory
	inApp    *inapp.Service
	sse      *sse.Service
	handler  *notifhandler.HTTPHandler
	location *time.Location
	log      *logger.Logger
}

// New wires the module. store may be nil, in which case only email is sent.
func New(sender email.Sender, users UserDirectory, store inapp.Store, log *logger.Logger) *Module {
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		loc = time.UTC
	}

	m := &Module{
		sender:   sender,
		users:    users,
		sse:      sse.New(log),
		location: loc,
		log:      log,
	}
	if store != nil {
		m.inApp = inapp.NewService(store, m.sse, log)
		m.handler = notifhandler.NewHTTPHandler(m.inApp, m.sse.Handler())
	}
	return m
}

// RegisterHandlers subscribes the module to the events it reacts to.
func (m *Module) RegisterHandlers(bus events.Bus) {
	for _, name := range []string{
		events.AppointmentReminderDue{}.EventName(),
		events.TaskDueSoon{}.EventName(),
		events.ProspectAssigned{}.EventName(),
		events.ProspectCreated{}.EventName(),
	} {
		bus.Subscribe(name, m)
	}
}

// Handle dispatches a domain event to its notification.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.AppointmentReminderDue:
		return m.handleAppointmentReminder(ctx, e)
	case events.TaskDueSoon:
		return m.handleTaskDueSoon(ctx, e)
	case events.ProspectAssigned:
		return m.handleProspectAssigned(ctx, e)
	case events.ProspectCreated:
		return m.handleProspectCreated(ctx, e)
	}
	return nil
}

func (m *Module) handleAppointmentReminder(ctx context.Context, e events.AppointmentReminderDue) error {
	contact, ok, err := m.recipient(ctx, e.AssignedTo)
	if err != nil || !ok {
		return err
	}

	when := e.ScheduledAt.In(m.location).Format(displayLayout)
	if err := m.sender.SendAppointmentReminder(ctx, contact.Email, e.Title, when, e.Location, e.ProspectName); err != nil {
		return fmt.Errorf("appointment reminder email: %w", err)
	}

	content := fmt.Sprintf("%s le %s", e.Title, when)
	if e.ProspectName != "" {
		content += " avec " + e.ProspectName
	}
	m.notifyInApp(ctx, inapp.SendParams{
		UserID:       e.AssignedTo,
		Title:        "Rendez-vous demain",
		Content:      content,
		ResourceID:   &e.AppointmentID,
		ResourceType: "appointment",
	})
	return nil
}

func (m *Module) handleTaskDueSoon(ctx context.Context, e events.TaskDueSoon) error {
	contact, ok, err := m.recipient(ctx, e.AssignedTo)
	if err != nil || !ok {
		return err
	}

	due := e.DueDate.In(m.location).Format(displayLayout)
	if err := m.sender.SendTaskReminder(ctx, contact.Email, e.Title, due); err != nil {
		return fmt.Errorf("task reminder email: %w", err)
	}

	m.notifyInApp(ctx, inapp.SendParams{
		UserID:       e.AssignedTo,
		Title:        "Tâche à échéance",
		Content:      fmt.Sprintf("%s (échéance %s)", e.Title, due),
		ResourceID:   &e.TaskID,
		ResourceType: "task",
		Category:     inapp.CategoryWarning,
	})
	return nil
}

func (m *Module) handleProspectAssigned(ctx context.Context, e events.ProspectAssigned) error {
	contact, ok, err := m.recipient(ctx, e.AssigneeID)
	if err != nil || !ok {
		return err
	}

	if err := m.sender.SendProspectAssigned(ctx, contact.Email, e.ProspectName, e.Segment, e.Score); err != nil {
		return fmt.Errorf("prospect assigned email: %w", err)
	}

	m.notifyInApp(ctx, inapp.SendParams{
		UserID:       e.AssigneeID,
		Title:        "Nouveau prospect attribué",
		Content:      fmt.Sprintf("%s (score %d)", e.ProspectName, e.Score),
		ResourceID:   &e.ProspectID,
		ResourceType: "prospect",
	})
	return nil
}

// handleProspectCreated raises a high-value alert for premium prospects.
func (m *Module) handleProspectCreated(ctx context.Context, e events.ProspectCreated) error {
	if e.Segment != "premium" {
		return nil
	}

	m.log.WithContext(ctx).Info("high-value prospect created",
		"prospectId", e.ProspectID, "score", e.Score, "name", e.FullName)

	if e.AssignedTo != nil {
		m.notifyInApp(ctx, inapp.SendParams{
			UserID:       *e.AssignedTo,
			Title:        "Prospect premium",
			Content:      fmt.Sprintf("%s a obtenu un score de %d", e.FullName, e.Score),
			ResourceID:   &e.ProspectID,
			ResourceType: "prospect",
			Category:     inapp.CategorySuccess,
		})
	}
	return nil
}

// recipient resolves an active user with an email. ok is false when there is
// nobody to notify.
func (m *Module) recipient(ctx context.Context, userID uuid.UUID) (Contact, bool, error) {
	contact, err := m.users.Contact(ctx, userID)
	if errors.Is(err, ErrUnknownUser) {
		m.log.Warn("notification recipient not found", "userId", userID)
		return Contact{}, false, nil
	}
	if err != nil {
		return Contact{}, false, err
	}
	if !contact.Active || contact.Email == "" {
		return Contact{}, false, nil
	}
	return contact, true, nil
}

func (m *Module) notifyInApp(ctx context.Context, p inapp.SendParams) {
	if m.inApp == nil {
		return
	}
	if err := m.inApp.Send(ctx, p); err != nil {
		m.log.Warn("in-app notification failed", "userId", p.UserID, "error", err)
	}
}

// Close disconnects live streams.
func (m *Module) Close() {
	m.sse.Close()
}

func (m *Module) Name() string {
	return "notification"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	if m.handler == nil {
		return
	}
	m.handler.RegisterRoutes(ctx.Protected.Group("/notifications"))
}

var (
	_ apphttp.Module          = (*Module)(nil)
	_ apphttp.EventSubscriber = (*Module)(nil)
	_ events.Handler          = (*Module)(nil)
)
