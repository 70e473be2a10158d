// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"premunia_crm_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	Keyed       = events.Keyed
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Prospect Domain Events
// =============================================================================

// ProspectCreated is published after a prospect is stored with its computed score.
type ProspectCreated struct {
	BaseEvent
	ProspectID uuid.UUID  `json:"prospectId"`
	FullName   string     `json:"fullName"`
	Score      int        `json:"score"`
	Segment    string     `json:"segment"`
	AssignedTo *uuid.UUID `json:"assignedTo,omitempty"`
	CreatedBy  uuid.UUID  `json:"createdBy"`
}

func (e ProspectCreated) EventName() string   { return "prospects.prospect.created" }
func (e ProspectCreated) AggregateID() string { return e.ProspectID.String() }

// ProspectUpdated is published after a partial update, with the recomputed score.
type ProspectUpdated struct {
	BaseEvent
	ProspectID uuid.UUID `json:"prospectId"`
	Score      int       `json:"score"`
	Segment    string    `json:"segment"`
	UpdatedBy  uuid.UUID `json:"updatedBy"`
}

func (e ProspectUpdated) EventName() string   { return "prospects.prospect.updated" }
func (e ProspectUpdated) AggregateID() string { return e.ProspectID.String() }

// ProspectStatusChanged is published when a prospect moves through the funnel.
type ProspectStatusChanged struct {
	BaseEvent
	ProspectID uuid.UUID `json:"prospectId"`
	FromStatus string    `json:"fromStatus"`
	ToStatus   string    `json:"toStatus"`
	ChangedBy  uuid.UUID `json:"changedBy"`
	Reason     string    `json:"reason,omitempty"`
}

func (e ProspectStatusChanged) EventName() string   { return "prospects.prospect.status_changed" }
func (e ProspectStatusChanged) AggregateID() string { return e.ProspectID.String() }

// ProspectAssigned is published when a manager hands a prospect to a commercial.
type ProspectAssigned struct {
	BaseEvent
	ProspectID   uuid.UUID  `json:"prospectId"`
	ProspectName string     `json:"prospectName"`
	Segment      string     `json:"segment"`
	Score        int        `json:"score"`
	PreviousID   *uuid.UUID `json:"previousId,omitempty"`
	AssigneeID   uuid.UUID  `json:"assigneeId"`
	AssignedBy   uuid.UUID  `json:"assignedBy"`
}

func (e ProspectAssigned) EventName() string   { return "prospects.prospect.assigned" }
func (e ProspectAssigned) AggregateID() string { return e.ProspectID.String() }

// ProspectArchived is published after a soft delete.
type ProspectArchived struct {
	BaseEvent
	ProspectID uuid.UUID `json:"prospectId"`
	ArchivedBy uuid.UUID `json:"archivedBy"`
}

func (e ProspectArchived) EventName() string   { return "prospects.prospect.archived" }
func (e ProspectArchived) AggregateID() string { return e.ProspectID.String() }

// ProspectConverted is published when a prospect signs and becomes a client.
type ProspectConverted struct {
	BaseEvent
	ProspectID     uuid.UUID  `json:"prospectId"`
	ClientID       uuid.UUID  `json:"clientId"`
	ContractNumber string     `json:"contractNumber"`
	MonthlyPremium float64    `json:"monthlyPremium"`
	AssignedTo     *uuid.UUID `json:"assignedTo,omitempty"`
}

func (e ProspectConverted) EventName() string   { return "clients.prospect.converted" }
func (e ProspectConverted) AggregateID() string { return e.ProspectID.String() }

// =============================================================================
// Task Domain Events
// =============================================================================

// TaskCompleted is published when a task is marked done.
type TaskCompleted struct {
	BaseEvent
	TaskID     uuid.UUID  `json:"taskId"`
	AssignedTo *uuid.UUID `json:"assignedTo,omitempty"`
}

func (e TaskCompleted) EventName() string   { return "tasks.task.completed" }
func (e TaskCompleted) AggregateID() string { return e.TaskID.String() }

// TaskChanged is published when a task is created, edited or deleted.
type TaskChanged struct {
	BaseEvent
	TaskID     uuid.UUID  `json:"taskId"`
	Change     string     `json:"change"`
	AssignedTo *uuid.UUID `json:"assignedTo,omitempty"`
}

func (e TaskChanged) EventName() string   { return "tasks.task.changed" }
func (e TaskChanged) AggregateID() string { return e.TaskID.String() }

// TaskDueSoon is published by the scheduler worker shortly before a due date.
type TaskDueSoon struct {
	BaseEvent
	TaskID     uuid.UUID `json:"taskId"`
	AssignedTo uuid.UUID `json:"assignedTo"`
	Title      string    `json:"title"`
	DueDate    time.Time `json:"dueDate"`
}

func (e TaskDueSoon) EventName() string   { return "tasks.task.due_soon" }
func (e TaskDueSoon) AggregateID() string { return e.TaskID.String() }

// =============================================================================
// Appointment Domain Events
// =============================================================================

// AppointmentScheduled is published after an appointment is created.
type AppointmentScheduled struct {
	BaseEvent
	AppointmentID uuid.UUID  `json:"appointmentId"`
	ProspectID    *uuid.UUID `json:"prospectId,omitempty"`
	AssignedTo    uuid.UUID  `json:"assignedTo"`
	ScheduledAt   time.Time  `json:"scheduledAt"`
}

func (e AppointmentScheduled) EventName() string   { return "appointments.appointment.scheduled" }
func (e AppointmentScheduled) AggregateID() string { return e.AppointmentID.String() }

// AppointmentStatusChanged is published on confirm, complete, cancel or postpone.
type AppointmentStatusChanged struct {
	BaseEvent
	AppointmentID uuid.UUID `json:"appointmentId"`
	AssignedTo    uuid.UUID `json:"assignedTo"`
	FromStatus    string    `json:"fromStatus"`
	ToStatus      string    `json:"toStatus"`
}

func (e AppointmentStatusChanged) EventName() string   { return "appointments.appointment.status_changed" }
func (e AppointmentStatusChanged) AggregateID() string { return e.AppointmentID.String() }

// AppointmentReminderDue is published by the scheduler worker ahead of an appointment.
type AppointmentReminderDue struct {
	BaseEvent
	AppointmentID uuid.UUID `json:"appointmentId"`
	AssignedTo    uuid.UUID `json:"assignedTo"`
	Title         string    `json:"title"`
	ScheduledAt   time.Time `json:"scheduledAt"`
	Location      string    `json:"location,omitempty"`
	MeetingType   string    `json:"meetingType"`
	ProspectName  string    `json:"prospectName,omitempty"`
}

func (e AppointmentReminderDue) EventName() string   { return "appointments.appointment.reminder_due" }
func (e AppointmentReminderDue) AggregateID() string { return e.AppointmentID.String() }

// Change values carried by the *Changed events.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
	ChangePaused  = "paused"
	ChangeEngaged = "engagement"
)

// =============================================================================
// Campaign, Opportunity and Goal Domain Events
// =============================================================================

// CampaignLaunched is published when a campaign becomes active.
type CampaignLaunched struct {
	BaseEvent
	CampaignID    uuid.UUID `json:"campaignId"`
	Type          string    `json:"type"`
	TargetSegment string    `json:"targetSegment"`
}

func (e CampaignLaunched) EventName() string   { return "campaigns.campaign.launched" }
func (e CampaignLaunched) AggregateID() string { return e.CampaignID.String() }

// CampaignCompleted is published when the dispatch worker has processed every target.
type CampaignCompleted struct {
	BaseEvent
	CampaignID uuid.UUID `json:"campaignId"`
	Targeted   int       `json:"targeted"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
}

func (e CampaignCompleted) EventName() string   { return "campaigns.campaign.completed" }
func (e CampaignCompleted) AggregateID() string { return e.CampaignID.String() }

// CampaignChanged is published on create, edit, pause, delete and tracked engagement.
type CampaignChanged struct {
	BaseEvent
	CampaignID uuid.UUID `json:"campaignId"`
	Change     string    `json:"change"`
}

func (e CampaignChanged) EventName() string   { return "campaigns.campaign.changed" }
func (e CampaignChanged) AggregateID() string { return e.CampaignID.String() }

// OpportunityStageChanged is published when an opportunity moves in the pipeline.
type OpportunityStageChanged struct {
	BaseEvent
	OpportunityID uuid.UUID  `json:"opportunityId"`
	ProspectID    uuid.UUID  `json:"prospectId"`
	FromStage     string     `json:"fromStage"`
	ToStage       string     `json:"toStage"`
	Value         float64    `json:"value"`
	AssignedTo    *uuid.UUID `json:"assignedTo,omitempty"`
}

func (e OpportunityStageChanged) EventName() string   { return "opportunities.opportunity.stage_changed" }
func (e OpportunityStageChanged) AggregateID() string { return e.OpportunityID.String() }

// OpportunityChanged is published when an opportunity is created, edited or deleted.
type OpportunityChanged struct {
	BaseEvent
	OpportunityID uuid.UUID `json:"opportunityId"`
	ProspectID    uuid.UUID `json:"prospectId"`
	Change        string    `json:"change"`
}

func (e OpportunityChanged) EventName() string   { return "opportunities.opportunity.changed" }
func (e OpportunityChanged) AggregateID() string { return e.OpportunityID.String() }

// UserSignedIn is published after a successful sign-in.
type UserSignedIn struct {
	BaseEvent
	UserID      uuid.UUID `json:"userId"`
	AutoCreated bool      `json:"autoCreated"`
}

func (e UserSignedIn) EventName() string   { return "auth.user.signed_in" }
func (e UserSignedIn) AggregateID() string { return e.UserID.String() }
