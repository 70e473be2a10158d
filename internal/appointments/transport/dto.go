package transport

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusPlanned   AppointmentStatus = "planned"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusPostponed AppointmentStatus = "postponed"
)

type MeetingType string

const (
	MeetingTypeInPerson MeetingType = "in_person"
	MeetingTypePhone    MeetingType = "phone"
	MeetingTypeVideo    MeetingType = "video"
)

type CreateAppointmentRequest struct {
	Title           string      `json:"title" validate:"required,min=1,max=200"`
	Description     string      `json:"description,omitempty" validate:"max=2000"`
	ProspectID      *uuid.UUID  `json:"prospectId,omitempty"`
	AssignedTo      *uuid.UUID  `json:"assignedTo,omitempty"`
	ScheduledAt     time.Time   `json:"scheduledAt" validate:"required"`
	DurationMinutes int         `json:"durationMinutes,omitempty" validate:"omitempty,min=5,max=480"`
	Location        string      `json:"location,omitempty" validate:"max=255"`
	MeetingType     MeetingType `json:"meetingType,omitempty" validate:"omitempty,oneof=in_person phone video"`
	Notes           string      `json:"notes,omitempty" validate:"max=5000"`
}

type UpdateAppointmentRequest struct {
	Title           *string      `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description     *string      `json:"description,omitempty" validate:"omitempty,max=2000"`
	ProspectID      *uuid.UUID   `json:"prospectId,omitempty"`
	ScheduledAt     *time.Time   `json:"scheduledAt,omitempty"`
	DurationMinutes *int         `json:"durationMinutes,omitempty" validate:"omitempty,min=5,max=480"`
	Location        *string      `json:"location,omitempty" validate:"omitempty,max=255"`
	MeetingType     *MeetingType `json:"meetingType,omitempty" validate:"omitempty,oneof=in_person phone video"`
	Notes           *string      `json:"notes,omitempty" validate:"omitempty,max=5000"`
}

type UpdateAppointmentStatusRequest struct {
	Status AppointmentStatus `json:"status" validate:"required,oneof=planned confirmed completed cancelled postponed"`
}

type ListAppointmentsRequest struct {
	Status      string `form:"status" validate:"omitempty,oneof=planned confirmed completed cancelled postponed"`
	MeetingType string `form:"meetingType" validate:"omitempty,oneof=in_person phone video"`
	ProspectID  string `form:"prospectId" validate:"omitempty,uuid"`
	AssignedTo  string `form:"assignedTo" validate:"omitempty,uuid"`
	From        string `form:"from" validate:"omitempty"`
	To          string `form:"to" validate:"omitempty"`
	Search      string `form:"search" validate:"max=100"`
	SortBy      string `form:"sortBy" validate:"omitempty,oneof=title status scheduledAt createdAt"`
	SortOrder   string `form:"sortOrder" validate:"omitempty,oneof=asc desc"`
	Page        int    `form:"page" validate:"omitempty,min=1"`
	PageSize    int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

type AppointmentResponse struct {
	ID              uuid.UUID         `json:"id"`
	Title           string            `json:"title"`
	Description     *string           `json:"description,omitempty"`
	ProspectID      *uuid.UUID        `json:"prospectId,omitempty"`
	AssignedTo      uuid.UUID         `json:"assignedTo"`
	CreatedBy       *uuid.UUID        `json:"createdBy,omitempty"`
	Status          AppointmentStatus `json:"status"`
	ScheduledAt     time.Time         `json:"scheduledAt"`
	EndsAt          time.Time         `json:"endsAt"`
	DurationMinutes int               `json:"durationMinutes"`
	Location        *string           `json:"location,omitempty"`
	MeetingType     MeetingType       `json:"meetingType"`
	Notes           *string           `json:"notes,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

type AppointmentListResponse struct {
	Items      []AppointmentResponse `json:"items"`
	Total      int                   `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"pageSize"`
	TotalPages int                   `json:"totalPages"`
}
