package transport

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// OptionalUUID distinguishes an omitted assignee from an explicit null.
type OptionalUUID struct {
	Value *uuid.UUID
	Set   bool
}

func (o *OptionalUUID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		return nil
	}
	var id uuid.UUID
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	o.Value = &id
	return nil
}

type CreateTaskRequest struct {
	Title       string     `json:"title" validate:"required,min=1,max=200"`
	Description string     `json:"description,omitempty" validate:"max=2000"`
	ProspectID  *uuid.UUID `json:"prospectId,omitempty"`
	AssignedTo  *uuid.UUID `json:"assignedTo,omitempty"`
	Priority    int        `json:"priority,omitempty" validate:"omitempty,min=1,max=5"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
}

type UpdateTaskRequest struct {
	Title       *string      `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string      `json:"description,omitempty" validate:"omitempty,max=2000"`
	ProspectID  *uuid.UUID   `json:"prospectId,omitempty"`
	AssignedTo  OptionalUUID `json:"assignedTo" validate:"-"`
	Status      *TaskStatus  `json:"status,omitempty" validate:"omitempty,oneof=pending in_progress done cancelled"`
	Priority    *int         `json:"priority,omitempty" validate:"omitempty,min=1,max=5"`
	DueDate     *time.Time   `json:"dueDate,omitempty"`
}

type ListTasksRequest struct {
	Status     string     `form:"status" validate:"omitempty,oneof=pending in_progress done cancelled"`
	ProspectID string     `form:"prospectId" validate:"omitempty,uuid"`
	AssignedTo string     `form:"assignedTo" validate:"omitempty,uuid"`
	DueBefore  *time.Time `form:"dueBefore" time_format:"2006-01-02T15:04:05Z07:00"`
	Overdue    bool       `form:"overdue"`
	Page       int        `form:"page" validate:"omitempty,min=1"`
	PageSize   int        `form:"pageSize" validate:"omitempty,min=1,max=100"`
	SortBy     string     `form:"sortBy" validate:"omitempty,oneof=dueDate priority createdAt title"`
	SortOrder  string     `form:"sortOrder" validate:"omitempty,oneof=asc desc"`
}

type TaskResponse struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	ProspectID  *uuid.UUID `json:"prospectId,omitempty"`
	AssignedTo  *uuid.UUID `json:"assignedTo,omitempty"`
	CreatedBy   *uuid.UUID `json:"createdBy,omitempty"`
	Status      TaskStatus `json:"status"`
	Priority    int        `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Overdue     bool       `json:"overdue"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type TaskListResponse struct {
	Items      []TaskResponse `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
}
