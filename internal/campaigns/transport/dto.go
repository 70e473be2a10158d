package transport

import (
	"time"

	"github.com/google/uuid"
)

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
)

const (
	TypeEmail = "email"
	TypeSMS   = "sms"
	TypeCall  = "call"

	SegmentAll = "all"
)

type CreateCampaignRequest struct {
	Name          string     `json:"name" validate:"required,min=2,max=200"`
	Description   string     `json:"description,omitempty" validate:"max=2000"`
	Type          string     `json:"type" validate:"required,oneof=email sms call"`
	TargetSegment string     `json:"targetSegment,omitempty" validate:"omitempty,oneof=premium standard all"`
	TemplateKey   string     `json:"templateKey,omitempty" validate:"max=100"`
	ScheduledAt   *time.Time `json:"scheduledAt,omitempty"`
}

type UpdateCampaignRequest struct {
	Name          *string    `json:"name,omitempty" validate:"omitempty,min=2,max=200"`
	Description   *string    `json:"description,omitempty" validate:"omitempty,max=2000"`
	Type          *string    `json:"type,omitempty" validate:"omitempty,oneof=email sms call"`
	TargetSegment *string    `json:"targetSegment,omitempty" validate:"omitempty,oneof=premium standard all"`
	TemplateKey   *string    `json:"templateKey,omitempty" validate:"omitempty,max=100"`
	ScheduledAt   *time.Time `json:"scheduledAt,omitempty"`
}

type RecordEngagementRequest struct {
	Opened    int `json:"opened" validate:"min=0"`
	Clicked   int `json:"clicked" validate:"min=0"`
	Converted int `json:"converted" validate:"min=0"`
}

type ListCampaignsRequest struct {
	Status        string `form:"status" validate:"omitempty,oneof=draft active paused completed"`
	Type          string `form:"type" validate:"omitempty,oneof=email sms call"`
	TargetSegment string `form:"targetSegment" validate:"omitempty,oneof=premium standard all"`
	Search        string `form:"search" validate:"max=100"`
	Page          int    `form:"page" validate:"omitempty,min=1"`
	PageSize      int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

type CampaignResponse struct {
	ID             uuid.UUID      `json:"id"`
	Name           string         `json:"name"`
	Description    *string        `json:"description,omitempty"`
	Type           string         `json:"type"`
	TargetSegment  string         `json:"targetSegment"`
	Status         CampaignStatus `json:"status"`
	TemplateKey    *string        `json:"templateKey,omitempty"`
	SentCount      int            `json:"sentCount"`
	OpenedCount    int            `json:"openedCount"`
	ClickedCount   int            `json:"clickedCount"`
	ConvertedCount int            `json:"convertedCount"`
	OpenRate       float64        `json:"openRate"`
	ClickRate      float64        `json:"clickRate"`
	ConversionRate float64        `json:"conversionRate"`
	CreatedBy      *uuid.UUID     `json:"createdBy,omitempty"`
	ScheduledAt    *time.Time     `json:"scheduledAt,omitempty"`
	LaunchedAt     *time.Time     `json:"launchedAt,omitempty"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

type CampaignListResponse struct {
	Items      []CampaignResponse `json:"items"`
	Total      int                `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"pageSize"`
	TotalPages int                `json:"totalPages"`
}

type TemplateResponse struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Channel     string `json:"channel"`
	Target      string `json:"target"`
	Trigger     string `json:"trigger"`
	DelayDays   int    `json:"delayDays"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
}
