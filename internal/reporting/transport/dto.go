package transport

import "github.com/google/uuid"

type DashboardStats struct {
	ProspectsThisMonth   int `json:"prospectsThisMonth"`
	ClientsThisMonth     int `json:"clientsThisMonth"`
	UpcomingAppointments int `json:"upcomingAppointments"`
	OverdueTasks         int `json:"overdueTasks"`
}

// AnalyticsRequest bounds the analytics window. Dates are YYYY-MM-DD and
// default to the last twelve months.
type AnalyticsRequest struct {
	From string `form:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string `form:"to" validate:"omitempty,datetime=2006-01-02"`
}

type CampaignsPerformance struct {
	Sent      int `json:"sent"`
	Opened    int `json:"opened"`
	Clicked   int `json:"clicked"`
	Converted int `json:"converted"`
}

type Analytics struct {
	From                 string               `json:"from"`
	To                   string               `json:"to"`
	TotalRevenue         float64              `json:"totalRevenue"`
	MonthlyRevenue       float64              `json:"monthlyRevenue"`
	ConversionRate       float64              `json:"conversionRate"`
	AvgDealSize          float64              `json:"avgDealSize"`
	PipelineValue        float64              `json:"pipelineValue"`
	ProspectsCount       int                  `json:"prospectsCount"`
	OpportunitiesCount   int                  `json:"opportunitiesCount"`
	WonDeals             int                  `json:"wonDeals"`
	CampaignsPerformance CampaignsPerformance `json:"campaignsPerformance"`
}

type PipelineStage struct {
	Status   string  `json:"status"`
	Count    int     `json:"count"`
	AvgScore float64 `json:"avgScore"`
}

type Pipeline struct {
	Stages   []PipelineStage `json:"stages"`
	Total    int             `json:"total"`
	AvgScore float64         `json:"avgScore"`
}

type SegmentStat struct {
	Segment   string  `json:"segment"`
	Count     int     `json:"count"`
	AvgBudget float64 `json:"avgBudget"`
	AvgScore  float64 `json:"avgScore"`
}

type MemberPerformance struct {
	UserID    uuid.UUID `json:"userId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Prospects int       `json:"prospects"`
	WonDeals  int       `json:"wonDeals"`
	Revenue   float64   `json:"revenue"`
}
