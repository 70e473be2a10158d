package transport

import "time"

type SearchRequest struct {
	Query string `form:"q" validate:"required,min=2,max=100"`
	Types string `form:"types" validate:"omitempty,max=100"`
	Limit int    `form:"limit" validate:"omitempty,min=1,max=50"`
}

type SearchResultItem struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`     // prospect, client, appointment, task
	Title     string    `json:"title"`    // Name or title
	Subtitle  string    `json:"subtitle"` // City, contract number or date
	Status    string    `json:"status"`
	Link      string    `json:"link"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"createdAt"`
}

type SearchResponse struct {
	Items  []SearchResultItem `json:"items"`
	Total  int                `json:"total"`
	Engine string             `json:"engine"`
}
