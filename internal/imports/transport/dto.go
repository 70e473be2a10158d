package transport

import (
	"time"

	"github.com/google/uuid"
)

type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

type ImportResponse struct {
	ID           uuid.UUID  `json:"id"`
	Filename     string     `json:"filename"`
	TotalRows    int        `json:"totalRows"`
	ImportedRows int        `json:"importedRows"`
	FailedRows   int        `json:"failedRows"`
	Errors       []RowError `json:"errors"`
	CreatedBy    *uuid.UUID `json:"createdBy,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

type ListImportsRequest struct {
	Page     int `form:"page" validate:"omitempty,min=1"`
	PageSize int `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

type ImportListResponse struct {
	Items      []ImportResponse `json:"items"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalPages int              `json:"totalPages"`
}
