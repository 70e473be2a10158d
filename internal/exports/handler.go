package exports

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"premunia_crm_backend/platform/httpkit"
	"premunia_crm_backend/platform/logger"
	"premunia_crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const csvTimeLayout = "2006-01-02 15:04:05"

// ExportRequest filters the prospects export.
type ExportRequest struct {
	Status  string `form:"status" validate:"omitempty,prospect_status"`
	Segment string `form:"segment" validate:"omitempty,oneof=premium standard"`
}

// Streamer produces export rows.
type Streamer interface {
	StreamProspects(ctx context.Context, filter Filter, fn func(ProspectRow) error) error
}

// Handler handles export requests.
type Handler struct {
	repo Streamer
	val  *validator.Validator
	log  *logger.Logger
	now  func() time.Time
}

// NewHandler creates a new export handler.
func NewHandler(repo Streamer, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{repo: repo, val: val, log: log, now: time.Now}
}

// ExportProspectsCSV streams the caller's prospects as CSV.
func (h *Handler) ExportProspectsCSV(c *gin.Context) {
	var req ExportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	filter := Filter{ScopeUserID: identity.ScopeUserID()}
	if req.Status != "" {
		filter.Status = &req.Status
	}
	if req.Segment != "" {
		filter.Segment = &req.Segment
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=prospects-%s.csv", h.now().Format("20060102")))
	c.Status(http.StatusOK)

	writer := csv.NewWriter(c.Writer)
	if err := writer.Write(csvHeaders()); err != nil {
		return
	}

	count := 0
	err := h.repo.StreamProspects(c.Request.Context(), filter, func(p ProspectRow) error {
		count++
		return writer.Write(prospectRecord(p))
	})
	writer.Flush()
	if err == nil {
		err = writer.Error()
	}
	if err != nil {
		// Headers are already sent; the truncated file is all we can do.
		h.log.Error("prospect export interrupted", "rows", count, "error", err)
		return
	}
	h.log.Info("prospects exported", "rows", count, "userId", identity.UserID())
}

func csvHeaders() []string {
	return []string{
		"id",
		"first_name",
		"last_name",
		"email",
		"phone",
		"age",
		"postal_code",
		"city",
		"budget_monthly",
		"health_status",
		"urgency_level",
		"score",
		"segment",
		"status",
		"source",
		"assigned_to",
		"created_at",
	}
}

func prospectRecord(p ProspectRow) []string {
	return []string{
		p.ID.String(),
		p.FirstName,
		p.LastName,
		deref(p.Email),
		deref(p.Phone),
		strconv.Itoa(p.Age),
		deref(p.PostalCode),
		deref(p.City),
		strconv.FormatFloat(p.BudgetMonthly, 'f', 2, 64),
		p.HealthStatus,
		p.UrgencyLevel,
		strconv.Itoa(p.Score),
		p.Segment,
		p.Status,
		deref(p.Source),
		derefUUID(p.AssignedTo),
		p.CreatedAt.UTC().Format(csvTimeLayout),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefUUID(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
