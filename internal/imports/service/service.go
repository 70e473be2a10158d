package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"premunia_crm_backend/internal/imports/repository"
	"premunia_crm_backend/internal/imports/transport"
	prospecttransport "premunia_crm_backend/internal/prospects/transport"
	"premunia_crm_backend/platform/apperr"
	"premunia_crm_backend/platform/httpkit"
	"premunia_crm_backend/platform/logger"
	"premunia_crm_backend/platform/validator"
)

// MaxRows caps a single import file.
const MaxRows = 5000

var requiredColumns = []string{"first_name", "last_name", "budget_monthly", "health_status", "urgency_level"}

type Repository interface {
	Create(ctx context.Context, d repository.DataImport) (repository.DataImport, error)
	List(ctx context.Context, params repository.ListParams) ([]repository.DataImport, int, error)
}

// ProspectCreator is the prospect service entry point each row goes through,
// so imported prospects are scored, indexed and announced like manual ones.
type ProspectCreator interface {
	Create(ctx context.Context, identity httpkit.Identity, req prospecttransport.CreateProspectRequest) (prospecttransport.ProspectResponse, error)
}

type Service struct {
	repo      Repository
	prospects ProspectCreator
	val       *validator.Validator
	log       *logger.Logger
}

func New(repo Repository, prospects ProspectCreator, val *validator.Validator, log *logger.Logger) *Service {
	return &Service{repo: repo, prospects: prospects, val: val, log: log}
}

// ImportProspects creates one prospect per CSV row and records the outcome.
// Rejected rows do not stop the import.
func (s *Service) ImportProspects(ctx context.Context, identity httpkit.Identity, filename string, r io.Reader) (transport.ImportResponse, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return transport.ImportResponse{}, apperr.Validation("the file is empty")
	}
	if err != nil {
		return transport.ImportResponse{}, apperr.Validation("unreadable csv: " + err.Error())
	}
	if len(header) == 1 && strings.Contains(header[0], ";") {
		return transport.ImportResponse{}, apperr.Validation("columns must be separated by commas")
	}
	columns, err := indexColumns(header)
	if err != nil {
		return transport.ImportResponse{}, err
	}

	record := repository.DataImport{Filename: filename}
	userID := identity.UserID()
	record.CreatedBy = &userID

	line := 1
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if record.TotalRows >= MaxRows {
			return transport.ImportResponse{}, apperr.Validation(fmt.Sprintf("imports are limited to %d rows", MaxRows))
		}
		record.TotalRows++
		if err != nil {
			record.Errors = append(record.Errors, repository.RowError{Row: line, Message: err.Error()})
			continue
		}

		req, err := columns.request(fields)
		if err == nil {
			err = s.val.Struct(req)
		}
		if err == nil {
			_, err = s.prospects.Create(ctx, identity, req)
		}
		if err != nil {
			record.Errors = append(record.Errors, repository.RowError{Row: line, Message: rowMessage(err)})
			continue
		}
		record.ImportedRows++
	}
	record.FailedRows = len(record.Errors)

	saved, err := s.repo.Create(ctx, record)
	if err != nil {
		return transport.ImportResponse{}, apperr.Unavailable("imports.ImportProspects", err)
	}
	s.log.Info("prospects imported",
		"importId", saved.ID,
		"filename", filename,
		"total", saved.TotalRows,
		"imported", saved.ImportedRows,
		"failed", saved.FailedRows,
	)
	return toResponse(saved), nil
}

// List returns past imports, newest first. Non-managers only see their own.
func (s *Service) List(ctx context.Context, identity httpkit.Identity, req transport.ListImportsRequest) (transport.ImportListResponse, error) {
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
		Offset: (req.Page - 1) * req.PageSize,
		Limit:  req.PageSize,
	}
	if !identity.IsManager() {
		userID := identity.UserID()
		params.CreatedBy = &userID
	}

	items, total, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.ImportListResponse{}, apperr.Unavailable("imports.List", err)
	}

	out := make([]transport.ImportResponse, len(items))
	for i, d := range items {
		out[i] = toResponse(d)
	}
	return transport.ImportListResponse{
		Items:      out,
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: (total + req.PageSize - 1) / req.PageSize,
	}, nil
}

type columnIndex map[string]int

func indexColumns(header []string) (columnIndex, error) {
	columns := make(columnIndex, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		columns[name] = i
	}

	var missing []string
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	_, hasBirthDate := columns["birth_date"]
	_, hasAge := columns["age"]
	if !hasBirthDate && !hasAge {
		missing = append(missing, "birth_date|age")
	}
	if len(missing) > 0 {
		return nil, apperr.Validation("missing columns: " + strings.Join(missing, ", "))
	}
	return columns, nil
}

func (c columnIndex) get(fields []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

func (c columnIndex) request(fields []string) (prospecttransport.CreateProspectRequest, error) {
	req := prospecttransport.CreateProspectRequest{
		FirstName:    c.get(fields, "first_name"),
		LastName:     c.get(fields, "last_name"),
		Email:        strings.ToLower(c.get(fields, "email")),
		Phone:        c.get(fields, "phone"),
		HealthStatus: strings.ToLower(c.get(fields, "health_status")),
		UrgencyLevel: strings.ToLower(c.get(fields, "urgency_level")),
		PostalCode:   c.get(fields, "postal_code"),
		City:         c.get(fields, "city"),
		Source:       c.get(fields, "source"),
	}
	if req.Source == "" {
		req.Source = "import"
	}

	budget, err := parseDecimal(c.get(fields, "budget_monthly"))
	if err != nil {
		return req, fmt.Errorf("budget_monthly: %w", err)
	}
	req.BudgetMonthly = budget

	if raw := c.get(fields, "birth_date"); raw != "" {
		birthDate, err := parseDate(raw)
		if err != nil {
			return req, fmt.Errorf("birth_date: %w", err)
		}
		req.BirthDate = &prospecttransport.Date{Time: birthDate}
	} else if raw := c.get(fields, "age"); raw != "" {
		age, err := strconv.Atoi(raw)
		if err != nil {
			return req, fmt.Errorf("age: %q is not a number", raw)
		}
		req.Age = age
	} else {
		return req, errors.New("birth_date or age is required")
	}
	return req, nil
}

// parseDecimal accepts both "95.50" and "95,50".
func parseDecimal(raw string) (float64, error) {
	if raw == "" {
		return 0, errors.New("value is required")
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(strings.ReplaceAll(raw, " ", ""), ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", raw)
	}
	return value, nil
}

var dateLayouts = []string{time.DateOnly, "02/01/2006"}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not a date (YYYY-MM-DD or DD/MM/YYYY)", raw)
}

func rowMessage(err error) string {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

func toResponse(d repository.DataImport) transport.ImportResponse {
	errs := make([]transport.RowError, len(d.Errors))
	for i, e := range d.Errors {
		errs[i] = transport.RowError{Row: e.Row, Message: e.Message}
	}
	return transport.ImportResponse{
		ID:           d.ID,
		Filename:     d.Filename,
		TotalRows:    d.TotalRows,
		ImportedRows: d.ImportedRows,
		FailedRows:   d.FailedRows,
		Errors:       errs,
		CreatedBy:    d.CreatedBy,
		CreatedAt:    d.CreatedAt,
	}
}

