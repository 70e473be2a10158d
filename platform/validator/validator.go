// Package validator provides validation infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package validator

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var frPostalCode = regexp.MustCompile(`^(?:0[1-9]|[1-8]\d|9[0-8])\d{3}$`)

// Enumerations shared by request DTOs. Kept here so tags stay declarative.
var (
	healthStatuses   = []string{"excellent", "good", "average", "poor"}
	urgencyLevels    = []string{"low", "medium", "high"}
	prospectStatuses = []string{"new", "contacted", "qualified", "proposal", "closed_won", "closed_lost"}
)

// Validator wraps the go-playground validator for structured validation.
type Validator struct {
	v *validator.Validate
}

// New creates a Validator with the CRM tags registered:
// health_status, urgency_level, prospect_status and fr_postal_code.
func New() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("health_status", oneOfField(healthStatuses))
	_ = v.RegisterValidation("urgency_level", oneOfField(urgencyLevels))
	_ = v.RegisterValidation("prospect_status", oneOfField(prospectStatuses))
	_ = v.RegisterValidation("fr_postal_code", func(fl validator.FieldLevel) bool {
		return frPostalCode.MatchString(fl.Field().String())
	})
	return &Validator{v: v}
}

// Struct validates a struct based on validation tags.
func (val *Validator) Struct(s interface{}) error {
	return val.v.Struct(s)
}

// Var validates a single variable against a tag.
func (val *Validator) Var(field interface{}, tag string) error {
	return val.v.Var(field, tag)
}

// RegisterValidation registers a custom validation function.
func (val *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return val.v.RegisterValidation(tag, fn)
}

func oneOfField(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		for _, candidate := range allowed {
			if value == candidate {
				return true
			}
		}
		return false
	}
}
