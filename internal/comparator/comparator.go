// Package comparator builds the configuration consumed by the partner
// insurance comparison widget. The widget itself runs in the browser.
package comparator

import (
	"strings"

	"premunia_crm_backend/platform/apperr"
	"premunia_crm_backend/platform/config"
)

// Subject is what the widget needs to know about a prospect.
type Subject struct {
	Age        int
	Budget     float64
	PostalCode string
}

// Widget is returned to the frontend as-is.
type Widget struct {
	ScriptURL  string  `json:"scriptUrl"`
	PartnerKey string  `json:"partnerKey"`
	Age        int     `json:"age"`
	Budget     float64 `json:"budget"`
	PostalCode string  `json:"postalCode"`
}

type Config struct {
	scriptURL  string
	partnerKey string
}

func New(cfg config.ComparatorConfig) *Config {
	return &Config{
		scriptURL:  cfg.GetComparatorScriptURL(),
		partnerKey: cfg.GetComparatorPartnerKey(),
	}
}

// WidgetConfig fails when the widget cannot be initialised for the subject.
func (c *Config) WidgetConfig(s Subject) (Widget, error) {
	if c.scriptURL == "" {
		return Widget{}, apperr.BadRequest("comparator is not configured")
	}
	postalCode := strings.TrimSpace(s.PostalCode)
	if postalCode == "" {
		return Widget{}, apperr.Validation("postal code is required for the comparator")
	}
	if s.Age <= 0 {
		return Widget{}, apperr.Validation("age is required for the comparator")
	}

	return Widget{
		ScriptURL:  c.scriptURL,
		PartnerKey: c.partnerKey,
		Age:        s.Age,
		Budget:     s.Budget,
		PostalCode: postalCode,
	}, nil
}
