package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title      string
	Heading    string
	Subheading string
	CTALabel   string
	CTAURL     string
}

type appointmentReminderEmailData struct {
	baseEmailData
	AppointmentTitle string
	ScheduledDate    string
	Location         string
	ProspectName     string
}

type taskReminderEmailData struct {
	baseEmailData
	TaskTitle string
	DueDate   string
}

type prospectAssignedEmailData struct {
	baseEmailData
	ProspectName string
	Segment      string
	Score        int
}

type campaignEmailData struct {
	baseEmailData
	Paragraphs []string
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

// paragraphs splits a plain-text body on blank lines.
func paragraphs(body string) []string {
	parts := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func segmentLabel(segment string) string {
	switch segment {
	case "premium":
		return "Premium"
	case "standard":
		return "Standard"
	default:
		return "Basique"
	}
}
