package email

import (
	"context"

	"premunia_crm_backend/platform/config"
)

// Sender delivers the CRM's transactional and campaign mail.
type Sender interface {
	SendAppointmentReminder(ctx context.Context, toEmail, title, scheduledDate, location, prospectName string) error
	SendTaskReminder(ctx context.Context, toEmail, title, dueDate string) error
	SendProspectAssigned(ctx context.Context, toEmail, prospectName, segment string, score int) error
	SendCampaignMessage(ctx context.Context, toEmail, subject, body string) error
}

// New returns an SMTP sender when email is enabled, a NoopSender otherwise.
func New(cfg config.EmailConfig) Sender {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}
	}
	return NewSMTPSender(cfg.GetSMTPHost(), cfg.GetSMTPPort(), cfg.GetSMTPUsername(), cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(), cfg.GetEmailFromName())
}

type NoopSender struct{}

func (NoopSender) SendAppointmentReminder(ctx context.Context, toEmail, title, scheduledDate, location, prospectName string) error {
	return nil
}

func (NoopSender) SendTaskReminder(ctx context.Context, toEmail, title, dueDate string) error {
	return nil
}

func (NoopSender) SendProspectAssigned(ctx context.Context, toEmail, prospectName, segment string, score int) error {
	return nil
}

func (NoopSender) SendCampaignMessage(ctx context.Context, toEmail, subject, body string) error {
	return nil
}
