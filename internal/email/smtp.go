package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender implements the Sender interface using a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	}
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}

	client, err := gomail.NewClient(s.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (s *SMTPSender) SendAppointmentReminder(ctx context.Context, toEmail, title, scheduledDate, location, prospectName string) error {
	content, err := renderEmailTemplate("appointment_reminder.html", appointmentReminderEmailData{
		baseEmailData: baseEmailData{
			Title:   "Rappel de rendez-vous",
			Heading: "Rappel de rendez-vous",
		},
		AppointmentTitle: title,
		ScheduledDate:    scheduledDate,
		Location:         location,
		ProspectName:     prospectName,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectAppointmentReminderFmt, title), content)
}

func (s *SMTPSender) SendTaskReminder(ctx context.Context, toEmail, title, dueDate string) error {
	content, err := renderEmailTemplate("task_reminder.html", taskReminderEmailData{
		baseEmailData: baseEmailData{
			Title:   "Tâche à échéance",
			Heading: "Tâche à échéance",
		},
		TaskTitle: title,
		DueDate:   dueDate,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectTaskReminderFmt, title), content)
}

func (s *SMTPSender) SendProspectAssigned(ctx context.Context, toEmail, prospectName, segment string, score int) error {
	content, err := renderEmailTemplate("prospect_assigned.html", prospectAssignedEmailData{
		baseEmailData: baseEmailData{
			Title:   "Nouveau prospect",
			Heading: "Un prospect vous a été attribué",
		},
		ProspectName: prospectName,
		Segment:      segmentLabel(segment),
		Score:        score,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectProspectAssignedFmt, prospectName), content)
}

// SendCampaignMessage wraps an already rendered plain-text body in the mail layout.
func (s *SMTPSender) SendCampaignMessage(ctx context.Context, toEmail, subject, body string) error {
	content, err := renderEmailTemplate("campaign.html", campaignEmailData{
		baseEmailData: baseEmailData{
			Title:   subject,
			Heading: subject,
		},
		Paragraphs: paragraphs(body),
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}
