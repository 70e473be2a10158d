// Package dispatch sends a launched campaign to its target prospects.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"premunia_crm_backend/internal/campaigns/catalogue"
	"premunia_crm_backend/internal/campaigns/repository"
	"premunia_crm_backend/internal/email"
	"premunia_crm_backend/internal/events"
	prospectrepo "premunia_crm_backend/internal/prospects/repository"
	"premunia_crm_backend/platform/logger"
	"premunia_crm_backend/platform/metrics"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 5

// CampaignStore is the campaign persistence the dispatcher needs.
type CampaignStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Campaign, error)
	CompleteDispatch(ctx context.Context, id uuid.UUID, sent int) (repository.Campaign, error)
}

// TargetLister returns the open prospects with an email for a segment, and
// single prospects for triggered templates.
type TargetLister interface {
	ListTargets(ctx context.Context, segment string) ([]prospectrepo.Prospect, error)
	GetByID(ctx context.Context, id uuid.UUID) (prospectrepo.Prospect, error)
}

type Dispatcher struct {
	campaigns   CampaignStore
	targets     TargetLister
	templates   *catalogue.Catalogue
	sender      email.Sender
	eventBus    events.Bus
	metrics     *metrics.Registry
	log         *logger.Logger
	concurrency int
}

func New(campaigns CampaignStore, targets TargetLister, templates *catalogue.Catalogue, sender email.Sender, eventBus events.Bus, m *metrics.Registry, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		campaigns:   campaigns,
		targets:     targets,
		templates:   templates,
		sender:      sender,
		eventBus:    eventBus,
		metrics:     m,
		log:         log,
		concurrency: defaultConcurrency,
	}
}

// Dispatch delivers an active campaign once and marks it completed. Paused or
// already completed campaigns are left alone.
func (d *Dispatcher) Dispatch(ctx context.Context, campaignID uuid.UUID, requestedBy uuid.UUID) error {
	log := d.log.WithContext(ctx).With("campaignId", campaignID)

	c, err := d.campaigns.GetByID(ctx, campaignID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn("campaign vanished before dispatch")
		return nil
	}
	if err != nil {
		return err
	}
	if c.Status != "active" {
		log.Info("campaign not active, skipping dispatch", "status", c.Status)
		return nil
	}

	segment := c.TargetSegment
	if segment == "all" {
		segment = ""
	}
	targets, err := d.targets.ListTargets(ctx, segment)
	if err != nil {
		return fmt.Errorf("list campaign targets: %w", err)
	}

	var sent, failed int
	if c.Type == "email" {
		sent, failed, err = d.sendEmails(ctx, c, targets)
		if err != nil {
			return err
		}
	} else {
		// no sms or call provider: the targets are counted as reached
		sent = len(targets)
	}

	if _, err := d.campaigns.CompleteDispatch(ctx, c.ID, sent); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Info("campaign left active state during dispatch")
			return nil
		}
		return fmt.Errorf("complete campaign: %w", err)
	}

	log.Info("campaign dispatched", "requestedBy", requestedBy, "targeted", len(targets), "sent", sent, "failed", failed)
	d.eventBus.Publish(ctx, events.CampaignCompleted{
		BaseEvent:  events.NewBaseEvent(),
		CampaignID: c.ID,
		Targeted:   len(targets),
		Sent:       sent,
		Failed:     failed,
	})
	return nil
}

func (d *Dispatcher) sendEmails(ctx context.Context, c repository.Campaign, targets []prospectrepo.Prospect) (int, int, error) {
	key := ""
	if c.TemplateKey != nil {
		key = *c.TemplateKey
	}
	tpl, ok := d.templates.Get(key)
	if !ok {
		return 0, 0, fmt.Errorf("campaign %s: unknown template %q", c.ID, key)
	}

	var sent, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for _, p := range targets {
		if p.Email == nil || strings.TrimSpace(*p.Email) == "" {
			continue
		}
		g.Go(func() error {
			subject, body, err := tpl.Render(recipientFor(p))
			if err == nil {
				err = d.sender.SendCampaignMessage(gctx, *p.Email, subject, body)
			}
			d.metrics.ObserveCampaignMessage("email", err)
			if err != nil {
				failed.Add(1)
				d.log.Warn("campaign message failed", "campaignId", c.ID, "prospectId", p.ID, "error", err)
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return int(sent.Load()), int(failed.Load()), ctx.Err()
}

// SendTemplate delivers one triggered template. Prospects archived or closed
// since the trigger, or without an email, are skipped.
func (d *Dispatcher) SendTemplate(ctx context.Context, templateKey string, prospectID uuid.UUID) error {
	log := d.log.WithContext(ctx).With("template", templateKey, "prospectId", prospectID)

	tpl, ok := d.templates.Get(templateKey)
	if !ok {
		log.Warn("triggered template no longer in catalogue")
		return nil
	}

	p, err := d.targets.GetByID(ctx, prospectID)
	if errors.Is(err, prospectrepo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load prospect: %w", err)
	}
	if p.Email == nil || strings.TrimSpace(*p.Email) == "" || strings.HasPrefix(p.Status, "closed_") {
		log.Info("skipping triggered template", "status", p.Status)
		return nil
	}

	subject, body, err := tpl.Render(recipientFor(p))
	if err == nil {
		err = d.sender.SendCampaignMessage(ctx, *p.Email, subject, body)
	}
	d.metrics.ObserveCampaignMessage("email", err)
	if err != nil {
		return fmt.Errorf("send template %s: %w", templateKey, err)
	}
	log.Info("triggered template sent")
	return nil
}

func recipientFor(p prospectrepo.Prospect) catalogue.Recipient {
	r := catalogue.Recipient{
		FirstName: p.FirstName,
		LastName:  p.LastName,
		FullName:  strings.TrimSpace(p.FirstName + " " + p.LastName),
		Segment:   p.Segment,
	}
	if p.City != nil {
		r.City = *p.City
	}
	return r
}
