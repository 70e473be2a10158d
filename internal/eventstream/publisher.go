// Package eventstream mirrors domain events onto a Kafka topic so downstream
// consumers (BI, marketing tools) can follow the CRM without polling it.
package eventstream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"premunia_crm_backend/internal/events"
	"premunia_crm_backend/platform/config"
	"premunia_crm_backend/platform/logger"

	"github.com/segmentio/kafka-go"
)

// DefaultEvents are the domain events forwarded by the API process.
var DefaultEvents = []string{
	events.ProspectCreated{}.EventName(),
	events.ProspectUpdated{}.EventName(),
	events.ProspectStatusChanged{}.EventName(),
	events.ProspectAssigned{}.EventName(),
	events.ProspectArchived{}.EventName(),
	events.ProspectConverted{}.EventName(),
	events.TaskCompleted{}.EventName(),
	events.TaskChanged{}.EventName(),
	events.AppointmentScheduled{}.EventName(),
	events.AppointmentStatusChanged{}.EventName(),
	events.CampaignLaunched{}.EventName(),
	events.CampaignCompleted{}.EventName(),
	events.CampaignChanged{}.EventName(),
	events.OpportunityStageChanged{}.EventName(),
	events.OpportunityChanged{}.EventName(),
}

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Envelope is the JSON value written for every event.
type Envelope struct {
	Event      string          `json:"event"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// Publisher writes events to a single topic, keyed by aggregate id so every
// event of one prospect lands on the same partition.
type Publisher struct {
	writer MessageWriter
	log    *logger.Logger
}

// NewPublisher builds a publisher over a kafka-go writer. Returns nil when no
// brokers are configured.
func NewPublisher(cfg config.StreamConfig, log *logger.Logger) *Publisher {
	if !cfg.IsStreamEnabled() {
		return nil
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.GetKafkaBrokers()...),
		Topic:                  cfg.GetKafkaTopic(),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return NewPublisherWithWriter(writer, log)
}

// NewPublisherWithWriter is used by tests and by callers that manage their own writer.
func NewPublisherWithWriter(writer MessageWriter, log *logger.Logger) *Publisher {
	return &Publisher{writer: writer, log: log}
}

// Handle implements events.Handler.
func (p *Publisher) Handle(ctx context.Context, event events.Event) error {
	msg, err := encode(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s: %w", event.EventName(), err)
	}
	return nil
}

// Forward subscribes the publisher to the named events on bus. A nil
// publisher forwards nothing.
func (p *Publisher) Forward(bus events.Bus, names ...string) {
	if p == nil {
		return
	}
	for _, name := range names {
		bus.Subscribe(name, p)
	}
	p.log.Info("event stream enabled", "events", len(names))
}

// Close flushes pending messages.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}

func encode(event events.Event) (kafka.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s: %w", event.EventName(), err)
	}
	value, err := json.Marshal(Envelope{
		Event:      event.EventName(),
		OccurredAt: event.OccurredAt().UTC(),
		Payload:    payload,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s: %w", event.EventName(), err)
	}

	msg := kafka.Message{
		Value:   value,
		Headers: []kafka.Header{{Key: "event", Value: []byte(event.EventName())}},
	}
	if keyed, ok := event.(events.Keyed); ok {
		msg.Key = []byte(keyed.AggregateID())
	}
	return msg, nil
}
