// Package events publishes committed domain events to NSQ, routed by
// event name.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"vecdb/internal/config"
	"vecdb/internal/domain"
	"vecdb/internal/metrics"
	"vecdb/internal/middleware"
)

// Producer is the slice of *nsq.Producer the publisher needs.
type Producer interface {
	Publish(topic string, body []byte) error
}

// Publisher releases committed domain events. Implementations must only
// be handed events harvested by a successful unit of work commit.
type Publisher interface {
	PublishEvents(ctx context.Context, events []domain.Event) error
}

// Envelope is the wire format: event metadata plus the event body, with
// the correlation id propagated for tracing across consumers.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventName     string          `json:"event_name"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id"`
	Payload       json.RawMessage `json:"payload"`
}

type NSQPublisher struct {
	producer Producer
	logger   *slog.Logger
}

func NewNSQPublisher(producer Producer, logger *slog.Logger) *NSQPublisher {
	return &NSQPublisher{producer: producer, logger: logger}
}

// PublishEvents routes each event to its topic. Publication stops at the
// first failure; the caller retries the whole batch, which is safe because
// consumers are idempotent.
func (p *NSQPublisher) PublishEvents(ctx context.Context, events []domain.Event) error {
	for _, ev := range events {
		topic := config.TopicFor(ev.EventName())
		body, err := Marshal(ctx, ev)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", ev.EventName(), err)
		}
		if err := p.producer.Publish(topic, body); err != nil {
			metrics.EventPublishErrors.WithLabelValues(topic).Inc()
			return fmt.Errorf("publish %s to %s: %w", ev.EventName(), topic, err)
		}
		metrics.EventsPublished.WithLabelValues(topic).Inc()
		p.logger.DebugContext(ctx, "event published", "event", ev.EventName(), "topic", topic, "event_id", ev.EventID())
	}
	return nil
}

// Marshal wraps an event in its envelope.
func Marshal(ctx context.Context, ev domain.Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		EventID:       ev.EventID(),
		EventName:     ev.EventName(),
		OccurredAt:    ev.OccurredAt(),
		CorrelationID: middleware.GetCorrelationID(ctx),
		Payload:       payload,
	})
}

// Unmarshal decodes an envelope and its payload into target.
func Unmarshal(body []byte, target any) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if target != nil {
		if err := json.Unmarshal(env.Payload, target); err != nil {
			return Envelope{}, fmt.Errorf("decode %s payload: %w", env.EventName, err)
		}
	}
	return env, nil
}
