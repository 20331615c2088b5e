// Package events fans workflow changes out to the subscribers that react to
// them: citizen notifications, stats cache invalidation and the Kafka stream.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"etatcivil/internal/platform/metrics"
	"etatcivil/internal/workflow"
	id "etatcivil/pkg/domain"
	"etatcivil/pkg/requestcontext"
)

// Type names what happened to a request.
type Type string

const (
	RequestSubmitted Type = "request.submitted"
	StatusChanged    Type = "request.status_changed"
	PaymentCompleted Type = "payment.completed"
	DocumentAttached Type = "request.document_attached"
)

func (t Type) String() string {
	return string(t)
}

// Event describes one change to a citizen request.
type Event struct {
	Type           Type                 `json:"type"`
	RequestID      uuid.UUID            `json:"requestId"`
	RequestType    workflow.RequestType `json:"requestType"`
	CitizenID      id.UserID            `json:"citizenId"`
	Status         workflow.Status      `json:"status,omitempty"`
	TrackingNumber string               `json:"trackingNumber,omitempty"`
	Comment        string               `json:"comment,omitempty"`
	OccurredAt     time.Time            `json:"occurredAt"`
}

// Publisher is what services emit events through. Publishing never fails the
// caller's write.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Subscriber reacts to a published event.
type Subscriber interface {
	Name() string
	Handle(ctx context.Context, event Event) error
}

// Multi delivers each event to every subscriber in order, logging failures.
type Multi struct {
	subscribers []Subscriber
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Multi)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Multi) {
		m.logger = logger
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Multi) {
		m.metrics = mt
	}
}

func NewMulti(subscribers []Subscriber, opts ...Option) *Multi {
	m := &Multi{subscribers: subscribers, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe appends a subscriber. Not safe once publishing has started.
func (m *Multi) Subscribe(s Subscriber) {
	m.subscribers = append(m.subscribers, s)
}

func (m *Multi) Publish(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = requestcontext.Now(ctx)
	}
	for _, s := range m.subscribers {
		if err := s.Handle(ctx, event); err != nil {
			m.metrics.IncEventPublished(s.Name(), "error")
			m.logger.ErrorContext(ctx, "event subscriber failed",
				"subscriber", s.Name(),
				"event_type", event.Type.String(),
				"request_id", requestcontext.RequestID(ctx),
				"workflow_request_id", event.RequestID.String(),
				"error", err.Error(),
			)
			continue
		}
		m.metrics.IncEventPublished(s.Name(), "ok")
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
