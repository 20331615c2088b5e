package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists history entries. Implementations never update or delete.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]Entry, error)
}

// Publisher captures history entries. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
	now   func() time.Time
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store, now: time.Now}
}

func (p *Publisher) Emit(ctx context.Context, entry Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = p.now()
	}
	return p.store.Append(ctx, entry)
}

// List returns a request's history, oldest first.
func (p *Publisher) List(ctx context.Context, requestID uuid.UUID) ([]Entry, error) {
	return p.store.ListByRequest(ctx, requestID)
}
