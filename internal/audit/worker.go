package audit

import (
	"context"
	"errors"
	"log/slog"

	"etatcivil/internal/events"
)

// ErrInboxFull is returned when the worker is too far behind to accept
// another entry. The event itself has already been applied.
var ErrInboxFull = errors.New("audit inbox full")

// Subscriber queues workflow events for the worker so the write path never
// waits on the history store.
type Subscriber struct {
	inbox chan<- Entry
}

func NewSubscriber(inbox chan<- Entry) *Subscriber {
	return &Subscriber{inbox: inbox}
}

func (s *Subscriber) Name() string {
	return "audit"
}

func (s *Subscriber) Handle(ctx context.Context, e events.Event) error {
	select {
	case s.inbox <- FromEvent(ctx, e):
		return nil
	default:
		return ErrInboxFull
	}
}

// Worker consumes entries from a channel and persists them.
type Worker struct {
	publisher *Publisher
	inbox     <-chan Entry
	logger    *slog.Logger
}

func NewWorker(publisher *Publisher, inbox <-chan Entry, logger *slog.Logger) *Worker {
	return &Worker{publisher: publisher, inbox: inbox, logger: logger}
}

// Run blocks until ctx is done or the inbox is closed. A failed append is
// logged and the entry dropped.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.publisher.Emit(ctx, entry); err != nil {
				w.logger.ErrorContext(ctx, "failed to append audit entry",
					"workflow_request_id", entry.RequestID.String(),
					"action", entry.Action,
					"error", err.Error(),
				)
			}
		}
	}
}
