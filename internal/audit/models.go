// Package audit keeps an append-only history of what happened to each
// citizen request and who did it.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"etatcivil/internal/events"
	"etatcivil/internal/workflow"
	"etatcivil/pkg/requestcontext"
)

// Entry is one line of a request's history. Keep it transport-agnostic so
// stores and sinks can fan out.
type Entry struct {
	ID            uuid.UUID            `json:"id"`
	Timestamp     time.Time            `json:"timestamp"`
	RequestID     uuid.UUID            `json:"requestId"`
	RequestType   workflow.RequestType `json:"requestType"`
	Action        string               `json:"action"`
	Status        workflow.Status      `json:"status,omitempty"`
	ActorID       string               `json:"actorId,omitempty"`
	ActorRole     string               `json:"actorRole,omitempty"`
	Comment       string               `json:"comment,omitempty"`
	CorrelationID string               `json:"correlationId,omitempty"`
}

// FromEvent builds the history entry for a workflow event. The actor is the
// authenticated caller, if any; gateway webhooks have none.
func FromEvent(ctx context.Context, e events.Event) Entry {
	entry := Entry{
		Timestamp:     e.OccurredAt,
		RequestID:     e.RequestID,
		RequestType:   e.RequestType,
		Action:        e.Type.String(),
		Status:        e.Status,
		Comment:       e.Comment,
		CorrelationID: requestcontext.RequestID(ctx),
	}
	if caller := requestcontext.Principal(ctx); caller != nil {
		entry.ActorID = caller.UserID.String()
		entry.ActorRole = string(caller.Role)
	}
	return entry
}
