package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"etatcivil/internal/workflow"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
)

// Status is the settlement state of a payment.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
)

// ParseStatus reads a stored payment status, accepting the legacy "paye" literal.
func ParseStatus(s string) Status {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "COMPLETED", "PAYE":
		return StatusCompleted
	default:
		return StatusPending
	}
}

func (s Status) String() string {
	return string(s)
}

// Payment is the single fee record attached to a request.
//
// Invariants:
//   - exactly one payment per request (RequestID is unique)
//   - Amount is positive, in the currency's minor unit
//   - once COMPLETED a payment never returns to PENDING
type Payment struct {
	ID                id.PaymentID         `json:"id"`
	RequestID         uuid.UUID            `json:"requestId"`
	RequestType       workflow.RequestType `json:"requestType"`
	CitizenID         id.UserID            `json:"citizenId"`
	Amount            int64                `json:"amount"`
	Currency          string               `json:"currency"`
	PaymentMethod     string               `json:"paymentMethod,omitempty"`
	Status            Status               `json:"status"`
	ExternalSessionID string               `json:"externalSessionId,omitempty"`
	CreatedAt         time.Time            `json:"createdAt"`
	UpdatedAt         time.Time            `json:"updatedAt"`
}

func NewPending(paymentID id.PaymentID, requestID uuid.UUID, requestType workflow.RequestType, citizenID id.UserID, amount int64, currency string, now time.Time) (*Payment, error) {
	if amount <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "payment amount must be positive")
	}
	if requestID == uuid.Nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "payment must reference a request")
	}
	return &Payment{
		ID:          paymentID,
		RequestID:   requestID,
		RequestType: requestType,
		CitizenID:   citizenID,
		Amount:      amount,
		Currency:    currency,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (p *Payment) IsCompleted() bool {
	return p.Status == StatusCompleted
}

// CanOpenSession rejects checkout for a payment that is already settled.
func (p *Payment) CanOpenSession() error {
	if p.IsCompleted() {
		return dErrors.New(dErrors.CodeConflict, "Cette demande est déjà payée")
	}
	return nil
}

// ApplySession records the gateway checkout session and chosen method.
func (p *Payment) ApplySession(sessionID, method string, now time.Time) {
	p.ExternalSessionID = sessionID
	if method != "" {
		p.PaymentMethod = method
	}
	p.UpdatedAt = now
}

// ApplyCompleted marks the payment settled. Completing twice keeps the first timestamp.
func (p *Payment) ApplyCompleted(now time.Time) {
	if p.IsCompleted() {
		return
	}
	p.Status = StatusCompleted
	p.UpdatedAt = now
}
