package models

import (
	"github.com/google/uuid"

	id "etatcivil/pkg/domain"
)

// CheckoutInput is what the gateway needs to open a hosted checkout page.
type CheckoutInput struct {
	PaymentID     id.PaymentID
	RequestID     uuid.UUID
	Amount        int64
	Currency      string
	PaymentMethod string
	Description   string
}

// GatewaySession is the gateway's view of a checkout session.
type GatewaySession struct {
	ID   string
	URL  string
	Paid bool
}
