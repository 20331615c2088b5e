package models

// CreateSessionRequest opens a checkout session for a citizen's request.
type CreateSessionRequest struct {
	RequestID     string `json:"requestId" validate:"required"`
	Amount        int64  `json:"amount"`
	PaymentMethod string `json:"paymentMethod"`
}

// Checkout is returned to the citizen to redirect to the gateway.
type Checkout struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
	PaymentID string `json:"paymentId"`
}

const (
	PollPending   = "pending"
	PollCompleted = "completed"
)

// StatusResult answers a status poll with "pending" or "completed".
type StatusResult struct {
	Status  string   `json:"status"`
	Payment *Payment `json:"payment,omitempty"`
}

// WebhookRequest is the gateway callback body.
type WebhookRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
}
