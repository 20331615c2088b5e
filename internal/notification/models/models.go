package models

import (
	"strings"
	"time"

	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
)

type Status string

const (
	StatusUnread Status = "UNREAD"
	StatusRead   Status = "READ"
)

// ParseStatus reads a stored status; legacy lowercase French values map to
// their canonical form.
func ParseStatus(s string) Status {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "READ", "LU":
		return StatusRead
	default:
		return StatusUnread
	}
}

func (s Status) String() string {
	return string(s)
}

// Notification is a message shown to a citizen about one of their requests.
type Notification struct {
	ID        id.NotificationID `json:"id"`
	CitizenID id.UserID         `json:"citizenId"`
	Content   string            `json:"content"`
	Status    Status            `json:"status"`
	CreatedAt time.Time         `json:"createdAt"`
}

func New(notificationID id.NotificationID, citizenID id.UserID, content string, now time.Time) (*Notification, error) {
	if strings.TrimSpace(content) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "notification content cannot be empty")
	}
	if citizenID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "notification needs a recipient")
	}
	return &Notification{
		ID:        notificationID,
		CitizenID: citizenID,
		Content:   content,
		Status:    StatusUnread,
		CreatedAt: now,
	}, nil
}

func (n *Notification) MarkRead() {
	n.Status = StatusRead
}
