// Package workflow holds the request lifecycle shared by every request type:
// the canonical status vocabulary, the transition machine and the submission
// validators.
package workflow

import (
	"strings"

	dErrors "etatcivil/pkg/domain-errors"
)

// Status is the lifecycle marker of a citizen request.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusRejected   Status = "REJECTED"
	// StatusDeleted is the soft-delete marker. It is never a transition target.
	StatusDeleted Status = "DELETED"
)

var canonicalStatuses = map[Status]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusCompleted:  true,
	StatusRejected:   true,
	StatusDeleted:    true,
}

var transitionTargets = map[Status]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusCompleted:  true,
	StatusRejected:   true,
}

// legacyStatuses maps the lowercase literals written by the previous
// application to the canonical vocabulary. "paye" marked a paid request
// awaiting processing.
var legacyStatuses = map[string]Status{
	"en_attente":    StatusPending,
	"en_cours":      StatusInProgress,
	"en_traitement": StatusInProgress,
	"paye":          StatusInProgress,
	"traite":        StatusCompleted,
	"termine":       StatusCompleted,
	"valide":        StatusCompleted,
	"rejete":        StatusRejected,
	"supprime":      StatusDeleted,
}

// ParseStatus reads a stored status, accepting legacy literals.
func ParseStatus(s string) (Status, error) {
	raw := strings.TrimSpace(s)
	if st := Status(strings.ToUpper(raw)); canonicalStatuses[st] {
		return st, nil
	}
	if st, ok := legacyStatuses[strings.ToLower(raw)]; ok {
		return st, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidStatus, "Statut inconnu: "+raw)
}

// ParseTransitionTarget validates a status submitted by an agent. Only the
// exact canonical values are accepted; nothing is coerced.
func ParseTransitionTarget(s string) (Status, error) {
	st := Status(strings.TrimSpace(s))
	if !transitionTargets[st] {
		return "", &dErrors.Error{Code: dErrors.CodeInvalidStatus, Message: "Statut invalide", Field: "status"}
	}
	return st, nil
}

func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is expected.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected || s == StatusDeleted
}

// IsVisible reports whether the request appears in listings.
func (s Status) IsVisible() bool {
	return s != StatusDeleted
}

// RequestType distinguishes the request families sharing this lifecycle.
type RequestType string

const (
	RequestTypeDeclaration RequestType = "birth_declaration"
	RequestTypeCertificate RequestType = "birth_certificate"
)

func (t RequestType) String() string {
	return string(t)
}

// ParseRequestType validates a request type coming from a client or a row.
func ParseRequestType(s string) (RequestType, error) {
	switch RequestType(strings.TrimSpace(s)) {
	case RequestTypeDeclaration:
		return RequestTypeDeclaration, nil
	case RequestTypeCertificate:
		return RequestTypeCertificate, nil
	}
	return "", dErrors.Validation("requestType", "Type de demande invalide")
}
