// Package domain holds the typed identifiers shared across bounded contexts.
//
// Typed IDs keep a citizen ID from being passed where a declaration ID is
// expected. Construct them with the Parse functions at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "etatcivil/pkg/domain-errors"
)

type (
	// UserID identifies any account: citizen, agent or admin.
	UserID         uuid.UUID
	DeclarationID  uuid.UUID
	CertificateID  uuid.UUID
	DocumentID     uuid.UUID
	PaymentID      uuid.UUID
	NotificationID uuid.UUID
)

func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id DeclarationID) String() string  { return uuid.UUID(id).String() }
func (id CertificateID) String() string  { return uuid.UUID(id).String() }
func (id DocumentID) String() string     { return uuid.UUID(id).String() }
func (id PaymentID) String() string      { return uuid.UUID(id).String() }
func (id NotificationID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id DeclarationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id CertificateID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id PaymentID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

func (id UserID) MarshalText() ([]byte, error)         { return []byte(id.String()), nil }
func (id DeclarationID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id CertificateID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id DocumentID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id PaymentID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id NotificationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error         { return unmarshalID(b, (*uuid.UUID)(id)) }
func (id *DeclarationID) UnmarshalText(b []byte) error  { return unmarshalID(b, (*uuid.UUID)(id)) }
func (id *CertificateID) UnmarshalText(b []byte) error  { return unmarshalID(b, (*uuid.UUID)(id)) }
func (id *DocumentID) UnmarshalText(b []byte) error     { return unmarshalID(b, (*uuid.UUID)(id)) }
func (id *PaymentID) UnmarshalText(b []byte) error      { return unmarshalID(b, (*uuid.UUID)(id)) }
func (id *NotificationID) UnmarshalText(b []byte) error { return unmarshalID(b, (*uuid.UUID)(id)) }

func unmarshalID(b []byte, dst *uuid.UUID) error {
	parsed, err := uuid.ParseBytes(b)
	if err != nil {
		return err
	}
	*dst = parsed
	return nil
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

func ParseDeclarationID(s string) (DeclarationID, error) {
	u, err := parseUUID(s, "declaration id")
	return DeclarationID(u), err
}

func ParseCertificateID(s string) (CertificateID, error) {
	u, err := parseUUID(s, "certificate id")
	return CertificateID(u), err
}

func ParsePaymentID(s string) (PaymentID, error) {
	u, err := parseUUID(s, "payment id")
	return PaymentID(u), err
}

func ParseNotificationID(s string) (NotificationID, error) {
	u, err := parseUUID(s, "notification id")
	return NotificationID(u), err
}

// ParseRequestID accepts either a declaration or a certificate identifier.
// Both share the UUID format, so the caller resolves which store to hit.
func ParseRequestID(s string) (uuid.UUID, error) {
	return parseUUID(s, "request id")
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	if len(s) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	return u, nil
}
