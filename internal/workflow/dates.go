package workflow

import (
	"crypto/rand"
	"encoding/base32"
	"time"

	dErrors "etatcivil/pkg/domain-errors"
)

const dateLayout = "2006-01-02"

// ParseDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp.
// A malformed value is a validation error naming the field.
func ParseDate(field, value string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, dErrors.Validation(field, "Le champ "+field+" doit être une date valide (AAAA-MM-JJ)")
}

var trackingEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewTrackingNumber returns a citizen-facing reference such as AN-20240131-K3J9QW2P.
func NewTrackingNumber(now time.Time) (string, error) {
	var buf [5]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate tracking number")
	}
	return "AN-" + now.UTC().Format("20060102") + "-" + trackingEncoding.EncodeToString(buf[:]), nil
}
