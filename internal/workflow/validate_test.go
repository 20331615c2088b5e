package workflow

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "etatcivil/pkg/domain-errors"
)

type testDocument struct {
	Type string `json:"type" validate:"required"`
	URL  string `json:"url" validate:"required"`
}

type testPayload struct {
	FullName  string         `json:"fullName" validate:"required"`
	BirthDate string         `json:"birthDate" validate:"required"`
	Reason    string         `json:"reason" validate:"required"`
	Comment   *string        `json:"comment,omitempty"`
	Documents []testDocument `json:"documents" validate:"omitempty,dive"`
}

func TestValidateRequired(t *testing.T) {
	t.Run("complete payload passes and is trimmed", func(t *testing.T) {
		p := &testPayload{FullName: "  Awa Diop ", BirthDate: "2020-01-01", Reason: "passeport"}
		require.NoError(t, ValidateRequired(p))
		assert.Equal(t, "Awa Diop", p.FullName)
	})

	t.Run("names the first missing field", func(t *testing.T) {
		err := ValidateRequired(&testPayload{FullName: "Awa", Reason: ""})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Equal(t, "birthDate", dErrors.FieldOf(err))
	})

	t.Run("whitespace only counts as missing", func(t *testing.T) {
		err := ValidateRequired(&testPayload{FullName: "   ", BirthDate: "x", Reason: "y"})
		assert.Equal(t, "fullName", dErrors.FieldOf(err))
	})

	t.Run("documents need type and url", func(t *testing.T) {
		p := &testPayload{FullName: "a", BirthDate: "b", Reason: "c", Documents: []testDocument{{Type: "ID_CARD"}}}
		err := ValidateRequired(p)
		assert.Equal(t, "documents[0].url", dErrors.FieldOf(err))
	})
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("birthDate", "2024-03-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), d)

	d, err = ParseDate("birthDate", "2024-03-15T10:30:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, 8, d.Hour())

	_, err = ParseDate("birthDate", "15/03/2024")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.Equal(t, "birthDate", dErrors.FieldOf(err))
}

func TestNewTrackingNumber(t *testing.T) {
	now := time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)
	a, err := NewTrackingNumber(now)
	require.NoError(t, err)
	b, err := NewTrackingNumber(now)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^AN-20240131-[A-Z2-7]{8}$`), a)
	assert.NotEqual(t, a, b)
}
