package passwords

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "etatcivil/pkg/domain-errors"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("motdepasse123")
	require.NoError(t, err)
	assert.NotEqual(t, "motdepasse123", hash)

	require.NoError(t, Verify("motdepasse123", hash))

	err = Verify("wrong-password", hash)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestHash_TooShort(t *testing.T) {
	_, err := Hash("court")
	assert.Equal(t, "password", dErrors.FieldOf(err))
}

func TestGenerate(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)
	assert.Len(t, a, 24)
	assert.NotEqual(t, a, b)
}
