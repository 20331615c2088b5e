package database

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"etatcivil/pkg/platform/sentinel"
)

func TestTranslate(t *testing.T) {
	assert.NoError(t, Translate(nil, "op"))
	assert.ErrorIs(t, Translate(sql.ErrNoRows, "find"), sentinel.ErrNotFound)
	assert.ErrorIs(t, Translate(&pq.Error{Code: "23505"}, "insert"), sentinel.ErrConflict)

	other := errors.New("connection reset")
	err := Translate(other, "insert")
	assert.ErrorIs(t, err, other)
	assert.NotErrorIs(t, err, sentinel.ErrConflict)
}
