package service

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etatcivil/internal/declaration/store"
	paymentStore "etatcivil/internal/payment/store"
	"etatcivil/internal/platform/database"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
)

func TestCreateRollsBackWhenPaymentInsertFails(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()
	db := sqlx.NewDb(raw, "postgres")

	svc := New(store.NewPostgresDeclarations(db), paymentStore.NewPostgresPayments(db), database.NewPostgresTx(db),
		Fee{Amount: 1000, Currency: "xof"})

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO birth_declarations`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO declaration_documents`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO payments`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err = svc.Create(context.Background(), id.UserID(uuid.New()), validRequest())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCommitsAllRows(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()
	db := sqlx.NewDb(raw, "postgres")

	svc := New(store.NewPostgresDeclarations(db), paymentStore.NewPostgresPayments(db), database.NewPostgresTx(db),
		Fee{Amount: 1000, Currency: "xof"})

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO birth_declarations`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO declaration_documents`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO payments`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	d, err := svc.Create(context.Background(), id.UserID(uuid.New()), validRequest())
	require.NoError(t, err)
	assert.Len(t, d.Documents, 1)
	assert.NotNil(t, d.Payment)
	assert.NoError(t, mock.ExpectationsWereMet())
}
