package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etatcivil/internal/notification/models"
	id "etatcivil/pkg/domain"
	"etatcivil/pkg/platform/sentinel"
)

var notificationColumns = []string{"id", "citizen_id", "content", "status", "created_at"}

func newNotification(t *testing.T, citizenID id.UserID, content string, at time.Time) *models.Notification {
	t.Helper()
	n, err := models.New(id.NotificationID(uuid.New()), citizenID, content, at)
	require.NoError(t, err)
	return n
}

func TestInMemoryNotifications(t *testing.T) {
	ctx := context.Background()
	st := NewInMemoryNotifications()
	citizenID := id.UserID(uuid.New())
	now := time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)

	older := newNotification(t, citizenID, "Votre déclaration a été reçue.", now)
	newer := newNotification(t, citizenID, "Votre déclaration est en cours de traitement.", now.Add(time.Hour))
	foreign := newNotification(t, id.UserID(uuid.New()), "Autre citoyen", now)
	for _, n := range []*models.Notification{older, newer, foreign} {
		require.NoError(t, st.Create(ctx, n))
	}
	assert.ErrorIs(t, st.Create(ctx, older), sentinel.ErrConflict)

	list, err := st.ListByCitizen(ctx, citizenID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)

	read, err := st.Execute(ctx, older.ID, func(*models.Notification) error { return nil }, (*models.Notification).MarkRead)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRead, read.Status)

	_, err = st.Execute(ctx, id.NotificationID(uuid.New()), func(*models.Notification) error { return nil }, (*models.Notification).MarkRead)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPostgresNotifications(t *testing.T) {
	ctx := context.Background()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	st := NewPostgresNotifications(sqlx.NewDb(raw, "postgres"))
	citizenID := uuid.New()
	now := time.Now()

	t.Run("create", func(t *testing.T) {
		n := newNotification(t, id.UserID(citizenID), "Votre paiement a été confirmé.", now)
		mock.ExpectExec(`INSERT INTO notifications`).
			WithArgs(uuid.UUID(n.ID), citizenID, "Votre paiement a été confirmé.", "UNREAD", now).
			WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, st.Create(ctx, n))
	})

	t.Run("list reads legacy status", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM notifications WHERE citizen_id = \$1 ORDER BY created_at DESC`).
			WithArgs(citizenID).
			WillReturnRows(sqlmock.NewRows(notificationColumns).
				AddRow(uuid.NewString(), citizenID.String(), "ancien message", "lu", now).
				AddRow(uuid.NewString(), citizenID.String(), "nouveau", "non_lu", now))

		list, err := st.ListByCitizen(ctx, id.UserID(citizenID))
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, models.StatusRead, list[0].Status)
		assert.Equal(t, models.StatusUnread, list[1].Status)
	})

	t.Run("execute updates only the status", func(t *testing.T) {
		notificationID := uuid.New()
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM notifications WHERE id = \$1 FOR UPDATE`).
			WithArgs(notificationID).
			WillReturnRows(sqlmock.NewRows(notificationColumns).
				AddRow(notificationID.String(), citizenID.String(), "message", "UNREAD", now))
		mock.ExpectExec(`UPDATE notifications SET status = \$1 WHERE id = \$2`).
			WithArgs("READ", notificationID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		n, err := st.Execute(ctx, id.NotificationID(notificationID), func(*models.Notification) error { return nil }, (*models.Notification).MarkRead)
		require.NoError(t, err)
		assert.Equal(t, models.StatusRead, n.Status)
	})

	t.Run("execute on a missing row", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM notifications`).WillReturnRows(sqlmock.NewRows(notificationColumns))
		mock.ExpectRollback()

		_, err := st.Execute(ctx, id.NotificationID(uuid.New()), func(*models.Notification) error { return nil }, (*models.Notification).MarkRead)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}
