package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"etatcivil/internal/notification/models"
	"etatcivil/internal/platform/database"
	id "etatcivil/pkg/domain"
	"etatcivil/pkg/platform/tx"
)

type notificationRow struct {
	ID        uuid.UUID `db:"id"`
	CitizenID uuid.UUID `db:"citizen_id"`
	Content   string    `db:"content"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
}

var notificationStruct = sqlbuilder.NewStruct(new(notificationRow)).For(sqlbuilder.PostgreSQL)

func (r notificationRow) toModel() *models.Notification {
	return &models.Notification{
		ID:        id.NotificationID(r.ID),
		CitizenID: id.UserID(r.CitizenID),
		Content:   r.Content,
		Status:    models.ParseStatus(r.Status),
		CreatedAt: r.CreatedAt,
	}
}

type PostgresNotifications struct {
	db *sqlx.DB
}

func NewPostgresNotifications(db *sqlx.DB) *PostgresNotifications {
	return &PostgresNotifications{db: db}
}

func (s *PostgresNotifications) Create(ctx context.Context, n *models.Notification) error {
	ctx, span := database.StartSpan(ctx, "notification.PostgresNotifications.Create")
	defer span.End()

	row := notificationRow{
		ID:        uuid.UUID(n.ID),
		CitizenID: uuid.UUID(n.CitizenID),
		Content:   n.Content,
		Status:    n.Status.String(),
		CreatedAt: n.CreatedAt,
	}
	query, args := notificationStruct.InsertInto("notifications", &row).Build()
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, query, args...)
	return database.Translate(err, "insert notification")
}

func (s *PostgresNotifications) ListByCitizen(ctx context.Context, citizenID id.UserID) ([]*models.Notification, error) {
	ctx, span := database.StartSpan(ctx, "notification.PostgresNotifications.ListByCitizen")
	defer span.End()

	sb := notificationStruct.SelectFrom("notifications")
	sb.Where(sb.Equal("citizen_id", uuid.UUID(citizenID)))
	sb.OrderBy("created_at").Desc()
	query, args := sb.Build()

	var rows []notificationRow
	if err := tx.Conn(ctx, s.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, database.Translate(err, "list notifications")
	}
	out := make([]*models.Notification, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *PostgresNotifications) Execute(ctx context.Context, notificationID id.NotificationID, validate func(*models.Notification) error, mutate func(*models.Notification)) (*models.Notification, error) {
	ctx, span := database.StartSpan(ctx, "notification.PostgresNotifications.Execute")
	defer span.End()

	var out *models.Notification
	err := database.NewPostgresTx(s.db).RunInTx(ctx, func(txCtx context.Context) error {
		sb := notificationStruct.SelectFrom("notifications")
		sb.Where(sb.Equal("id", uuid.UUID(notificationID))).ForUpdate()
		query, args := sb.Build()

		var row notificationRow
		if err := tx.Conn(txCtx, s.db).GetContext(txCtx, &row, query, args...); err != nil {
			return database.Translate(err, "find notification")
		}
		n := row.toModel()
		if err := validate(n); err != nil {
			return err
		}
		mutate(n)

		ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
		ub.Update("notifications").Set(ub.Assign("status", n.Status.String()))
		ub.Where(ub.Equal("id", uuid.UUID(n.ID)))
		query, args = ub.Build()
		if _, err := tx.Conn(txCtx, s.db).ExecContext(txCtx, query, args...); err != nil {
			return database.Translate(err, "update notification")
		}
		out = n
		return nil
	})
	return out, err
}
