package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"etatcivil/internal/payment/models"
	"etatcivil/internal/platform/database"
	"etatcivil/internal/workflow"
	id "etatcivil/pkg/domain"
	"etatcivil/pkg/platform/sentinel"
	"etatcivil/pkg/platform/tx"
)

type paymentRow struct {
	ID                uuid.UUID      `db:"id"`
	RequestID         uuid.UUID      `db:"request_id"`
	RequestType       string         `db:"request_type"`
	CitizenID         uuid.UUID      `db:"citizen_id"`
	Amount            int64          `db:"amount"`
	Currency          string         `db:"currency"`
	PaymentMethod     string         `db:"payment_method"`
	Status            string         `db:"status"`
	ExternalSessionID sql.NullString `db:"external_session_id"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

var paymentStruct = sqlbuilder.NewStruct(new(paymentRow)).For(sqlbuilder.PostgreSQL)

func paymentFrom(p *models.Payment) paymentRow {
	return paymentRow{
		ID:                uuid.UUID(p.ID),
		RequestID:         p.RequestID,
		RequestType:       p.RequestType.String(),
		CitizenID:         uuid.UUID(p.CitizenID),
		Amount:            p.Amount,
		Currency:          p.Currency,
		PaymentMethod:     p.PaymentMethod,
		Status:            p.Status.String(),
		ExternalSessionID: sql.NullString{String: p.ExternalSessionID, Valid: p.ExternalSessionID != ""},
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func (r paymentRow) toModel() *models.Payment {
	return &models.Payment{
		ID:                id.PaymentID(r.ID),
		RequestID:         r.RequestID,
		RequestType:       workflow.RequestType(r.RequestType),
		CitizenID:         id.UserID(r.CitizenID),
		Amount:            r.Amount,
		Currency:          r.Currency,
		PaymentMethod:     r.PaymentMethod,
		Status:            models.ParseStatus(r.Status),
		ExternalSessionID: r.ExternalSessionID.String,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

// PostgresPayments persists payments in the payments table.
type PostgresPayments struct {
	db *sqlx.DB
}

func NewPostgresPayments(db *sqlx.DB) *PostgresPayments {
	return &PostgresPayments{db: db}
}

func (s *PostgresPayments) Create(ctx context.Context, p *models.Payment) error {
	ctx, span := database.StartSpan(ctx, "payment.PostgresPayments.Create")
	defer span.End()

	row := paymentFrom(p)
	query, args := paymentStruct.InsertInto("payments", &row).Build()
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, query, args...)
	return database.Translate(err, "insert payment")
}

func (s *PostgresPayments) FindByRequestID(ctx context.Context, requestID uuid.UUID) (*models.Payment, error) {
	ctx, span := database.StartSpan(ctx, "payment.PostgresPayments.FindByRequestID")
	defer span.End()

	sb := paymentStruct.SelectFrom("payments")
	sb.Where(sb.Equal("request_id", requestID))
	return s.getOne(ctx, sb)
}

func (s *PostgresPayments) FindByRequestIDs(ctx context.Context, requestIDs []uuid.UUID) (map[uuid.UUID]*models.Payment, error) {
	out := make(map[uuid.UUID]*models.Payment, len(requestIDs))
	if len(requestIDs) == 0 {
		return out, nil
	}
	ctx, span := database.StartSpan(ctx, "payment.PostgresPayments.FindByRequestIDs")
	defer span.End()

	ids := make([]any, len(requestIDs))
	for i, rid := range requestIDs {
		ids[i] = rid
	}
	sb := paymentStruct.SelectFrom("payments")
	sb.Where(sb.In("request_id", ids...))
	query, args := sb.Build()

	var rows []paymentRow
	if err := tx.Conn(ctx, s.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, database.Translate(err, "find payments by request")
	}
	for _, r := range rows {
		out[r.RequestID] = r.toModel()
	}
	return out, nil
}

func (s *PostgresPayments) FindBySessionID(ctx context.Context, sessionID string) (*models.Payment, error) {
	if sessionID == "" {
		return nil, sentinel.ErrNotFound
	}
	ctx, span := database.StartSpan(ctx, "payment.PostgresPayments.FindBySessionID")
	defer span.End()

	sb := paymentStruct.SelectFrom("payments")
	sb.Where(sb.Equal("external_session_id", sessionID))
	return s.getOne(ctx, sb)
}

func (s *PostgresPayments) List(ctx context.Context) ([]*models.Payment, error) {
	ctx, span := database.StartSpan(ctx, "payment.PostgresPayments.List")
	defer span.End()

	sb := paymentStruct.SelectFrom("payments")
	sb.OrderBy("created_at").Desc()
	query, args := sb.Build()

	var rows []paymentRow
	if err := tx.Conn(ctx, s.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, database.Translate(err, "list payments")
	}
	out := make([]*models.Payment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *PostgresPayments) SumCompleted(ctx context.Context) (int64, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COALESCE(SUM(amount), 0)").From("payments")
	sb.Where(sb.Equal("status", models.StatusCompleted.String()))
	query, args := sb.Build()

	var total int64
	if err := tx.Conn(ctx, s.db).GetContext(ctx, &total, query, args...); err != nil {
		return 0, database.Translate(err, "sum payments")
	}
	return total, nil
}

func (s *PostgresPayments) Execute(ctx context.Context, paymentID id.PaymentID, validate func(*models.Payment) error, mutate func(*models.Payment)) (*models.Payment, error) {
	ctx, span := database.StartSpan(ctx, "payment.PostgresPayments.Execute")
	defer span.End()

	var out *models.Payment
	err := database.NewPostgresTx(s.db).RunInTx(ctx, func(txCtx context.Context) error {
		sb := paymentStruct.SelectFrom("payments")
		sb.Where(sb.Equal("id", uuid.UUID(paymentID))).ForUpdate()
		p, err := s.getOne(txCtx, sb)
		if err != nil {
			return err
		}
		if err := validate(p); err != nil {
			return err
		}
		mutate(p)

		row := paymentFrom(p)
		ub := paymentStruct.Update("payments", &row)
		ub.Where(ub.Equal("id", row.ID))
		query, args := ub.Build()
		if _, err := tx.Conn(txCtx, s.db).ExecContext(txCtx, query, args...); err != nil {
			return database.Translate(err, "update payment")
		}
		out = p
		return nil
	})
	return out, err
}

func (s *PostgresPayments) getOne(ctx context.Context, sb *sqlbuilder.SelectBuilder) (*models.Payment, error) {
	query, args := sb.Build()
	var row paymentRow
	if err := tx.Conn(ctx, s.db).GetContext(ctx, &row, query, args...); err != nil {
		return nil, database.Translate(err, "find payment")
	}
	return row.toModel(), nil
}
