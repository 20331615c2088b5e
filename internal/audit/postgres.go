package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"etatcivil/internal/platform/database"
	"etatcivil/internal/workflow"
	"etatcivil/pkg/platform/tx"
)

type entryRow struct {
	ID            uuid.UUID `db:"id"`
	RequestID     uuid.UUID `db:"request_id"`
	RequestType   string    `db:"request_type"`
	Action        string    `db:"action"`
	Status        string    `db:"status"`
	ActorID       string    `db:"actor_id"`
	ActorRole     string    `db:"actor_role"`
	Comment       string    `db:"comment"`
	CorrelationID string    `db:"correlation_id"`
	CreatedAt     time.Time `db:"created_at"`
}

var entryStruct = sqlbuilder.NewStruct(new(entryRow)).For(sqlbuilder.PostgreSQL)

func (r entryRow) toEntry() Entry {
	e := Entry{
		ID:            r.ID,
		Timestamp:     r.CreatedAt,
		RequestID:     r.RequestID,
		RequestType:   workflow.RequestType(r.RequestType),
		Action:        r.Action,
		ActorID:       r.ActorID,
		ActorRole:     r.ActorRole,
		Comment:       r.Comment,
		CorrelationID: r.CorrelationID,
	}
	if st, err := workflow.ParseStatus(r.Status); err == nil {
		e.Status = st
	}
	return e
}

// PostgresStore keeps history in the audit_entries table.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	ctx, span := database.StartSpan(ctx, "audit.PostgresStore.Append")
	defer span.End()

	row := entryRow{
		ID:            entry.ID,
		RequestID:     entry.RequestID,
		RequestType:   entry.RequestType.String(),
		Action:        entry.Action,
		Status:        string(entry.Status),
		ActorID:       entry.ActorID,
		ActorRole:     entry.ActorRole,
		Comment:       entry.Comment,
		CorrelationID: entry.CorrelationID,
		CreatedAt:     entry.Timestamp,
	}
	query, args := entryStruct.InsertInto("audit_entries", &row).Build()
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, query, args...)
	return database.Translate(err, "insert audit entry")
}

func (s *PostgresStore) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]Entry, error) {
	ctx, span := database.StartSpan(ctx, "audit.PostgresStore.ListByRequest")
	defer span.End()

	sb := entryStruct.SelectFrom("audit_entries")
	sb.Where(sb.Equal("request_id", requestID))
	sb.OrderBy("created_at").Asc()
	query, args := sb.Build()

	var rows []entryRow
	if err := tx.Conn(ctx, s.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, database.Translate(err, "list audit entries")
	}
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toEntry())
	}
	return out, nil
}
