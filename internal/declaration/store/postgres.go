package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"etatcivil/internal/declaration/models"
	"etatcivil/internal/platform/database"
	"etatcivil/internal/workflow"
	id "etatcivil/pkg/domain"
	"etatcivil/pkg/platform/tx"
)

type declarationRow struct {
	ID             uuid.UUID      `db:"id"`
	CitizenID      uuid.UUID      `db:"citizen_id"`
	ChildFirstName string         `db:"child_first_name"`
	ChildLastName  string         `db:"child_last_name"`
	ChildGender    string         `db:"child_gender"`
	BirthDate      time.Time      `db:"birth_date"`
	BirthPlace     string         `db:"birth_place"`
	FatherName     string         `db:"father_name"`
	MotherName     string         `db:"mother_name"`
	Status         string         `db:"status"`
	AgentID        uuid.NullUUID  `db:"agent_id"`
	Comment        sql.NullString `db:"comment"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

type documentRow struct {
	ID            uuid.UUID `db:"id"`
	DeclarationID uuid.UUID `db:"declaration_id"`
	Type          string    `db:"type"`
	URL           string    `db:"url"`
	PublicID      string    `db:"public_id"`
	CreatedAt     time.Time `db:"created_at"`
}

var (
	declarationStruct = sqlbuilder.NewStruct(new(declarationRow)).For(sqlbuilder.PostgreSQL)
	documentStruct    = sqlbuilder.NewStruct(new(documentRow)).For(sqlbuilder.PostgreSQL)
)

func declarationFrom(d *models.Declaration) declarationRow {
	row := declarationRow{
		ID:             uuid.UUID(d.ID),
		CitizenID:      uuid.UUID(d.CitizenID),
		ChildFirstName: d.ChildFirstName,
		ChildLastName:  d.ChildLastName,
		ChildGender:    d.ChildGender,
		BirthDate:      d.BirthDate,
		BirthPlace:     d.BirthPlace,
		FatherName:     d.FatherName,
		MotherName:     d.MotherName,
		Status:         d.Status.String(),
		Comment:        sql.NullString{String: d.Comment, Valid: d.Comment != ""},
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	if d.AgentID != nil {
		row.AgentID = uuid.NullUUID{UUID: uuid.UUID(*d.AgentID), Valid: true}
	}
	return row
}

// toModel reads the stored status leniently so rows written with legacy
// literals still load.
func (r declarationRow) toModel() *models.Declaration {
	status, err := workflow.ParseStatus(r.Status)
	if err != nil {
		status = workflow.Status(r.Status)
	}
	d := &models.Declaration{
		ID:             id.DeclarationID(r.ID),
		CitizenID:      id.UserID(r.CitizenID),
		ChildFirstName: r.ChildFirstName,
		ChildLastName:  r.ChildLastName,
		ChildGender:    r.ChildGender,
		BirthDate:      r.BirthDate,
		BirthPlace:     r.BirthPlace,
		FatherName:     r.FatherName,
		MotherName:     r.MotherName,
		Status:         status,
		Comment:        r.Comment.String,
		Documents:      []models.Document{},
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.AgentID.Valid {
		a := id.UserID(r.AgentID.UUID)
		d.AgentID = &a
	}
	return d
}

func (r documentRow) toModel() models.Document {
	return models.Document{
		ID:            id.DocumentID(r.ID),
		DeclarationID: id.DeclarationID(r.DeclarationID),
		Type:          r.Type,
		URL:           r.URL,
		PublicID:      r.PublicID,
		CreatedAt:     r.CreatedAt,
	}
}

// PostgresDeclarations persists declarations in birth_declarations and
// declaration_documents.
type PostgresDeclarations struct {
	db *sqlx.DB
}

func NewPostgresDeclarations(db *sqlx.DB) *PostgresDeclarations {
	return &PostgresDeclarations{db: db}
}

func (s *PostgresDeclarations) Create(ctx context.Context, d *models.Declaration) error {
	ctx, span := database.StartSpan(ctx, "declaration.PostgresDeclarations.Create")
	defer span.End()

	row := declarationFrom(d)
	query, args := declarationStruct.InsertInto("birth_declarations", &row).Build()
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, query, args...)
	return database.Translate(err, "insert declaration")
}

func (s *PostgresDeclarations) AddDocument(ctx context.Context, doc *models.Document) error {
	ctx, span := database.StartSpan(ctx, "declaration.PostgresDeclarations.AddDocument")
	defer span.End()

	row := documentRow{
		ID:            uuid.UUID(doc.ID),
		DeclarationID: uuid.UUID(doc.DeclarationID),
		Type:          doc.Type,
		URL:           doc.URL,
		PublicID:      doc.PublicID,
		CreatedAt:     doc.CreatedAt,
	}
	query, args := documentStruct.InsertInto("declaration_documents", &row).Build()
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, query, args...)
	return database.Translate(err, "insert declaration document")
}

func (s *PostgresDeclarations) FindByID(ctx context.Context, declarationID id.DeclarationID) (*models.Declaration, error) {
	ctx, span := database.StartSpan(ctx, "declaration.PostgresDeclarations.FindByID")
	defer span.End()

	sb := declarationStruct.SelectFrom("birth_declarations")
	sb.Where(sb.Equal("id", uuid.UUID(declarationID)))
	d, err := s.getOne(ctx, sb)
	if err != nil {
		return nil, err
	}
	if err := s.loadDocuments(ctx, []*models.Declaration{d}); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *PostgresDeclarations) ListByCitizen(ctx context.Context, citizenID id.UserID) ([]*models.Declaration, error) {
	ctx, span := database.StartSpan(ctx, "declaration.PostgresDeclarations.ListByCitizen")
	defer span.End()

	sb := declarationStruct.SelectFrom("birth_declarations")
	sb.Where(
		sb.Equal("citizen_id", uuid.UUID(citizenID)),
		sb.NotEqual("status", workflow.StatusDeleted.String()),
	)
	sb.OrderBy("created_at").Desc()
	return s.list(ctx, sb)
}

func (s *PostgresDeclarations) ListActive(ctx context.Context, status workflow.Status) ([]*models.Declaration, error) {
	ctx, span := database.StartSpan(ctx, "declaration.PostgresDeclarations.ListActive")
	defer span.End()

	sb := declarationStruct.SelectFrom("birth_declarations")
	sb.Where(sb.NotEqual("status", workflow.StatusDeleted.String()))
	if status != "" {
		sb.Where(sb.Equal("status", status.String()))
	}
	sb.OrderBy("created_at").Desc()
	return s.list(ctx, sb)
}

func (s *PostgresDeclarations) CountByStatus(ctx context.Context) (map[workflow.Status]int, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("status", "COUNT(*) AS n").From("birth_declarations")
	sb.Where(sb.NotEqual("status", workflow.StatusDeleted.String()))
	sb.GroupBy("status")
	query, args := sb.Build()

	var rows []struct {
		Status string `db:"status"`
		N      int    `db:"n"`
	}
	if err := tx.Conn(ctx, s.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, database.Translate(err, "count declarations")
	}
	out := make(map[workflow.Status]int, len(rows))
	for _, r := range rows {
		status, err := workflow.ParseStatus(r.Status)
		if err != nil || !status.IsVisible() {
			continue
		}
		out[status] += r.N
	}
	return out, nil
}

// Execute locks the declaration row, validates, mutates and saves it.
// Documents are not rewritten.
func (s *PostgresDeclarations) Execute(ctx context.Context, declarationID id.DeclarationID, validate func(*models.Declaration) error, mutate func(*models.Declaration)) (*models.Declaration, error) {
	ctx, span := database.StartSpan(ctx, "declaration.PostgresDeclarations.Execute")
	defer span.End()

	var out *models.Declaration
	err := database.NewPostgresTx(s.db).RunInTx(ctx, func(txCtx context.Context) error {
		sb := declarationStruct.SelectFrom("birth_declarations")
		sb.Where(sb.Equal("id", uuid.UUID(declarationID))).ForUpdate()
		d, err := s.getOne(txCtx, sb)
		if err != nil {
			return err
		}
		if err := validate(d); err != nil {
			return err
		}
		mutate(d)

		row := declarationFrom(d)
		ub := declarationStruct.Update("birth_declarations", &row)
		ub.Where(ub.Equal("id", row.ID))
		query, args := ub.Build()
		if _, err := tx.Conn(txCtx, s.db).ExecContext(txCtx, query, args...); err != nil {
			return database.Translate(err, "update declaration")
		}
		if err := s.loadDocuments(txCtx, []*models.Declaration{d}); err != nil {
			return err
		}
		out = d
		return nil
	})
	return out, err
}

func (s *PostgresDeclarations) getOne(ctx context.Context, sb *sqlbuilder.SelectBuilder) (*models.Declaration, error) {
	query, args := sb.Build()
	var row declarationRow
	if err := tx.Conn(ctx, s.db).GetContext(ctx, &row, query, args...); err != nil {
		return nil, database.Translate(err, "find declaration")
	}
	return row.toModel(), nil
}

func (s *PostgresDeclarations) list(ctx context.Context, sb *sqlbuilder.SelectBuilder) ([]*models.Declaration, error) {
	query, args := sb.Build()
	var rows []declarationRow
	if err := tx.Conn(ctx, s.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, database.Translate(err, "list declarations")
	}
	out := make([]*models.Declaration, 0, len(rows))
	for _, r := range rows {
		// legacy deleted literals slip past the SQL filter
		if m := r.toModel(); m.Status.IsVisible() {
			out = append(out, m)
		}
	}
	if err := s.loadDocuments(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresDeclarations) loadDocuments(ctx context.Context, declarations []*models.Declaration) error {
	if len(declarations) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*models.Declaration, len(declarations))
	ids := make([]any, 0, len(declarations))
	for _, d := range declarations {
		byID[uuid.UUID(d.ID)] = d
		ids = append(ids, uuid.UUID(d.ID))
	}

	sb := documentStruct.SelectFrom("declaration_documents")
	sb.Where(sb.In("declaration_id", ids...))
	sb.OrderBy("created_at").Asc()
	query, args := sb.Build()

	var rows []documentRow
	if err := tx.Conn(ctx, s.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return database.Translate(err, "list declaration documents")
	}
	for _, r := range rows {
		if d, ok := byID[r.DeclarationID]; ok {
			d.Documents = append(d.Documents, r.toModel())
		}
	}
	return nil
}
