package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"etatcivil/internal/certificate/models"
	"etatcivil/internal/platform/database"
	"etatcivil/internal/workflow"
	id "etatcivil/pkg/domain"
	"etatcivil/pkg/platform/tx"
)

type certificateRow struct {
	ID             uuid.UUID      `db:"id"`
	CitizenID      uuid.UUID      `db:"citizen_id"`
	FullName       string         `db:"full_name"`
	BirthDate      time.Time      `db:"birth_date"`
	BirthPlace     string         `db:"birth_place"`
	FatherName     string         `db:"father_name"`
	MotherName     string         `db:"mother_name"`
	Reason         string         `db:"reason"`
	RegistryNumber sql.NullString `db:"registry_number"`
	Status         string         `db:"status"`
	TrackingNumber string         `db:"tracking_number"`
	Comment        sql.NullString `db:"comment"`
	AgentID        uuid.NullUUID  `db:"agent_id"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

type fileRow struct {
	ID            uuid.UUID `db:"id"`
	CertificateID uuid.UUID `db:"certificate_id"`
	Type          string    `db:"type"`
	URL           string    `db:"url"`
	PublicID      string    `db:"public_id"`
	CreatedAt     time.Time `db:"created_at"`
}

var (
	certificateStruct = sqlbuilder.NewStruct(new(certificateRow)).For(sqlbuilder.PostgreSQL)
	fileStruct        = sqlbuilder.NewStruct(new(fileRow)).For(sqlbuilder.PostgreSQL)
)

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func certificateFrom(c *models.Certificate) certificateRow {
	row := certificateRow{
		ID:             uuid.UUID(c.ID),
		CitizenID:      uuid.UUID(c.CitizenID),
		FullName:       c.FullName,
		BirthDate:      c.BirthDate,
		BirthPlace:     c.BirthPlace,
		FatherName:     c.FatherName,
		MotherName:     c.MotherName,
		Reason:         c.Reason,
		RegistryNumber: nullString(c.RegistryNumber),
		Status:         c.Status.String(),
		TrackingNumber: c.TrackingNumber,
		Comment:        nullString(c.Comment),
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
	if c.AgentID != nil {
		row.AgentID = uuid.NullUUID{UUID: uuid.UUID(*c.AgentID), Valid: true}
	}
	return row
}

func (r certificateRow) toModel() *models.Certificate {
	status, err := workflow.ParseStatus(r.Status)
	if err != nil {
		status = workflow.Status(r.Status)
	}
	c := &models.Certificate{
		ID:             id.CertificateID(r.ID),
		CitizenID:      id.UserID(r.CitizenID),
		FullName:       r.FullName,
		BirthDate:      r.BirthDate,
		BirthPlace:     r.BirthPlace,
		FatherName:     r.FatherName,
		MotherName:     r.MotherName,
		Reason:         r.Reason,
		RegistryNumber: r.RegistryNumber.String,
		Status:         status,
		TrackingNumber: r.TrackingNumber,
		Comment:        r.Comment.String,
		Files:          []models.File{},
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.AgentID.Valid {
		a := id.UserID(r.AgentID.UUID)
		c.AgentID = &a
	}
	return c
}

func (r fileRow) toModel() models.File {
	return models.File{
		ID:            id.DocumentID(r.ID),
		CertificateID: id.CertificateID(r.CertificateID),
		Type:          r.Type,
		URL:           r.URL,
		PublicID:      r.PublicID,
		CreatedAt:     r.CreatedAt,
	}
}

// PostgresCertificates persists certificate requests in birth_certificates and
// certificate_files.
type PostgresCertificates struct {
	db *sqlx.DB
}

func NewPostgresCertificates(db *sqlx.DB) *PostgresCertificates {
	return &PostgresCertificates{db: db}
}

func (s *PostgresCertificates) Create(ctx context.Context, c *models.Certificate) error {
	ctx, span := database.StartSpan(ctx, "certificate.PostgresCertificates.Create")
	defer span.End()

	row := certificateFrom(c)
	query, args := certificateStruct.InsertInto("birth_certificates", &row).Build()
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, query, args...)
	return database.Translate(err, "insert certificate")
}

func (s *PostgresCertificates) AddFile(ctx context.Context, f *models.File) error {
	ctx, span := database.StartSpan(ctx, "certificate.PostgresCertificates.AddFile")
	defer span.End()

	row := fileRow{
		ID:            uuid.UUID(f.ID),
		CertificateID: uuid.UUID(f.CertificateID),
		Type:          f.Type,
		URL:           f.URL,
		PublicID:      f.PublicID,
		CreatedAt:     f.CreatedAt,
	}
	query, args := fileStruct.InsertInto("certificate_files", &row).Build()
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, query, args...)
	return database.Translate(err, "insert certificate file")
}

func (s *PostgresCertificates) FindByID(ctx context.Context, certificateID id.CertificateID) (*models.Certificate, error) {
	ctx, span := database.StartSpan(ctx, "certificate.PostgresCertificates.FindByID")
	defer span.End()

	sb := certificateStruct.SelectFrom("birth_certificates")
	sb.Where(sb.Equal("id", uuid.UUID(certificateID)))
	return s.findOne(ctx, sb)
}

func (s *PostgresCertificates) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Certificate, error) {
	ctx, span := database.StartSpan(ctx, "certificate.PostgresCertificates.FindByTrackingNumber")
	defer span.End()

	sb := certificateStruct.SelectFrom("birth_certificates")
	sb.Where(sb.Equal("tracking_number", trackingNumber))
	return s.findOne(ctx, sb)
}

func (s *PostgresCertificates) ListByCitizen(ctx context.Context, citizenID id.UserID) ([]*models.Certificate, error) {
	ctx, span := database.StartSpan(ctx, "certificate.PostgresCertificates.ListByCitizen")
	defer span.End()

	sb := certificateStruct.SelectFrom("birth_certificates")
	sb.Where(
		sb.Equal("citizen_id", uuid.UUID(citizenID)),
		sb.NotEqual("status", workflow.StatusDeleted.String()),
	)
	sb.OrderBy("created_at").Desc()
	return s.list(ctx, sb)
}

func (s *PostgresCertificates) ListActive(ctx context.Context, status workflow.Status) ([]*models.Certificate, error) {
	ctx, span := database.StartSpan(ctx, "certificate.PostgresCertificates.ListActive")
	defer span.End()

	sb := certificateStruct.SelectFrom("birth_certificates")
	sb.Where(sb.NotEqual("status", workflow.StatusDeleted.String()))
	if status != "" {
		sb.Where(sb.Equal("status", status.String()))
	}
	sb.OrderBy("created_at").Desc()
	return s.list(ctx, sb)
}

func (s *PostgresCertificates) CountByStatus(ctx context.Context) (map[workflow.Status]int, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("status", "COUNT(*) AS n").From("birth_certificates")
	sb.Where(sb.NotEqual("status", workflow.StatusDeleted.String()))
	sb.GroupBy("status")
	query, args := sb.Build()

	var rows []struct {
		Status string `db:"status"`
		N      int    `db:"n"`
	}
	if err := tx.Conn(ctx, s.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, database.Translate(err, "count certificates")
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

func (s *PostgresCertificates) Execute(ctx context.Context, certificateID id.CertificateID, validate func(*models.Certificate) error, mutate func(*models.Certificate)) (*models.Certificate, error) {
	ctx, span := database.StartSpan(ctx, "certificate.PostgresCertificates.Execute")
	defer span.End()

	var out *models.Certificate
	err := database.NewPostgresTx(s.db).RunInTx(ctx, func(txCtx context.Context) error {
		sb := certificateStruct.SelectFrom("birth_certificates")
		sb.Where(sb.Equal("id", uuid.UUID(certificateID))).ForUpdate()
		c, err := s.getOne(txCtx, sb)
		if err != nil {
			return err
		}
		if err := validate(c); err != nil {
			return err
		}
		mutate(c)

		row := certificateFrom(c)
		ub := certificateStruct.Update("birth_certificates", &row)
		ub.Where(ub.Equal("id", row.ID))
		query, args := ub.Build()
		if _, err := tx.Conn(txCtx, s.db).ExecContext(txCtx, query, args...); err != nil {
			return database.Translate(err, "update certificate")
		}
		if err := s.loadFiles(txCtx, []*models.Certificate{c}); err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

func (s *PostgresCertificates) findOne(ctx context.Context, sb *sqlbuilder.SelectBuilder) (*models.Certificate, error) {
	c, err := s.getOne(ctx, sb)
	if err != nil {
		return nil, err
	}
	if err := s.loadFiles(ctx, []*models.Certificate{c}); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PostgresCertificates) getOne(ctx context.Context, sb *sqlbuilder.SelectBuilder) (*models.Certificate, error) {
	query, args := sb.Build()
	var row certificateRow
	if err := tx.Conn(ctx, s.db).GetContext(ctx, &row, query, args...); err != nil {
		return nil, database.Translate(err, "find certificate")
	}
	return row.toModel(), nil
}

func (s *PostgresCertificates) list(ctx context.Context, sb *sqlbuilder.SelectBuilder) ([]*models.Certificate, error) {
	query, args := sb.Build()
	var rows []certificateRow
	if err := tx.Conn(ctx, s.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, database.Translate(err, "list certificates")
	}
	out := make([]*models.Certificate, 0, len(rows))
	for _, r := range rows {
		// legacy deleted literals slip past the SQL filter
		if m := r.toModel(); m.Status.IsVisible() {
			out = append(out, m)
		}
	}
	if err := s.loadFiles(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresCertificates) loadFiles(ctx context.Context, certificates []*models.Certificate) error {
	if len(certificates) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*models.Certificate, len(certificates))
	ids := make([]any, 0, len(certificates))
	for _, c := range certificates {
		byID[uuid.UUID(c.ID)] = c
		ids = append(ids, uuid.UUID(c.ID))
	}

	sb := fileStruct.SelectFrom("certificate_files")
	sb.Where(sb.In("certificate_id", ids...))
	sb.OrderBy("created_at").Asc()
	query, args := sb.Build()

	var rows []fileRow
	if err := tx.Conn(ctx, s.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return database.Translate(err, "list certificate files")
	}
	for _, r := range rows {
		if c, ok := byID[r.CertificateID]; ok {
			c.Files = append(c.Files, r.toModel())
		}
	}
	return nil
}
