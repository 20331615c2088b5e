package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"etatcivil/internal/account/models"
	"etatcivil/internal/platform/database"
	"etatcivil/internal/workflow"
	id "etatcivil/pkg/domain"
	"etatcivil/pkg/platform/tx"
)

type citizenRow struct {
	ID           uuid.UUID `db:"id"`
	FirstName    string    `db:"first_name"`
	LastName     string    `db:"last_name"`
	Email        string    `db:"email"`
	Phone        string    `db:"phone"`
	Address      string    `db:"address"`
	PasswordHash string    `db:"password_hash"`
	Status       string    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

type userRow struct {
	ID           uuid.UUID `db:"id"`
	FirstName    string    `db:"first_name"`
	LastName     string    `db:"last_name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	Status       string    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

var (
	citizenStruct = sqlbuilder.NewStruct(new(citizenRow)).For(sqlbuilder.PostgreSQL)
	userStruct    = sqlbuilder.NewStruct(new(userRow)).For(sqlbuilder.PostgreSQL)
)

func citizenFrom(c *models.Citizen) citizenRow {
	return citizenRow{
		ID:           uuid.UUID(c.ID),
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		Email:        strings.ToLower(c.Email),
		Phone:        c.Phone,
		Address:      c.Address,
		PasswordHash: c.PasswordHash,
		Status:       c.Status.String(),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func (r citizenRow) toModel() *models.Citizen {
	return &models.Citizen{
		ID:           id.UserID(r.ID),
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Email:        r.Email,
		Phone:        r.Phone,
		Address:      r.Address,
		PasswordHash: r.PasswordHash,
		Status:       workflow.AccountStatus(r.Status),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func userFrom(u *models.User) userRow {
	return userRow{
		ID:           uuid.UUID(u.ID),
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Email:        strings.ToLower(u.Email),
		PasswordHash: u.PasswordHash,
		Role:         u.Role.String(),
		Status:       u.Status.String(),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (r userRow) toModel() *models.User {
	return &models.User{
		ID:           id.UserID(r.ID),
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         id.Role(r.Role),
		Status:       workflow.AccountStatus(r.Status),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// PostgresCitizens persists citizens in the citizens table.
type PostgresCitizens struct {
	db *sqlx.DB
}

func NewPostgresCitizens(db *sqlx.DB) *PostgresCitizens {
	return &PostgresCitizens{db: db}
}

func (s *PostgresCitizens) Create(ctx context.Context, c *models.Citizen) error {
	ctx, span := database.StartSpan(ctx, "account.PostgresCitizens.Create")
	defer span.End()

	row := citizenFrom(c)
	query, args := citizenStruct.InsertInto("citizens", &row).Build()
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, query, args...)
	return database.Translate(err, "insert citizen")
}

func (s *PostgresCitizens) FindByID(ctx context.Context, citizenID id.UserID) (*models.Citizen, error) {
	ctx, span := database.StartSpan(ctx, "account.PostgresCitizens.FindByID")
	defer span.End()

	sb := citizenStruct.SelectFrom("citizens")
	sb.Where(sb.Equal("id", uuid.UUID(citizenID)))
	return s.getOne(ctx, sb)
}

func (s *PostgresCitizens) FindByEmail(ctx context.Context, email string) (*models.Citizen, error) {
	ctx, span := database.StartSpan(ctx, "account.PostgresCitizens.FindByEmail")
	defer span.End()

	sb := citizenStruct.SelectFrom("citizens")
	sb.Where(sb.Equal("email", strings.ToLower(email)))
	return s.getOne(ctx, sb)
}

func (s *PostgresCitizens) List(ctx context.Context) ([]*models.Citizen, error) {
	ctx, span := database.StartSpan(ctx, "account.PostgresCitizens.List")
	defer span.End()

	sb := citizenStruct.SelectFrom("citizens")
	sb.OrderBy("created_at").Desc()
	query, args := sb.Build()

	var rows []citizenRow
	if err := tx.Conn(ctx, s.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, database.Translate(err, "list citizens")
	}
	out := make([]*models.Citizen, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *PostgresCitizens) Count(ctx context.Context) (int, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)").From("citizens")
	query, args := sb.Build()

	var n int
	if err := tx.Conn(ctx, s.db).GetContext(ctx, &n, query, args...); err != nil {
		return 0, database.Translate(err, "count citizens")
	}
	return n, nil
}

// Execute locks the row (FOR UPDATE) inside a transaction, validates, mutates and saves it.
func (s *PostgresCitizens) Execute(ctx context.Context, citizenID id.UserID, validate func(*models.Citizen) error, mutate func(*models.Citizen)) (*models.Citizen, error) {
	ctx, span := database.StartSpan(ctx, "account.PostgresCitizens.Execute")
	defer span.End()

	var out *models.Citizen
	err := database.NewPostgresTx(s.db).RunInTx(ctx, func(txCtx context.Context) error {
		sb := citizenStruct.SelectFrom("citizens")
		sb.Where(sb.Equal("id", uuid.UUID(citizenID))).ForUpdate()
		c, err := s.getOne(txCtx, sb)
		if err != nil {
			return err
		}
		if err := validate(c); err != nil {
			return err
		}
		mutate(c)

		row := citizenFrom(c)
		ub := citizenStruct.Update("citizens", &row)
		ub.Where(ub.Equal("id", row.ID))
		query, args := ub.Build()
		if _, err := tx.Conn(txCtx, s.db).ExecContext(txCtx, query, args...); err != nil {
			return database.Translate(err, "update citizen")
		}
		out = c
		return nil
	})
	return out, err
}

func (s *PostgresCitizens) getOne(ctx context.Context, sb *sqlbuilder.SelectBuilder) (*models.Citizen, error) {
	query, args := sb.Build()
	var row citizenRow
	if err := tx.Conn(ctx, s.db).GetContext(ctx, &row, query, args...); err != nil {
		return nil, database.Translate(err, "find citizen")
	}
	return row.toModel(), nil
}

// PostgresUsers persists staff users in the users table.
type PostgresUsers struct {
	db *sqlx.DB
}

func NewPostgresUsers(db *sqlx.DB) *PostgresUsers {
	return &PostgresUsers{db: db}
}

func (s *PostgresUsers) Create(ctx context.Context, u *models.User) error {
	ctx, span := database.StartSpan(ctx, "account.PostgresUsers.Create")
	defer span.End()

	row := userFrom(u)
	query, args := userStruct.InsertInto("users", &row).Build()
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, query, args...)
	return database.Translate(err, "insert user")
}

func (s *PostgresUsers) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	sb := userStruct.SelectFrom("users")
	sb.Where(sb.Equal("id", uuid.UUID(userID)))
	return s.getOne(ctx, sb)
}

func (s *PostgresUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	sb := userStruct.SelectFrom("users")
	sb.Where(sb.Equal("email", strings.ToLower(email)))
	return s.getOne(ctx, sb)
}

func (s *PostgresUsers) List(ctx context.Context) ([]*models.User, error) {
	ctx, span := database.StartSpan(ctx, "account.PostgresUsers.List")
	defer span.End()

	sb := userStruct.SelectFrom("users")
	sb.OrderBy("created_at").Desc()
	query, args := sb.Build()

	var rows []userRow
	if err := tx.Conn(ctx, s.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, database.Translate(err, "list users")
	}
	out := make([]*models.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *PostgresUsers) CountByRole(ctx context.Context, role id.Role) (int, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)").From("users").Where(sb.Equal("role", role.String()))
	query, args := sb.Build()

	var n int
	if err := tx.Conn(ctx, s.db).GetContext(ctx, &n, query, args...); err != nil {
		return 0, database.Translate(err, "count users")
	}
	return n, nil
}

func (s *PostgresUsers) Execute(ctx context.Context, userID id.UserID, validate func(*models.User) error, mutate func(*models.User)) (*models.User, error) {
	ctx, span := database.StartSpan(ctx, "account.PostgresUsers.Execute")
	defer span.End()

	var out *models.User
	err := database.NewPostgresTx(s.db).RunInTx(ctx, func(txCtx context.Context) error {
		sb := userStruct.SelectFrom("users")
		sb.Where(sb.Equal("id", uuid.UUID(userID))).ForUpdate()
		u, err := s.getOne(txCtx, sb)
		if err != nil {
			return err
		}
		if err := validate(u); err != nil {
			return err
		}
		mutate(u)

		row := userFrom(u)
		ub := userStruct.Update("users", &row)
		ub.Where(ub.Equal("id", row.ID))
		query, args := ub.Build()
		if _, err := tx.Conn(txCtx, s.db).ExecContext(txCtx, query, args...); err != nil {
			return database.Translate(err, "update user")
		}
		out = u
		return nil
	})
	return out, err
}

func (s *PostgresUsers) getOne(ctx context.Context, sb *sqlbuilder.SelectBuilder) (*models.User, error) {
	query, args := sb.Build()
	var row userRow
	if err := tx.Conn(ctx, s.db).GetContext(ctx, &row, query, args...); err != nil {
		return nil, database.Translate(err, "find user")
	}
	return row.toModel(), nil
}
