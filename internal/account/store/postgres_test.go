package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/suite"

	"etatcivil/internal/account/models"
	"etatcivil/internal/workflow"
	id "etatcivil/pkg/domain"
	"etatcivil/pkg/platform/sentinel"
)

var citizenColumns = []string{"id", "first_name", "last_name", "email", "phone", "address", "password_hash", "status", "created_at", "updated_at"}

type PostgresCitizensSuite struct {
	suite.Suite
	mock  sqlmock.Sqlmock
	store *PostgresCitizens
	ctx   context.Context
}

func TestPostgresCitizensSuite(t *testing.T) {
	suite.Run(t, new(PostgresCitizensSuite))
}

func (s *PostgresCitizensSuite) SetupTest() {
	raw, mock, err := sqlmock.New()
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = raw.Close() })
	s.mock = mock
	s.store = NewPostgresCitizens(sqlx.NewDb(raw, "postgres"))
	s.ctx = context.Background()
}

func (s *PostgresCitizensSuite) TearDownTest() {
	s.Require().NoError(s.mock.ExpectationsWereMet())
}

func (s *PostgresCitizensSuite) TestCreate() {
	now := time.Now()
	c, err := models.NewCitizen(id.UserID(uuid.New()), "Awa", "Diop", "Awa@Example.sn", "", "", "hash", now)
	s.Require().NoError(err)

	s.Run("inserts lowercased email", func() {
		s.mock.ExpectExec(`INSERT INTO citizens`).
			WithArgs(uuid.UUID(c.ID), "Awa", "Diop", "awa@example.sn", "", "", "hash", "active", now, now).
			WillReturnResult(sqlmock.NewResult(0, 1))
		s.Require().NoError(s.store.Create(s.ctx, c))
	})

	s.Run("unique violation becomes conflict", func() {
		s.mock.ExpectExec(`INSERT INTO citizens`).WillReturnError(&pq.Error{Code: "23505"})
		s.ErrorIs(s.store.Create(s.ctx, c), sentinel.ErrConflict)
	})
}

func (s *PostgresCitizensSuite) TestFindByEmail() {
	citizenID := uuid.New()
	now := time.Now()

	s.Run("maps the row", func() {
		rows := sqlmock.NewRows(citizenColumns).
			AddRow(citizenID.String(), "Awa", "Diop", "awa@example.sn", "770000000", "Dakar", "hash", "inactive", now, now)
		s.mock.ExpectQuery(`SELECT (.+) FROM citizens WHERE email = \$1`).WithArgs("awa@example.sn").WillReturnRows(rows)

		c, err := s.store.FindByEmail(s.ctx, "AWA@example.sn")
		s.Require().NoError(err)
		s.Equal(id.UserID(citizenID), c.ID)
		s.Equal(workflow.AccountInactive, c.Status)
		s.Equal("Dakar", c.Address)
	})

	s.Run("no rows is not found", func() {
		s.mock.ExpectQuery(`SELECT (.+) FROM citizens`).WillReturnRows(sqlmock.NewRows(citizenColumns))
		_, err := s.store.FindByEmail(s.ctx, "nobody@example.sn")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PostgresCitizensSuite) TestExecute() {
	citizenID := uuid.New()
	now := time.Now()

	s.mock.ExpectBegin()
	s.mock.ExpectQuery(`SELECT (.+) FROM citizens WHERE id = \$1 FOR UPDATE`).
		WithArgs(citizenID).
		WillReturnRows(sqlmock.NewRows(citizenColumns).
			AddRow(citizenID.String(), "Awa", "Diop", "awa@example.sn", "", "", "hash", "active", now, now))
	s.mock.ExpectExec(`UPDATE citizens SET (.+) WHERE id = \$11`).WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()

	later := now.Add(time.Minute)
	c, err := s.store.Execute(s.ctx, id.UserID(citizenID),
		func(*models.Citizen) error { return nil },
		func(c *models.Citizen) { c.ApplyStatus(workflow.AccountInactive, later) },
	)
	s.Require().NoError(err)
	s.Equal(workflow.AccountInactive, c.Status)
	s.Equal(later, c.UpdatedAt)
}
