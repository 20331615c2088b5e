package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"etatcivil/internal/account/models"
	"etatcivil/internal/workflow"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	citizens *InMemoryCitizens
	users    *InMemoryUsers
	ctx      context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.citizens = NewInMemoryCitizens()
	s.users = NewInMemoryUsers()
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) newCitizen(email string) *models.Citizen {
	c, err := models.NewCitizen(id.UserID(uuid.New()), "Awa", "Diop", email, "", "", "hash", time.Now())
	s.Require().NoError(err)
	return c
}

func (s *InMemoryStoreSuite) TestCitizenEmailUniqueness() {
	s.Require().NoError(s.citizens.Create(s.ctx, s.newCitizen("awa@example.sn")))
	s.ErrorIs(s.citizens.Create(s.ctx, s.newCitizen("AWA@example.sn")), sentinel.ErrConflict)

	found, err := s.citizens.FindByEmail(s.ctx, "Awa@Example.sn")
	s.Require().NoError(err)
	s.Equal("Diop", found.LastName)
}

func (s *InMemoryStoreSuite) TestReturnedCopiesAreIsolated() {
	c := s.newCitizen("copy@example.sn")
	s.Require().NoError(s.citizens.Create(s.ctx, c))

	found, err := s.citizens.FindByID(s.ctx, c.ID)
	s.Require().NoError(err)
	found.Status = workflow.AccountInactive

	again, err := s.citizens.FindByID(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(workflow.AccountActive, again.Status)
}

func (s *InMemoryStoreSuite) TestExecute() {
	c := s.newCitizen("exec@example.sn")
	s.Require().NoError(s.citizens.Create(s.ctx, c))

	s.Run("validation failure leaves the record untouched", func() {
		_, err := s.citizens.Execute(s.ctx, c.ID,
			func(*models.Citizen) error { return dErrors.New(dErrors.CodeInvalidStatus, "nope") },
			func(c *models.Citizen) { c.Status = workflow.AccountInactive },
		)
		s.Require().Error(err)
		found, _ := s.citizens.FindByID(s.ctx, c.ID)
		s.Equal(workflow.AccountActive, found.Status)
	})

	s.Run("unknown id", func() {
		_, err := s.citizens.Execute(s.ctx, id.UserID(uuid.New()),
			func(*models.Citizen) error { return nil }, func(*models.Citizen) {})
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestUsersCountByRole() {
	for _, role := range []id.Role{id.RoleAgent, id.RoleAgent, id.RoleAdmin} {
		u, err := models.NewUser(id.UserID(uuid.New()), "A", "B", uuid.NewString()+"@mairie.sn", role, "hash", time.Now())
		s.Require().NoError(err)
		s.Require().NoError(s.users.Create(s.ctx, u))
	}
	n, err := s.users.CountByRole(s.ctx, id.RoleAgent)
	s.Require().NoError(err)
	s.Equal(2, n)
}
