package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"etatcivil/internal/declaration/models"
	"etatcivil/internal/workflow"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/platform/sentinel"
)

type InMemoryDeclarationsSuite struct {
	suite.Suite
	store   *InMemoryDeclarations
	ctx     context.Context
	now     time.Time
	citizen id.UserID
}

func TestInMemoryDeclarationsSuite(t *testing.T) {
	suite.Run(t, new(InMemoryDeclarationsSuite))
}

func (s *InMemoryDeclarationsSuite) SetupTest() {
	s.store = NewInMemoryDeclarations()
	s.ctx = context.Background()
	s.now = time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)
	s.citizen = id.UserID(uuid.New())
}

func (s *InMemoryDeclarationsSuite) create(citizenID id.UserID, at time.Time) *models.Declaration {
	d, err := models.NewDeclaration(id.DeclarationID(uuid.New()), citizenID, models.Child{
		FirstName: "Fatou",
		LastName:  "Ndiaye",
		BirthDate: at.AddDate(0, 0, -1),
	}, at)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, d))
	return d
}

func (s *InMemoryDeclarationsSuite) setStatus(declarationID id.DeclarationID, status workflow.Status) {
	_, err := s.store.Execute(s.ctx, declarationID, func(*models.Declaration) error { return nil }, func(d *models.Declaration) {
		d.Status = status
	})
	s.Require().NoError(err)
}

func (s *InMemoryDeclarationsSuite) TestDeletedDeclarationsAreHidden() {
	kept := s.create(s.citizen, s.now)
	gone := s.create(s.citizen, s.now.Add(time.Hour))
	s.setStatus(gone.ID, workflow.StatusDeleted)

	mine, err := s.store.ListByCitizen(s.ctx, s.citizen)
	s.Require().NoError(err)
	s.Require().Len(mine, 1)
	s.Equal(kept.ID, mine[0].ID)

	all, err := s.store.ListActive(s.ctx, "")
	s.Require().NoError(err)
	s.Len(all, 1)

	counts, err := s.store.CountByStatus(s.ctx)
	s.Require().NoError(err)
	s.Equal(map[workflow.Status]int{workflow.StatusPending: 1}, counts)

	found, err := s.store.FindByID(s.ctx, gone.ID)
	s.Require().NoError(err)
	s.Equal(workflow.StatusDeleted, found.Status)
}

func (s *InMemoryDeclarationsSuite) TestListActive() {
	older := s.create(s.citizen, s.now)
	newer := s.create(id.UserID(uuid.New()), s.now.Add(time.Hour))
	s.setStatus(older.ID, workflow.StatusInProgress)

	all, err := s.store.ListActive(s.ctx, "")
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(newer.ID, all[0].ID)

	inProgress, err := s.store.ListActive(s.ctx, workflow.StatusInProgress)
	s.Require().NoError(err)
	s.Require().Len(inProgress, 1)
	s.Equal(older.ID, inProgress[0].ID)
}

func (s *InMemoryDeclarationsSuite) TestDocuments() {
	d := s.create(s.citizen, s.now)

	doc, err := models.NewDocument(id.DocumentID(uuid.New()), d.ID, "ACTE", "https://files/acte.pdf", "acte", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.AddDocument(s.ctx, doc))

	found, err := s.store.FindByID(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Require().Len(found.Documents, 1)
	s.Equal("ACTE", found.Documents[0].Type)

	found.Documents[0].URL = "mutated"
	again, _ := s.store.FindByID(s.ctx, d.ID)
	s.Equal("https://files/acte.pdf", again.Documents[0].URL)

	orphan, err := models.NewDocument(id.DocumentID(uuid.New()), id.DeclarationID(uuid.New()), "ACTE", "https://files/x.pdf", "", s.now)
	s.Require().NoError(err)
	s.ErrorIs(s.store.AddDocument(s.ctx, orphan), sentinel.ErrNotFound)
}

func (s *InMemoryDeclarationsSuite) TestExecute() {
	d := s.create(s.citizen, s.now)
	agentID := id.UserID(uuid.New())

	s.Run("validation failure leaves the declaration untouched", func() {
		_, err := s.store.Execute(s.ctx, d.ID,
			func(*models.Declaration) error { return dErrors.New(dErrors.CodeInvalidStatus, "nope") },
			func(d *models.Declaration) { d.Status = workflow.StatusRejected },
		)
		s.Require().Error(err)
		found, _ := s.store.FindByID(s.ctx, d.ID)
		s.Equal(workflow.StatusPending, found.Status)
	})

	s.Run("mutation is stored and returned", func() {
		out, err := s.store.Execute(s.ctx, d.ID, func(*models.Declaration) error { return nil }, func(d *models.Declaration) {
			d.Status = workflow.StatusInProgress
			d.AgentID = &agentID
		})
		s.Require().NoError(err)
		s.Equal(workflow.StatusInProgress, out.Status)

		found, _ := s.store.FindByID(s.ctx, d.ID)
		s.Require().NotNil(found.AgentID)
		s.Equal(agentID, *found.AgentID)
	})

	s.Run("unknown id", func() {
		_, err := s.store.Execute(s.ctx, id.DeclarationID(uuid.New()), func(*models.Declaration) error { return nil }, func(*models.Declaration) {})
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}
