package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"etatcivil/internal/certificate/models"
	"etatcivil/internal/workflow"
	id "etatcivil/pkg/domain"
	"etatcivil/pkg/platform/sentinel"
)

type InMemoryCertificatesSuite struct {
	suite.Suite
	store *InMemoryCertificates
	ctx   context.Context
	now   time.Time
}

func TestInMemoryCertificatesSuite(t *testing.T) {
	suite.Run(t, new(InMemoryCertificatesSuite))
}

func (s *InMemoryCertificatesSuite) SetupTest() {
	s.store = NewInMemoryCertificates()
	s.ctx = context.Background()
	s.now = time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)
}

func (s *InMemoryCertificatesSuite) newCertificate(tracking string, at time.Time) *models.Certificate {
	c, err := models.NewCertificate(id.CertificateID(uuid.New()), id.UserID(uuid.New()), models.Subject{
		FullName:  "Awa Diop",
		BirthDate: at.AddDate(-30, 0, 0),
		Reason:    "passport",
	}, tracking, at)
	s.Require().NoError(err)
	return c
}

func (s *InMemoryCertificatesSuite) TestTrackingNumberIsUnique() {
	s.Require().NoError(s.store.Create(s.ctx, s.newCertificate("AN-20250410-AAAAAAAA", s.now)))
	s.ErrorIs(s.store.Create(s.ctx, s.newCertificate("AN-20250410-AAAAAAAA", s.now)), sentinel.ErrConflict)
}

func (s *InMemoryCertificatesSuite) TestFindByTrackingNumber() {
	c := s.newCertificate("AN-20250410-BBBBBBBB", s.now)
	s.Require().NoError(s.store.Create(s.ctx, c))

	found, err := s.store.FindByTrackingNumber(s.ctx, "AN-20250410-BBBBBBBB")
	s.Require().NoError(err)
	s.Equal(c.ID, found.ID)

	_, err = s.store.FindByTrackingNumber(s.ctx, "AN-20250410-CCCCCCCC")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryCertificatesSuite) TestFilesAreAppendOnly() {
	c := s.newCertificate("AN-20250410-DDDDDDDD", s.now)
	s.Require().NoError(s.store.Create(s.ctx, c))

	for _, url := range []string{"https://files/1.pdf", "https://files/2.pdf"} {
		f, err := models.NewFile(id.DocumentID(uuid.New()), c.ID, "ACTE", url, "", s.now)
		s.Require().NoError(err)
		s.Require().NoError(s.store.AddFile(s.ctx, f))
	}

	_, err := s.store.Execute(s.ctx, c.ID, func(*models.Certificate) error { return nil }, func(c *models.Certificate) {
		c.Status = workflow.StatusCompleted
	})
	s.Require().NoError(err)

	found, err := s.store.FindByID(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Require().Len(found.Files, 2)
	s.Equal("https://files/2.pdf", found.Files[1].URL)
	s.Equal(workflow.StatusCompleted, found.Status)

	orphan, err := models.NewFile(id.DocumentID(uuid.New()), id.CertificateID(uuid.New()), "ACTE", "https://files/x.pdf", "", s.now)
	s.Require().NoError(err)
	s.ErrorIs(s.store.AddFile(s.ctx, orphan), sentinel.ErrNotFound)
}

func (s *InMemoryCertificatesSuite) TestVisibility() {
	older := s.newCertificate("AN-20250410-EEEEEEEE", s.now)
	newer := s.newCertificate("AN-20250410-FFFFFFFF", s.now.Add(time.Hour))
	s.Require().NoError(s.store.Create(s.ctx, older))
	s.Require().NoError(s.store.Create(s.ctx, newer))
	_, err := s.store.Execute(s.ctx, older.ID, func(*models.Certificate) error { return nil }, func(c *models.Certificate) {
		c.Status = workflow.StatusDeleted
	})
	s.Require().NoError(err)

	list, err := s.store.ListActive(s.ctx, "")
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(newer.ID, list[0].ID)

	mine, err := s.store.ListByCitizen(s.ctx, older.CitizenID)
	s.Require().NoError(err)
	s.Empty(mine)

	counts, err := s.store.CountByStatus(s.ctx)
	s.Require().NoError(err)
	s.Equal(map[workflow.Status]int{workflow.StatusPending: 1}, counts)
}
