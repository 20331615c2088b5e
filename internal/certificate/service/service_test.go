package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"etatcivil/internal/certificate/models"
	"etatcivil/internal/certificate/store"
	"etatcivil/internal/events"
	paymentModels "etatcivil/internal/payment/models"
	paymentStore "etatcivil/internal/payment/store"
	"etatcivil/internal/workflow"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/requestcontext"
)

type capturePublisher struct {
	events []events.Event
}

func (c *capturePublisher) Publish(_ context.Context, e events.Event) {
	c.events = append(c.events, e)
}

type ServiceSuite struct {
	suite.Suite
	store     *store.InMemoryCertificates
	payments  *paymentStore.InMemoryPayments
	publisher *capturePublisher
	service   *Service
	ctx       context.Context
	citizenID id.UserID
	agentID   id.UserID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewInMemoryCertificates()
	s.payments = paymentStore.NewInMemoryPayments()
	s.publisher = &capturePublisher{}
	s.service = New(s.store, s.payments, WithPublisher(s.publisher))
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2025, 4, 10, 8, 0, 0, 0, time.UTC))
	s.citizenID = id.UserID(uuid.New())
	s.agentID = id.UserID(uuid.New())
}

func validRequest() *models.CreateRequest {
	return &models.CreateRequest{
		FullName:   "Awa Diop",
		BirthDate:  "1990-06-12",
		BirthPlace: "Thiès",
		FatherName: "Ibrahima Diop",
		MotherName: "Khady Fall",
		Reason:     "Passeport",
	}
}

func (s *ServiceSuite) create() *models.Certificate {
	c, err := s.service.Create(s.ctx, s.citizenID, validRequest())
	s.Require().NoError(err)
	return c
}

func (s *ServiceSuite) TestCreate() {
	s.Run("assigns a tracking number and starts PENDING", func() {
		c := s.create()

		s.Equal(workflow.StatusPending, c.Status)
		s.True(strings.HasPrefix(c.TrackingNumber, "AN-20250410-"))
		s.Nil(c.AgentID)
		s.Nil(c.Payment)

		last := s.publisher.events[len(s.publisher.events)-1]
		s.Equal(events.RequestSubmitted, last.Type)
		s.Equal(c.TrackingNumber, last.TrackingNumber)
		s.Equal(workflow.RequestTypeCertificate, last.RequestType)
	})

	s.Run("tracking numbers are distinct", func() {
		a := s.create()
		b := s.create()
		s.NotEqual(a.TrackingNumber, b.TrackingNumber)
	})

	s.Run("missing reason is named", func() {
		before, _ := s.store.ListActive(s.ctx, "")
		req := validRequest()
		req.Reason = ""

		_, err := s.service.Create(s.ctx, s.citizenID, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal("reason", dErrors.FieldOf(err))

		after, _ := s.store.ListActive(s.ctx, "")
		s.Len(after, len(before))
	})

	s.Run("malformed birth date", func() {
		req := validRequest()
		req.BirthDate = "12 juin 1990"
		_, err := s.service.Create(s.ctx, s.citizenID, req)
		s.Equal("birthDate", dErrors.FieldOf(err))
	})
}

func (s *ServiceSuite) TestTracking() {
	c := s.create()
	owner := &requestcontext.Caller{UserID: s.citizenID, Role: id.RoleCitizen}

	got, err := s.service.GetByTrackingNumber(s.ctx, owner, c.TrackingNumber)
	s.Require().NoError(err)
	s.Equal(c.ID, got.ID)

	_, err = s.service.GetByTrackingNumber(s.ctx, &requestcontext.Caller{UserID: id.UserID(uuid.New()), Role: id.RoleCitizen}, c.TrackingNumber)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.service.GetByTrackingNumber(s.ctx, owner, "AN-00000000-NOPE")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestTransition() {
	s.Run("rejection stamps the agent and the comment", func() {
		c := s.create()
		comment := "missing signature"
		out, err := s.service.Transition(s.ctx, c.ID, s.agentID, &models.TransitionRequest{Status: "REJECTED", Comment: &comment})
		s.Require().NoError(err)
		s.Equal(workflow.StatusRejected, out.Status)
		s.Equal("missing signature", out.Comment)
		s.Require().NotNil(out.AgentID)
		s.Equal(s.agentID, *out.AgentID)

		last := s.publisher.events[len(s.publisher.events)-1]
		s.Equal(events.StatusChanged, last.Type)
		s.Equal("missing signature", last.Comment)
	})

	s.Run("invalid target keeps status", func() {
		c := s.create()
		_, err := s.service.Transition(s.ctx, c.ID, s.agentID, &models.TransitionRequest{Status: "ARCHIVED"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidStatus))

		stored, _ := s.store.FindByID(s.ctx, c.ID)
		s.Equal(workflow.StatusPending, stored.Status)
	})

	s.Run("unknown certificate", func() {
		_, err := s.service.Transition(s.ctx, id.CertificateID(uuid.New()), s.agentID, &models.TransitionRequest{Status: "COMPLETED"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestPaymentsAreAttached() {
	c := s.create()
	p, err := paymentModels.NewPending(id.PaymentID(uuid.New()), uuid.UUID(c.ID), workflow.RequestTypeCertificate, s.citizenID, 2000, "xof", time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.payments.Create(s.ctx, p))

	mine, err := s.service.ListForCitizen(s.ctx, s.citizenID)
	s.Require().NoError(err)
	s.Require().Len(mine, 1)
	s.Require().NotNil(mine[0].Payment)
	s.Equal(int64(2000), mine[0].Payment.Amount)
}

func (s *ServiceSuite) TestMarkPaidAndFiles() {
	c := s.create()

	changed, err := s.service.MarkPaid(s.ctx, uuid.UUID(c.ID))
	s.Require().NoError(err)
	s.True(changed)
	changed, err = s.service.MarkPaid(s.ctx, uuid.UUID(c.ID))
	s.Require().NoError(err)
	s.False(changed)

	f, err := s.service.AttachFile(s.ctx, c.ID, "ACTE", "https://files/acte.pdf", "etatcivil/acte")
	s.Require().NoError(err)
	s.Equal(c.ID, f.CertificateID)

	stored, _ := s.store.FindByID(s.ctx, c.ID)
	s.Equal(workflow.StatusInProgress, stored.Status)
	s.Len(stored.Files, 1)

	owner, err := s.service.OwnerOf(s.ctx, uuid.UUID(c.ID))
	s.Require().NoError(err)
	s.Equal(s.citizenID, owner)
	s.Equal(workflow.RequestTypeCertificate, s.service.RequestType())
}
