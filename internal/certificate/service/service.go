package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"etatcivil/internal/authz"
	"etatcivil/internal/certificate/models"
	"etatcivil/internal/events"
	paymentModels "etatcivil/internal/payment/models"
	"etatcivil/internal/platform/metrics"
	"etatcivil/internal/workflow"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/platform/sentinel"
	"etatcivil/pkg/requestcontext"
)

const (
	notFoundMessage = "Demande d'acte introuvable"
	// trackingAttempts bounds retries when a generated tracking number collides.
	trackingAttempts = 3
)

type Store interface {
	Create(ctx context.Context, c *models.Certificate) error
	AddFile(ctx context.Context, f *models.File) error
	FindByID(ctx context.Context, certificateID id.CertificateID) (*models.Certificate, error)
	FindByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Certificate, error)
	ListByCitizen(ctx context.Context, citizenID id.UserID) ([]*models.Certificate, error)
	ListActive(ctx context.Context, status workflow.Status) ([]*models.Certificate, error)
	Execute(ctx context.Context, certificateID id.CertificateID, validate func(*models.Certificate) error, mutate func(*models.Certificate)) (*models.Certificate, error)
}

// PaymentReader loads the payments opened for certificate requests.
type PaymentReader interface {
	FindByRequestIDs(ctx context.Context, requestIDs []uuid.UUID) (map[uuid.UUID]*paymentModels.Payment, error)
}

// Service runs the birth certificate request workflow.
type Service struct {
	store     Store
	payments  PaymentReader
	machine   workflow.Machine
	publisher events.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithMachine(m workflow.Machine) Option {
	return func(s *Service) {
		s.machine = m
	}
}

func New(store Store, payments PaymentReader, opts ...Option) *Service {
	s := &Service{
		store:     store,
		payments:  payments,
		machine:   workflow.NewMachine(false),
		publisher: events.Nop{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a PENDING certificate request with a fresh tracking number.
func (s *Service) Create(ctx context.Context, citizenID id.UserID, req *models.CreateRequest) (*models.Certificate, error) {
	if err := workflow.ValidateRequired(req); err != nil {
		return nil, err
	}
	birthDate, err := workflow.ParseDate("birthDate", req.BirthDate)
	if err != nil {
		return nil, err
	}
	subject := models.Subject{
		FullName:       req.FullName,
		BirthDate:      birthDate,
		BirthPlace:     req.BirthPlace,
		FatherName:     req.FatherName,
		MotherName:     req.MotherName,
		Reason:         req.Reason,
		RegistryNumber: req.RegistryNumber,
	}

	now := requestcontext.Now(ctx)
	var c *models.Certificate
	for attempt := 0; attempt < trackingAttempts; attempt++ {
		tracking, err := workflow.NewTrackingNumber(now)
		if err != nil {
			return nil, err
		}
		c, err = models.NewCertificate(id.CertificateID(uuid.New()), citizenID, subject, tracking, now)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build certificate")
		}
		err = s.store.Create(ctx, c)
		if err == nil {
			break
		}
		if !errors.Is(err, sentinel.ErrConflict) || attempt == trackingAttempts-1 {
			return nil, s.wrapErr(ctx, err, "create certificate")
		}
		s.logger.WarnContext(ctx, "tracking number collision, retrying",
			"attempt", attempt+1,
			"request_id", requestcontext.RequestID(ctx),
		)
	}

	s.metrics.IncRequestSubmitted(workflow.RequestTypeCertificate.String())
	s.logger.InfoContext(ctx, "birth certificate requested",
		"certificate_id", c.ID.String(),
		"tracking_number", c.TrackingNumber,
		"citizen_id", citizenID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.publish(ctx, events.RequestSubmitted, c, "")
	return c, nil
}

func (s *Service) Get(ctx context.Context, caller *requestcontext.Caller, certificateID id.CertificateID) (*models.Certificate, error) {
	c, err := s.findVisible(ctx, certificateID)
	if err != nil {
		return nil, err
	}
	return s.authorize(ctx, caller, c)
}

// GetByTrackingNumber resolves a tracking reference for its owner or staff.
func (s *Service) GetByTrackingNumber(ctx context.Context, caller *requestcontext.Caller, trackingNumber string) (*models.Certificate, error) {
	c, err := s.store.FindByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		return nil, s.wrapErr(ctx, err, "find certificate by tracking number")
	}
	if !c.Status.IsVisible() {
		return nil, dErrors.New(dErrors.CodeNotFound, notFoundMessage)
	}
	return s.authorize(ctx, caller, c)
}

func (s *Service) authorize(ctx context.Context, caller *requestcontext.Caller, c *models.Certificate) (*models.Certificate, error) {
	if err := authz.RequireOwner(caller, c.CitizenID); err != nil {
		return nil, err
	}
	if err := s.attachPayments(ctx, []*models.Certificate{c}); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) ListForCitizen(ctx context.Context, citizenID id.UserID) ([]*models.Certificate, error) {
	list, err := s.store.ListByCitizen(ctx, citizenID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list certificates")
	}
	if err := s.attachPayments(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Service) ListActive(ctx context.Context, status workflow.Status) ([]*models.Certificate, error) {
	list, err := s.store.ListActive(ctx, status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list certificates")
	}
	if err := s.attachPayments(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// Transition moves a certificate request to a new status and records the agent.
func (s *Service) Transition(ctx context.Context, certificateID id.CertificateID, agentID id.UserID, req *models.TransitionRequest) (*models.Certificate, error) {
	if err := workflow.ValidateRequired(req); err != nil {
		return nil, err
	}
	to, err := workflow.ParseTransitionTarget(req.Status)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var from workflow.Status
	c, err := s.store.Execute(ctx, certificateID,
		func(c *models.Certificate) error {
			from = c.Status
			return c.CanTransition(s.machine, to)
		},
		func(c *models.Certificate) { c.ApplyTransition(to, agentID, req.Comment, now) },
	)
	if err != nil {
		return nil, s.wrapErr(ctx, err, "transition certificate")
	}

	s.metrics.IncStatusTransition(workflow.RequestTypeCertificate.String(), to.String())
	s.logger.InfoContext(ctx, "certificate status changed",
		"certificate_id", certificateID.String(),
		"from", from.String(),
		"to", to.String(),
		"agent_id", agentID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.publish(ctx, events.StatusChanged, c, c.Comment)
	if err := s.attachPayments(ctx, []*models.Certificate{c}); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) OwnerOf(ctx context.Context, requestID uuid.UUID) (id.UserID, error) {
	c, err := s.findVisible(ctx, id.CertificateID(requestID))
	if err != nil {
		return id.UserID{}, err
	}
	return c.CitizenID, nil
}

// AttachFile appends a hosted file to a visible certificate request.
func (s *Service) AttachFile(ctx context.Context, certificateID id.CertificateID, fileType, url, publicID string) (*models.File, error) {
	c, err := s.findVisible(ctx, certificateID)
	if err != nil {
		return nil, err
	}
	f, err := models.NewFile(id.DocumentID(uuid.New()), certificateID, fileType, url, publicID, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUploadFailed, "Le téléversement du fichier a échoué")
	}
	if err := s.store.AddFile(ctx, f); err != nil {
		return nil, s.wrapErr(ctx, err, "add certificate file")
	}
	s.publish(ctx, events.DocumentAttached, c, "")
	return f, nil
}

func (s *Service) MarkPaid(ctx context.Context, requestID uuid.UUID) (bool, error) {
	now := requestcontext.Now(ctx)
	changed := false
	c, err := s.store.Execute(ctx, id.CertificateID(requestID),
		func(*models.Certificate) error { return nil },
		func(c *models.Certificate) { changed = c.ApplyPaid(now) },
	)
	if err != nil {
		return false, s.wrapErr(ctx, err, "mark certificate paid")
	}
	if changed {
		s.metrics.IncStatusTransition(workflow.RequestTypeCertificate.String(), c.Status.String())
		s.publish(ctx, events.StatusChanged, c, "")
	}
	return changed, nil
}

func (s *Service) RequestType() workflow.RequestType {
	return workflow.RequestTypeCertificate
}

func (s *Service) findVisible(ctx context.Context, certificateID id.CertificateID) (*models.Certificate, error) {
	c, err := s.store.FindByID(ctx, certificateID)
	if err != nil {
		return nil, s.wrapErr(ctx, err, "find certificate")
	}
	if !c.Status.IsVisible() {
		return nil, dErrors.New(dErrors.CodeNotFound, notFoundMessage)
	}
	return c, nil
}

func (s *Service) attachPayments(ctx context.Context, list []*models.Certificate) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(list))
	for i, c := range list {
		ids[i] = uuid.UUID(c.ID)
	}
	byRequest, err := s.payments.FindByRequestIDs(ctx, ids)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load payments")
	}
	for _, c := range list {
		c.Payment = byRequest[uuid.UUID(c.ID)]
	}
	return nil
}

func (s *Service) publish(ctx context.Context, t events.Type, c *models.Certificate, comment string) {
	s.publisher.Publish(ctx, events.Event{
		Type:           t,
		RequestID:      uuid.UUID(c.ID),
		RequestType:    workflow.RequestTypeCertificate,
		CitizenID:      c.CitizenID,
		Status:         c.Status,
		TrackingNumber: c.TrackingNumber,
		Comment:        comment,
		OccurredAt:     requestcontext.Now(ctx),
	})
}

func (s *Service) wrapErr(ctx context.Context, err error, op string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, notFoundMessage)
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	s.logger.ErrorContext(ctx, "certificate store failure",
		"op", op,
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
	return dErrors.Wrap(err, dErrors.CodeInternal, op)
}
