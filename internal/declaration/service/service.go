package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"etatcivil/internal/authz"
	"etatcivil/internal/declaration/models"
	"etatcivil/internal/events"
	paymentModels "etatcivil/internal/payment/models"
	"etatcivil/internal/platform/database"
	"etatcivil/internal/platform/metrics"
	"etatcivil/internal/workflow"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/platform/sentinel"
	"etatcivil/pkg/requestcontext"
)

const notFoundMessage = "Déclaration introuvable"

type Store interface {
	Create(ctx context.Context, d *models.Declaration) error
	AddDocument(ctx context.Context, doc *models.Document) error
	FindByID(ctx context.Context, declarationID id.DeclarationID) (*models.Declaration, error)
	ListByCitizen(ctx context.Context, citizenID id.UserID) ([]*models.Declaration, error)
	ListActive(ctx context.Context, status workflow.Status) ([]*models.Declaration, error)
	Execute(ctx context.Context, declarationID id.DeclarationID, validate func(*models.Declaration) error, mutate func(*models.Declaration)) (*models.Declaration, error)
}

// PaymentStore is the slice of the payment store used to open and show the
// fee attached to each declaration.
type PaymentStore interface {
	Create(ctx context.Context, p *paymentModels.Payment) error
	FindByRequestID(ctx context.Context, requestID uuid.UUID) (*paymentModels.Payment, error)
	FindByRequestIDs(ctx context.Context, requestIDs []uuid.UUID) (map[uuid.UUID]*paymentModels.Payment, error)
}

// Fee is what a new declaration owes.
type Fee struct {
	Amount   int64
	Currency string
}

// Service runs the birth declaration workflow.
type Service struct {
	store     Store
	payments  PaymentStore
	tx        database.TxRunner
	machine   workflow.Machine
	fee       Fee
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

func New(store Store, payments PaymentStore, tx database.TxRunner, fee Fee, opts ...Option) *Service {
	s := &Service{
		store:     store,
		payments:  payments,
		tx:        tx,
		fee:       fee,
		machine:   workflow.NewMachine(false),
		publisher: events.Nop{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates a submission and writes the declaration, its documents and
// its pending payment in one transaction. Identical submissions create
// distinct declarations.
func (s *Service) Create(ctx context.Context, citizenID id.UserID, req *models.CreateRequest) (*models.Declaration, error) {
	if err := workflow.ValidateRequired(req); err != nil {
		return nil, err
	}
	birthDate, err := workflow.ParseDate("birthDate", req.BirthDate)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	d, err := models.NewDeclaration(id.DeclarationID(uuid.New()), citizenID, models.Child{
		FirstName:  req.ChildFirstName,
		LastName:   req.ChildLastName,
		Gender:     req.ChildGender,
		BirthDate:  birthDate,
		BirthPlace: req.BirthPlace,
		FatherName: req.FatherName,
		MotherName: req.MotherName,
	}, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build declaration")
	}

	docs := make([]models.Document, 0, len(req.Documents))
	for _, in := range req.Documents {
		doc, err := models.NewDocument(id.DocumentID(uuid.New()), d.ID, in.Type, in.URL, "", now)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build document")
		}
		docs = append(docs, *doc)
	}
	payment, err := paymentModels.NewPending(id.PaymentID(uuid.New()), uuid.UUID(d.ID), workflow.RequestTypeDeclaration, citizenID, s.fee.Amount, s.fee.Currency, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build payment")
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.Create(txCtx, d); err != nil {
			return err
		}
		for i := range docs {
			if err := s.store.AddDocument(txCtx, &docs[i]); err != nil {
				return err
			}
		}
		return s.payments.Create(txCtx, payment)
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create declaration",
			"citizen_id", citizenID.String(),
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create declaration")
	}

	d.Documents = docs
	d.Payment = payment
	s.metrics.IncRequestSubmitted(workflow.RequestTypeDeclaration.String())
	s.logger.InfoContext(ctx, "birth declaration submitted",
		"declaration_id", d.ID.String(),
		"citizen_id", citizenID.String(),
		"documents", len(docs),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.publish(ctx, events.RequestSubmitted, d, "")
	return d, nil
}

// Get returns a visible declaration. Citizens only see their own.
func (s *Service) Get(ctx context.Context, caller *requestcontext.Caller, declarationID id.DeclarationID) (*models.Declaration, error) {
	d, err := s.findVisible(ctx, declarationID)
	if err != nil {
		return nil, err
	}
	if err := authz.RequireOwner(caller, d.CitizenID); err != nil {
		return nil, err
	}
	if err := s.attachPayments(ctx, []*models.Declaration{d}); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) ListForCitizen(ctx context.Context, citizenID id.UserID) ([]*models.Declaration, error) {
	list, err := s.store.ListByCitizen(ctx, citizenID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list declarations")
	}
	if err := s.attachPayments(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// ListActive returns non-deleted declarations for agents, optionally filtered by status.
func (s *Service) ListActive(ctx context.Context, status workflow.Status) ([]*models.Declaration, error) {
	list, err := s.store.ListActive(ctx, status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list declarations")
	}
	if err := s.attachPayments(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// Transition moves a declaration to a new status on behalf of an agent.
// Concurrent transitions are last-write-wins.
func (s *Service) Transition(ctx context.Context, declarationID id.DeclarationID, agentID id.UserID, req *models.TransitionRequest) (*models.Declaration, error) {
	if err := workflow.ValidateRequired(req); err != nil {
		return nil, err
	}
	to, err := workflow.ParseTransitionTarget(req.Status)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var from workflow.Status
	d, err := s.store.Execute(ctx, declarationID,
		func(d *models.Declaration) error {
			from = d.Status
			return d.CanTransition(s.machine, to)
		},
		func(d *models.Declaration) { d.ApplyTransition(to, agentID, req.Comment, now) },
	)
	if err != nil {
		return nil, s.wrapErr(ctx, err, "transition declaration")
	}

	s.metrics.IncStatusTransition(workflow.RequestTypeDeclaration.String(), to.String())
	s.logger.InfoContext(ctx, "declaration status changed",
		"declaration_id", declarationID.String(),
		"from", from.String(),
		"to", to.String(),
		"agent_id", agentID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.publish(ctx, events.StatusChanged, d, d.Comment)
	if err := s.attachPayments(ctx, []*models.Declaration{d}); err != nil {
		return nil, err
	}
	return d, nil
}

// SoftDelete marks a declaration DELETED, hiding it from every listing.
func (s *Service) SoftDelete(ctx context.Context, declarationID id.DeclarationID) error {
	now := requestcontext.Now(ctx)
	d, err := s.store.Execute(ctx, declarationID,
		func(d *models.Declaration) error { return d.CanDelete() },
		func(d *models.Declaration) { d.ApplyDeleted(now) },
	)
	if err != nil {
		return s.wrapErr(ctx, err, "delete declaration")
	}
	s.logger.InfoContext(ctx, "declaration deleted",
		"declaration_id", declarationID.String(),
		"user_id", requestcontext.UserID(ctx).String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.publish(ctx, events.StatusChanged, d, "")
	return nil
}

// OwnerOf returns the citizen owning a visible declaration.
func (s *Service) OwnerOf(ctx context.Context, requestID uuid.UUID) (id.UserID, error) {
	d, err := s.findVisible(ctx, id.DeclarationID(requestID))
	if err != nil {
		return id.UserID{}, err
	}
	return d.CitizenID, nil
}

// AttachDocument appends a hosted document to a visible declaration.
func (s *Service) AttachDocument(ctx context.Context, declarationID id.DeclarationID, docType, url, publicID string) (*models.Document, error) {
	d, err := s.findVisible(ctx, declarationID)
	if err != nil {
		return nil, err
	}
	doc, err := models.NewDocument(id.DocumentID(uuid.New()), declarationID, docType, url, publicID, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUploadFailed, "Le téléversement du fichier a échoué")
	}
	if err := s.store.AddDocument(ctx, doc); err != nil {
		return nil, s.wrapErr(ctx, err, "add declaration document")
	}
	s.publish(ctx, events.DocumentAttached, d, "")
	return doc, nil
}

// MarkPaid moves a PENDING declaration into processing once its fee is settled.
// It reports whether the status changed.
func (s *Service) MarkPaid(ctx context.Context, requestID uuid.UUID) (bool, error) {
	now := requestcontext.Now(ctx)
	changed := false
	d, err := s.store.Execute(ctx, id.DeclarationID(requestID),
		func(*models.Declaration) error { return nil },
		func(d *models.Declaration) { changed = d.ApplyPaid(now) },
	)
	if err != nil {
		return false, s.wrapErr(ctx, err, "mark declaration paid")
	}
	if changed {
		s.metrics.IncStatusTransition(workflow.RequestTypeDeclaration.String(), d.Status.String())
		s.publish(ctx, events.StatusChanged, d, "")
	}
	return changed, nil
}

func (s *Service) RequestType() workflow.RequestType {
	return workflow.RequestTypeDeclaration
}

func (s *Service) findVisible(ctx context.Context, declarationID id.DeclarationID) (*models.Declaration, error) {
	d, err := s.store.FindByID(ctx, declarationID)
	if err != nil {
		return nil, s.wrapErr(ctx, err, "find declaration")
	}
	if !d.Status.IsVisible() {
		return nil, dErrors.New(dErrors.CodeNotFound, notFoundMessage)
	}
	return d, nil
}

func (s *Service) attachPayments(ctx context.Context, list []*models.Declaration) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(list))
	for i, d := range list {
		ids[i] = uuid.UUID(d.ID)
	}
	byRequest, err := s.payments.FindByRequestIDs(ctx, ids)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load payments")
	}
	for _, d := range list {
		d.Payment = byRequest[uuid.UUID(d.ID)]
	}
	return nil
}

func (s *Service) publish(ctx context.Context, t events.Type, d *models.Declaration, comment string) {
	s.publisher.Publish(ctx, events.Event{
		Type:        t,
		RequestID:   uuid.UUID(d.ID),
		RequestType: workflow.RequestTypeDeclaration,
		CitizenID:   d.CitizenID,
		Status:      d.Status,
		Comment:     comment,
		OccurredAt:  requestcontext.Now(ctx),
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
	s.logger.ErrorContext(ctx, "declaration store failure",
		"op", op,
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
	return dErrors.Wrap(err, dErrors.CodeInternal, op)
}
