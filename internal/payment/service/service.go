package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"etatcivil/internal/events"
	"etatcivil/internal/payment/models"
	"etatcivil/internal/platform/metrics"
	"etatcivil/internal/workflow"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/platform/sentinel"
	"etatcivil/pkg/requestcontext"
)

const (
	requestNotFoundMessage = "Demande introuvable"
	sessionNotFoundMessage = "Session de paiement introuvable"

	SourcePoll    = "poll"
	SourceWebhook = "webhook"
)

type Store interface {
	Create(ctx context.Context, p *models.Payment) error
	FindByRequestID(ctx context.Context, requestID uuid.UUID) (*models.Payment, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.Payment, error)
	List(ctx context.Context) ([]*models.Payment, error)
	Execute(ctx context.Context, paymentID id.PaymentID, validate func(*models.Payment) error, mutate func(*models.Payment)) (*models.Payment, error)
}

// Gateway is the hosted checkout provider.
type Gateway interface {
	CreateCheckout(ctx context.Context, in models.CheckoutInput) (*models.GatewaySession, error)
	GetSession(ctx context.Context, sessionID string) (*models.GatewaySession, error)
}

// Requests resolves and settles one kind of citizen request.
type Requests interface {
	RequestType() workflow.RequestType
	OwnerOf(ctx context.Context, requestID uuid.UUID) (id.UserID, error)
	MarkPaid(ctx context.Context, requestID uuid.UUID) (bool, error)
}

// Config holds the amounts used when a request has no payment yet.
type Config struct {
	Currency      string
	DefaultAmount int64
}

type Service struct {
	store     Store
	gateway   Gateway
	requests  map[workflow.RequestType]Requests
	order     []workflow.RequestType
	cfg       Config
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

// WithRequests registers the request kinds a payment can settle.
func WithRequests(rs ...Requests) Option {
	return func(s *Service) {
		for _, r := range rs {
			if _, ok := s.requests[r.RequestType()]; !ok {
				s.order = append(s.order, r.RequestType())
			}
			s.requests[r.RequestType()] = r
		}
	}
}

func New(store Store, gateway Gateway, cfg Config, opts ...Option) *Service {
	s := &Service{
		store:     store,
		gateway:   gateway,
		requests:  make(map[workflow.RequestType]Requests),
		cfg:       cfg,
		publisher: events.Nop{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession opens a gateway checkout for one of the caller's requests.
// The request's existing payment is reused; otherwise one is created.
func (s *Service) CreateSession(ctx context.Context, citizenID id.UserID, req *models.CreateSessionRequest) (*models.Checkout, error) {
	if err := workflow.ValidateRequired(req); err != nil {
		return nil, err
	}
	requestID, err := id.ParseRequestID(req.RequestID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeNotFound, requestNotFoundMessage)
	}
	requestType, err := s.resolveOwned(ctx, requestID, citizenID)
	if err != nil {
		return nil, err
	}

	payment, err := s.paymentFor(ctx, requestID, requestType, citizenID, req.Amount)
	if err != nil {
		return nil, err
	}
	if err := payment.CanOpenSession(); err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateCheckout(ctx, models.CheckoutInput{
		PaymentID:     payment.ID,
		RequestID:     requestID,
		Amount:        payment.Amount,
		Currency:      payment.Currency,
		PaymentMethod: req.PaymentMethod,
		Description:   describe(requestType),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "checkout session creation failed",
			"payment_id", payment.ID.String(),
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to open checkout session")
	}

	now := requestcontext.Now(ctx)
	if _, err := s.store.Execute(ctx, payment.ID,
		func(p *models.Payment) error { return p.CanOpenSession() },
		func(p *models.Payment) { p.ApplySession(session.ID, req.PaymentMethod, now) },
	); err != nil {
		return nil, s.wrapErr(ctx, err, "record checkout session", requestNotFoundMessage)
	}

	s.logger.InfoContext(ctx, "checkout session opened",
		"payment_id", payment.ID.String(),
		"session_id", session.ID,
		"amount", payment.Amount,
		"request_id", requestcontext.RequestID(ctx),
	)
	return &models.Checkout{SessionID: session.ID, URL: session.URL, PaymentID: payment.ID.String()}, nil
}

// Status answers a citizen's payment poll. A session the gateway reports as paid is
// reconciled; anything else is pending and changes nothing.
func (s *Service) Status(ctx context.Context, citizenID id.UserID, sessionID string) (*models.StatusResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, dErrors.Validation("session_id", "Le paramètre session_id est requis")
	}
	payment, err := s.store.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, s.wrapErr(ctx, err, "find payment by session", sessionNotFoundMessage)
	}
	if payment.CitizenID != citizenID {
		return nil, dErrors.New(dErrors.CodeNotFound, sessionNotFoundMessage)
	}
	return s.settle(ctx, payment, SourcePoll)
}

// Confirm handles a gateway callback. The callback only names the session;
// whether it is paid is read back from the gateway.
func (s *Service) Confirm(ctx context.Context, sessionID string) (*models.StatusResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, dErrors.Validation("sessionId", "Le champ sessionId est requis")
	}
	payment, err := s.store.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, s.wrapErr(ctx, err, "find payment by session", sessionNotFoundMessage)
	}
	return s.settle(ctx, payment, SourceWebhook)
}

func (s *Service) settle(ctx context.Context, payment *models.Payment, source string) (*models.StatusResult, error) {
	if !payment.IsCompleted() {
		session, err := s.gateway.GetSession(ctx, payment.ExternalSessionID)
		if err != nil {
			s.logger.ErrorContext(ctx, "checkout session lookup failed",
				"session_id", payment.ExternalSessionID,
				"source", source,
				"request_id", requestcontext.RequestID(ctx),
				"error", err.Error(),
			)
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read checkout session")
		}
		if !session.Paid {
			s.metrics.IncPaymentReconciliation(source, models.PollPending)
			return &models.StatusResult{Status: models.PollPending, Payment: payment}, nil
		}
	}

	payment, err := s.Reconcile(ctx, payment.ExternalSessionID, source)
	if err != nil {
		return nil, err
	}
	return &models.StatusResult{Status: models.PollCompleted, Payment: payment}, nil
}

// Reconcile settles the payment behind a session and moves its request into
// processing. Repeated calls leave the payment alone but retry the request move,
// which only touches a request still PENDING.
func (s *Service) Reconcile(ctx context.Context, sessionID, source string) (*models.Payment, error) {
	payment, err := s.store.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, s.wrapErr(ctx, err, "find payment by session", sessionNotFoundMessage)
	}

	now := requestcontext.Now(ctx)
	changed := false
	payment, err = s.store.Execute(ctx, payment.ID,
		func(p *models.Payment) error {
			changed = !p.IsCompleted()
			return nil
		},
		func(p *models.Payment) { p.ApplyCompleted(now) },
	)
	if err != nil {
		return nil, s.wrapErr(ctx, err, "complete payment", sessionNotFoundMessage)
	}

	moved := s.markPaid(ctx, payment)
	if !changed {
		if moved {
			s.logger.InfoContext(ctx, "paid request moved to processing on retry",
				"payment_id", payment.ID.String(),
				"target_id", payment.RequestID.String(),
				"source", source,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		s.metrics.IncPaymentReconciliation(source, "noop")
		return payment, nil
	}

	s.metrics.IncPaymentReconciliation(source, models.PollCompleted)
	s.logger.InfoContext(ctx, "payment completed",
		"payment_id", payment.ID.String(),
		"session_id", sessionID,
		"source", source,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.publisher.Publish(ctx, events.Event{
		Type:        events.PaymentCompleted,
		RequestID:   payment.RequestID,
		RequestType: payment.RequestType,
		CitizenID:   payment.CitizenID,
		OccurredAt:  now,
	})
	return payment, nil
}

// markPaid reports whether the owning request moved into processing.
// A failure is logged; the next reconciliation retries it.
func (s *Service) markPaid(ctx context.Context, payment *models.Payment) bool {
	requests, ok := s.requests[payment.RequestType]
	if !ok {
		return false
	}
	moved, err := requests.MarkPaid(ctx, payment.RequestID)
	if err != nil {
		s.logger.WarnContext(ctx, "paid request could not move to processing",
			"payment_id", payment.ID.String(),
			"target_id", payment.RequestID.String(),
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		return false
	}
	return moved
}

func (s *Service) List(ctx context.Context) ([]*models.Payment, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list payments")
	}
	return list, nil
}

// resolveOwned finds which kind of request requestID is and checks that the
// citizen owns it. Foreign requests look missing.
func (s *Service) resolveOwned(ctx context.Context, requestID uuid.UUID, citizenID id.UserID) (workflow.RequestType, error) {
	for _, t := range s.order {
		owner, err := s.requests[t].OwnerOf(ctx, requestID)
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}
		if owner != citizenID {
			s.logger.WarnContext(ctx, "checkout requested on foreign request",
				"citizen_id", citizenID.String(),
				"target_id", requestID.String(),
				"request_id", requestcontext.RequestID(ctx),
			)
			break
		}
		return t, nil
	}
	return "", dErrors.New(dErrors.CodeNotFound, requestNotFoundMessage)
}

func (s *Service) paymentFor(ctx context.Context, requestID uuid.UUID, requestType workflow.RequestType, citizenID id.UserID, amount int64) (*models.Payment, error) {
	existing, err := s.store.FindByRequestID(ctx, requestID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load payment")
	}

	if amount <= 0 {
		amount = s.cfg.DefaultAmount
	}
	p, err := models.NewPending(id.PaymentID(uuid.New()), requestID, requestType, citizenID, amount, s.cfg.Currency, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "Le montant doit être positif")
	}
	if err := s.store.Create(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return s.store.FindByRequestID(ctx, requestID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create payment")
	}
	return p, nil
}

func describe(t workflow.RequestType) string {
	if t == workflow.RequestTypeCertificate {
		return "Extrait d'acte de naissance"
	}
	return "Déclaration de naissance"
}

func (s *Service) wrapErr(ctx context.Context, err error, op, notFound string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, notFound)
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	s.logger.ErrorContext(ctx, "payment store failure",
		"op", op,
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
	return dErrors.Wrap(err, dErrors.CodeInternal, op)
}
