// Package service computes the dashboard and work-queue views shared by
// agents and administrators.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	certModels "etatcivil/internal/certificate/models"
	declModels "etatcivil/internal/declaration/models"
	paymentModels "etatcivil/internal/payment/models"
	"etatcivil/internal/stats/cache"
	"etatcivil/internal/workflow"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/requestcontext"
)

const recentLimit = 10

type CitizenCounter interface {
	Count(ctx context.Context) (int, error)
}

type StaffCounter interface {
	CountByRole(ctx context.Context, role id.Role) (int, error)
}

type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[workflow.Status]int, error)
}

type Payments interface {
	SumCompleted(ctx context.Context) (int64, error)
	FindByRequestIDs(ctx context.Context, requestIDs []uuid.UUID) (map[uuid.UUID]*paymentModels.Payment, error)
}

type Declarations interface {
	ListActive(ctx context.Context, status workflow.Status) ([]*declModels.Declaration, error)
}

type Certificates interface {
	ListActive(ctx context.Context, status workflow.Status) ([]*certModels.Certificate, error)
}

// Sources are the read models the views are built from.
type Sources struct {
	Citizens          CitizenCounter
	Staff             StaffCounter
	DeclarationCounts StatusCounter
	CertificateCounts StatusCounter
	Payments          Payments
	Declarations      Declarations
	Certificates      Certificates
}

// QueueItem is one request in the merged agent work queue.
type QueueItem struct {
	Type           workflow.RequestType   `json:"type"`
	ID             uuid.UUID              `json:"id"`
	CitizenID      id.UserID              `json:"citizenId"`
	Title          string                 `json:"title"`
	Status         workflow.Status        `json:"status"`
	TrackingNumber string                 `json:"trackingNumber,omitempty"`
	AgentID        *id.UserID             `json:"agentId,omitempty"`
	Comment        string                 `json:"comment,omitempty"`
	Payment        *paymentModels.Payment `json:"payment,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

type Overview struct {
	Citizens               int                     `json:"citizens"`
	Agents                 int                     `json:"agents"`
	Admins                 int                     `json:"admins"`
	Declarations           map[workflow.Status]int `json:"declarations"`
	Certificates           map[workflow.Status]int `json:"certificates"`
	PaymentsCompletedTotal int64                   `json:"paymentsCompletedTotal"`
	Recent                 []QueueItem             `json:"recent"`
}

type Service struct {
	sources Sources
	cache   *cache.Cache
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(sources Sources, c *cache.Cache, opts ...Option) *Service {
	s := &Service{sources: sources, cache: c, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Overview returns headline counts and the most recent requests.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	var out Overview
	if err := s.cached(ctx, "overview", &out, func(ctx context.Context) (any, error) {
		return s.buildOverview(ctx)
	}); err != nil {
		return nil, err
	}
	return &out, nil
}

// Queue merges declarations and certificates, newest first, optionally
// restricted to one status.
func (s *Service) Queue(ctx context.Context, status workflow.Status) ([]QueueItem, error) {
	out := []QueueItem{}
	if err := s.cached(ctx, "queue:"+status.String(), &out, func(ctx context.Context) (any, error) {
		return s.buildQueue(ctx, status)
	}); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) cached(ctx context.Context, key string, dst any, build func(context.Context) (any, error)) error {
	raw, err := s.cache.Get(ctx, key, func(ctx context.Context) ([]byte, error) {
		v, err := build(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to build stats view",
			"view", key,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to build statistics")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to decode statistics")
	}
	return nil
}

func (s *Service) buildOverview(ctx context.Context) (*Overview, error) {
	g, ctx := errgroup.WithContext(ctx)
	out := &Overview{}

	g.Go(func() error {
		n, err := s.sources.Citizens.Count(ctx)
		out.Citizens = n
		return err
	})
	g.Go(func() error {
		n, err := s.sources.Staff.CountByRole(ctx, id.RoleAgent)
		out.Agents = n
		return err
	})
	g.Go(func() error {
		n, err := s.sources.Staff.CountByRole(ctx, id.RoleAdmin)
		out.Admins = n
		return err
	})
	g.Go(func() error {
		m, err := s.sources.DeclarationCounts.CountByStatus(ctx)
		out.Declarations = withAllStatuses(m)
		return err
	})
	g.Go(func() error {
		m, err := s.sources.CertificateCounts.CountByStatus(ctx)
		out.Certificates = withAllStatuses(m)
		return err
	})
	g.Go(func() error {
		total, err := s.sources.Payments.SumCompleted(ctx)
		out.PaymentsCompletedTotal = total
		return err
	})
	g.Go(func() error {
		items, err := s.buildQueue(ctx, "")
		if len(items) > recentLimit {
			items = items[:recentLimit]
		}
		out.Recent = items
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) buildQueue(ctx context.Context, status workflow.Status) ([]QueueItem, error) {
	g, ctx := errgroup.WithContext(ctx)
	var declarations []*declModels.Declaration
	var certificates []*certModels.Certificate

	g.Go(func() error {
		var err error
		declarations, err = s.sources.Declarations.ListActive(ctx, status)
		return err
	})
	g.Go(func() error {
		var err error
		certificates, err = s.sources.Certificates.ListActive(ctx, status)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := make([]QueueItem, 0, len(declarations)+len(certificates))
	for _, d := range declarations {
		items = append(items, QueueItem{
			Type:      workflow.RequestTypeDeclaration,
			ID:        uuid.UUID(d.ID),
			CitizenID: d.CitizenID,
			Title:     d.ChildFirstName + " " + d.ChildLastName,
			Status:    d.Status,
			AgentID:   d.AgentID,
			Comment:   d.Comment,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		})
	}
	for _, c := range certificates {
		items = append(items, QueueItem{
			Type:           workflow.RequestTypeCertificate,
			ID:             uuid.UUID(c.ID),
			CitizenID:      c.CitizenID,
			Title:          c.FullName,
			Status:         c.Status,
			TrackingNumber: c.TrackingNumber,
			AgentID:        c.AgentID,
			Comment:        c.Comment,
			CreatedAt:      c.CreatedAt,
			UpdatedAt:      c.UpdatedAt,
		})
	}
	slices.SortStableFunc(items, func(a, b QueueItem) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if err := s.attachPayments(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) attachPayments(ctx context.Context, items []QueueItem) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	found, err := s.sources.Payments.FindByRequestIDs(ctx, ids)
	if err != nil {
		return err
	}
	for i := range items {
		if p, ok := found[items[i].ID]; ok {
			items[i].Payment = p
		}
	}
	return nil
}

func withAllStatuses(m map[workflow.Status]int) map[workflow.Status]int {
	out := map[workflow.Status]int{
		workflow.StatusPending:    0,
		workflow.StatusInProgress: 0,
		workflow.StatusCompleted:  0,
		workflow.StatusRejected:   0,
	}
	for k, v := range m {
		if k.IsVisible() {
			out[k] = v
		}
	}
	return out
}
