// Package store persists payments, in memory or in Postgres.
package store

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"etatcivil/internal/payment/models"
	id "etatcivil/pkg/domain"
	"etatcivil/pkg/platform/sentinel"
)

type InMemoryPayments struct {
	mu       sync.RWMutex
	payments map[id.PaymentID]*models.Payment
}

func NewInMemoryPayments() *InMemoryPayments {
	return &InMemoryPayments{payments: make(map[id.PaymentID]*models.Payment)}
}

func (s *InMemoryPayments) Create(_ context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.payments {
		if existing.RequestID == p.RequestID {
			return sentinel.ErrConflict
		}
	}
	cp := *p
	s.payments[p.ID] = &cp
	return nil
}

func (s *InMemoryPayments) FindByRequestID(_ context.Context, requestID uuid.UUID) (*models.Payment, error) {
	return s.findFirst(func(p *models.Payment) bool { return p.RequestID == requestID })
}

// FindByRequestIDs returns the payments of the given requests keyed by request id.
func (s *InMemoryPayments) FindByRequestIDs(_ context.Context, requestIDs []uuid.UUID) (map[uuid.UUID]*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]*models.Payment, len(requestIDs))
	for _, p := range s.payments {
		if slices.Contains(requestIDs, p.RequestID) {
			cp := *p
			out[p.RequestID] = &cp
		}
	}
	return out, nil
}

func (s *InMemoryPayments) FindBySessionID(_ context.Context, sessionID string) (*models.Payment, error) {
	if sessionID == "" {
		return nil, sentinel.ErrNotFound
	}
	return s.findFirst(func(p *models.Payment) bool { return p.ExternalSessionID == sessionID })
}

func (s *InMemoryPayments) findFirst(match func(*models.Payment) bool) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.payments {
		if match(p) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// List returns payments newest first.
func (s *InMemoryPayments) List(_ context.Context) ([]*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		cp := *p
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *models.Payment) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

// SumCompleted totals the amount of settled payments.
func (s *InMemoryPayments) SumCompleted(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, p := range s.payments {
		if p.IsCompleted() {
			total += p.Amount
		}
	}
	return total, nil
}

func (s *InMemoryPayments) Execute(_ context.Context, paymentID id.PaymentID, validate func(*models.Payment) error, mutate func(*models.Payment)) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	if err := validate(&cp); err != nil {
		return nil, err
	}
	mutate(&cp)
	if cp.ExternalSessionID != "" {
		for otherID, other := range s.payments {
			if otherID != paymentID && other.ExternalSessionID == cp.ExternalSessionID {
				return nil, sentinel.ErrConflict
			}
		}
	}
	s.payments[paymentID] = &cp
	out := cp
	return &out, nil
}
