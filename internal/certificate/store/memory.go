// Package store persists birth certificate requests and their files.
package store

import (
	"context"
	"slices"
	"sync"

	"etatcivil/internal/certificate/models"
	"etatcivil/internal/workflow"
	id "etatcivil/pkg/domain"
	"etatcivil/pkg/platform/sentinel"
)

type InMemoryCertificates struct {
	mu           sync.RWMutex
	certificates map[id.CertificateID]*models.Certificate
}

func NewInMemoryCertificates() *InMemoryCertificates {
	return &InMemoryCertificates{certificates: make(map[id.CertificateID]*models.Certificate)}
}

func clone(c *models.Certificate) *models.Certificate {
	cp := *c
	cp.Files = append([]models.File{}, c.Files...)
	if c.AgentID != nil {
		a := *c.AgentID
		cp.AgentID = &a
	}
	cp.Payment = nil
	return &cp
}

func (s *InMemoryCertificates) Create(_ context.Context, c *models.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.certificates {
		if existing.ID == c.ID || existing.TrackingNumber == c.TrackingNumber {
			return sentinel.ErrConflict
		}
	}
	s.certificates[c.ID] = clone(c)
	return nil
}

func (s *InMemoryCertificates) AddFile(_ context.Context, f *models.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.certificates[f.CertificateID]
	if !ok {
		return sentinel.ErrNotFound
	}
	c.Files = append(c.Files, *f)
	return nil
}

func (s *InMemoryCertificates) FindByID(_ context.Context, certificateID id.CertificateID) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.certificates[certificateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(c), nil
}

func (s *InMemoryCertificates) FindByTrackingNumber(_ context.Context, trackingNumber string) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.certificates {
		if c.TrackingNumber == trackingNumber {
			return clone(c), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryCertificates) ListByCitizen(_ context.Context, citizenID id.UserID) ([]*models.Certificate, error) {
	return s.list(func(c *models.Certificate) bool { return c.CitizenID == citizenID }), nil
}

func (s *InMemoryCertificates) ListActive(_ context.Context, status workflow.Status) ([]*models.Certificate, error) {
	return s.list(func(c *models.Certificate) bool { return status == "" || c.Status == status }), nil
}

func (s *InMemoryCertificates) list(match func(*models.Certificate) bool) []*models.Certificate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Certificate, 0)
	for _, c := range s.certificates {
		if c.Status.IsVisible() && match(c) {
			out = append(out, clone(c))
		}
	}
	slices.SortFunc(out, func(a, b *models.Certificate) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out
}

func (s *InMemoryCertificates) CountByStatus(_ context.Context) (map[workflow.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[workflow.Status]int)
	for _, c := range s.certificates {
		if c.Status.IsVisible() {
			out[c.Status]++
		}
	}
	return out, nil
}

func (s *InMemoryCertificates) Execute(_ context.Context, certificateID id.CertificateID, validate func(*models.Certificate) error, mutate func(*models.Certificate)) (*models.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.certificates[certificateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := clone(c)
	if err := validate(cp); err != nil {
		return nil, err
	}
	mutate(cp)
	s.certificates[certificateID] = clone(cp)
	return cp, nil
}
