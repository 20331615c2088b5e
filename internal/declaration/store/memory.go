// Package store persists birth declarations and their documents.
package store

import (
	"context"
	"slices"
	"sync"

	"etatcivil/internal/declaration/models"
	"etatcivil/internal/workflow"
	id "etatcivil/pkg/domain"
	"etatcivil/pkg/platform/sentinel"
)

type InMemoryDeclarations struct {
	mu           sync.RWMutex
	declarations map[id.DeclarationID]*models.Declaration
}

func NewInMemoryDeclarations() *InMemoryDeclarations {
	return &InMemoryDeclarations{declarations: make(map[id.DeclarationID]*models.Declaration)}
}

func clone(d *models.Declaration) *models.Declaration {
	cp := *d
	cp.Documents = append([]models.Document{}, d.Documents...)
	if d.AgentID != nil {
		a := *d.AgentID
		cp.AgentID = &a
	}
	cp.Payment = nil
	return &cp
}

func (s *InMemoryDeclarations) Create(_ context.Context, d *models.Declaration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.declarations[d.ID]; ok {
		return sentinel.ErrConflict
	}
	s.declarations[d.ID] = clone(d)
	return nil
}

func (s *InMemoryDeclarations) AddDocument(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.declarations[doc.DeclarationID]
	if !ok {
		return sentinel.ErrNotFound
	}
	d.Documents = append(d.Documents, *doc)
	return nil
}

func (s *InMemoryDeclarations) FindByID(_ context.Context, declarationID id.DeclarationID) (*models.Declaration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.declarations[declarationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(d), nil
}

// ListByCitizen returns the citizen's visible declarations, newest first.
func (s *InMemoryDeclarations) ListByCitizen(_ context.Context, citizenID id.UserID) ([]*models.Declaration, error) {
	return s.list(func(d *models.Declaration) bool { return d.CitizenID == citizenID }), nil
}

// ListActive returns every visible declaration, optionally restricted to one status.
func (s *InMemoryDeclarations) ListActive(_ context.Context, status workflow.Status) ([]*models.Declaration, error) {
	return s.list(func(d *models.Declaration) bool { return status == "" || d.Status == status }), nil
}

func (s *InMemoryDeclarations) list(match func(*models.Declaration) bool) []*models.Declaration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Declaration, 0)
	for _, d := range s.declarations {
		if d.Status.IsVisible() && match(d) {
			out = append(out, clone(d))
		}
	}
	slices.SortFunc(out, func(a, b *models.Declaration) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out
}

// CountByStatus counts visible declarations per status.
func (s *InMemoryDeclarations) CountByStatus(_ context.Context) (map[workflow.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[workflow.Status]int)
	for _, d := range s.declarations {
		if d.Status.IsVisible() {
			out[d.Status]++
		}
	}
	return out, nil
}

func (s *InMemoryDeclarations) Execute(_ context.Context, declarationID id.DeclarationID, validate func(*models.Declaration) error, mutate func(*models.Declaration)) (*models.Declaration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.declarations[declarationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := clone(d)
	if err := validate(cp); err != nil {
		return nil, err
	}
	mutate(cp)
	s.declarations[declarationID] = clone(cp)
	return cp, nil
}
