// Package store persists citizens and staff users, in memory or in Postgres.
package store

import (
	"context"
	"slices"
	"strings"
	"sync"

	"etatcivil/internal/account/models"
	id "etatcivil/pkg/domain"
	"etatcivil/pkg/platform/sentinel"
)

// InMemoryCitizens is a mutex-guarded citizen store for development and tests.
type InMemoryCitizens struct {
	mu       sync.RWMutex
	citizens map[id.UserID]*models.Citizen
}

func NewInMemoryCitizens() *InMemoryCitizens {
	return &InMemoryCitizens{citizens: make(map[id.UserID]*models.Citizen)}
}

func (s *InMemoryCitizens) Create(_ context.Context, c *models.Citizen) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.citizens {
		if strings.EqualFold(existing.Email, c.Email) {
			return sentinel.ErrConflict
		}
	}
	cp := *c
	s.citizens[c.ID] = &cp
	return nil
}

func (s *InMemoryCitizens) FindByID(_ context.Context, citizenID id.UserID) (*models.Citizen, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.citizens[citizenID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *InMemoryCitizens) FindByEmail(_ context.Context, email string) (*models.Citizen, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.citizens {
		if strings.EqualFold(c.Email, email) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// List returns citizens newest first.
func (s *InMemoryCitizens) List(_ context.Context) ([]*models.Citizen, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Citizen, 0, len(s.citizens))
	for _, c := range s.citizens {
		cp := *c
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *models.Citizen) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (s *InMemoryCitizens) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.citizens), nil
}

// Execute validates then mutates a citizen under the store lock.
func (s *InMemoryCitizens) Execute(_ context.Context, citizenID id.UserID, validate func(*models.Citizen) error, mutate func(*models.Citizen)) (*models.Citizen, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.citizens[citizenID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	if err := validate(&cp); err != nil {
		return nil, err
	}
	mutate(&cp)
	s.citizens[citizenID] = &cp
	out := cp
	return &out, nil
}

// InMemoryUsers is a mutex-guarded staff user store.
type InMemoryUsers struct {
	mu    sync.RWMutex
	users map[id.UserID]*models.User
}

func NewInMemoryUsers() *InMemoryUsers {
	return &InMemoryUsers{users: make(map[id.UserID]*models.User)}
}

func (s *InMemoryUsers) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return sentinel.ErrConflict
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *InMemoryUsers) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *InMemoryUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryUsers) List(_ context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *models.User) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (s *InMemoryUsers) CountByRole(_ context.Context, role id.Role) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, u := range s.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryUsers) Execute(_ context.Context, userID id.UserID, validate func(*models.User) error, mutate func(*models.User)) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *u
	if err := validate(&cp); err != nil {
		return nil, err
	}
	mutate(&cp)
	s.users[userID] = &cp
	out := cp
	return &out, nil
}
