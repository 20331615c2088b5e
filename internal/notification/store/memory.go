// Package store persists citizen notifications.
package store

import (
	"context"
	"slices"
	"sync"

	"etatcivil/internal/notification/models"
	id "etatcivil/pkg/domain"
	"etatcivil/pkg/platform/sentinel"
)

type InMemoryNotifications struct {
	mu            sync.RWMutex
	notifications map[id.NotificationID]*models.Notification
}

func NewInMemoryNotifications() *InMemoryNotifications {
	return &InMemoryNotifications{notifications: make(map[id.NotificationID]*models.Notification)}
}

func (s *InMemoryNotifications) Create(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[n.ID]; ok {
		return sentinel.ErrConflict
	}
	cp := *n
	s.notifications[n.ID] = &cp
	return nil
}

// ListByCitizen returns the citizen's notifications, newest first.
func (s *InMemoryNotifications) ListByCitizen(_ context.Context, citizenID id.UserID) ([]*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Notification, 0)
	for _, n := range s.notifications {
		if n.CitizenID == citizenID {
			cp := *n
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *models.Notification) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (s *InMemoryNotifications) Execute(_ context.Context, notificationID id.NotificationID, validate func(*models.Notification) error, mutate func(*models.Notification)) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[notificationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *n
	if err := validate(&cp); err != nil {
		return nil, err
	}
	mutate(&cp)
	s.notifications[notificationID] = &cp
	out := cp
	return &out, nil
}
