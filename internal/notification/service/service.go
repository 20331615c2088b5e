package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"etatcivil/internal/notification/models"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/platform/sentinel"
	"etatcivil/pkg/requestcontext"
)

const notFoundMessage = "Notification introuvable"

type Store interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByCitizen(ctx context.Context, citizenID id.UserID) ([]*models.Notification, error)
	Execute(ctx context.Context, notificationID id.NotificationID, validate func(*models.Notification) error, mutate func(*models.Notification)) (*models.Notification, error)
}

type Service struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notify stores a new unread message for the citizen.
func (s *Service) Notify(ctx context.Context, citizenID id.UserID, content string) (*models.Notification, error) {
	n, err := models.New(id.NotificationID(uuid.New()), citizenID, content, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, n); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store notification")
	}
	return n, nil
}

func (s *Service) List(ctx context.Context, citizenID id.UserID) ([]*models.Notification, error) {
	list, err := s.store.ListByCitizen(ctx, citizenID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list notifications")
	}
	return list, nil
}

// MarkRead flags one of the citizen's notifications as read. Another
// citizen's notification is reported as missing.
func (s *Service) MarkRead(ctx context.Context, citizenID id.UserID, notificationID id.NotificationID) (*models.Notification, error) {
	n, err := s.store.Execute(ctx, notificationID,
		func(n *models.Notification) error {
			if n.CitizenID != citizenID {
				return sentinel.ErrNotFound
			}
			return nil
		},
		func(n *models.Notification) { n.MarkRead() },
	)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, notFoundMessage)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to mark notification read",
			"notification_id", notificationID.String(),
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update notification")
	}
	return n, nil
}
