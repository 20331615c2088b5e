package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"etatcivil/internal/authz"
	"etatcivil/internal/notification/models"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/platform/httputil"
	"etatcivil/pkg/requestcontext"
)

type Service interface {
	List(ctx context.Context, citizenID id.UserID) ([]*models.Notification, error)
	MarkRead(ctx context.Context, citizenID id.UserID, notificationID id.NotificationID) (*models.Notification, error)
}

var inboxPolicy = authz.Allow("notification", "read", id.RoleCitizen)

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(authz.Middleware(inboxPolicy, h.logger))
		r.Get("/notifications", h.handleList)
		r.Patch("/notifications/{id}/read", h.handleMarkRead)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := h.service.List(ctx, requestcontext.UserID(ctx))
	if err != nil {
		httputil.Fail(w, r, h.logger, err, "failed to list notifications")
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, list)
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	notificationID, err := id.ParseNotificationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Fail(w, r, h.logger, dErrors.New(dErrors.CodeNotFound, "Notification introuvable"), "invalid notification id")
		return
	}
	n, err := h.service.MarkRead(ctx, requestcontext.UserID(ctx), notificationID)
	if err != nil {
		httputil.Fail(w, r, h.logger, err, "failed to mark notification read")
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, n)
}
