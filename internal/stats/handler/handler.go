package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"etatcivil/internal/authz"
	"etatcivil/internal/stats/service"
	"etatcivil/internal/workflow"
	id "etatcivil/pkg/domain"
	"etatcivil/pkg/platform/httputil"
)

type Service interface {
	Overview(ctx context.Context) (*service.Overview, error)
	Queue(ctx context.Context, status workflow.Status) ([]service.QueueItem, error)
}

var (
	staffPolicy = authz.Allow("statistics", "read", id.RoleAgent, id.RoleAdmin)
	adminPolicy = authz.Allow("statistics", "read_all", id.RoleAdmin)
)

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.With(authz.Middleware(staffPolicy, h.logger)).Get("/agent/stats", h.handleOverview)
	r.With(authz.Middleware(staffPolicy, h.logger)).Get("/agent/requests", h.handleQueue)
	r.With(authz.Middleware(adminPolicy, h.logger)).Get("/admin/stats", h.handleOverview)
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Overview(r.Context())
	if err != nil {
		httputil.Fail(w, r, h.logger, err, "failed to compute statistics")
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, out)
}

func (h *Handler) handleQueue(w http.ResponseWriter, r *http.Request) {
	var status workflow.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := workflow.ParseTransitionTarget(raw)
		if err != nil {
			httputil.Fail(w, r, h.logger, err, "invalid status filter")
			return
		}
		status = parsed
	}
	items, err := h.service.Queue(r.Context(), status)
	if err != nil {
		httputil.Fail(w, r, h.logger, err, "failed to list requests")
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, items)
}
