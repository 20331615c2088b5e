package audit

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"etatcivil/internal/authz"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/platform/httputil"
)

type Lister interface {
	List(ctx context.Context, requestID uuid.UUID) ([]Entry, error)
}

var historyPolicy = authz.Allow("request_history", "read", id.RoleAgent, id.RoleAdmin)

// Handler exposes a request's history to staff.
type Handler struct {
	history Lister
	logger  *slog.Logger
}

func NewHandler(history Lister, logger *slog.Logger) *Handler {
	return &Handler{history: history, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.With(authz.Middleware(historyPolicy, h.logger)).Get("/agent/requests/{id}/history", h.handleHistory)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	requestID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Fail(w, r, h.logger, dErrors.New(dErrors.CodeNotFound, "Demande introuvable"), "invalid request id")
		return
	}
	entries, err := h.history.List(r.Context(), requestID)
	if err != nil {
		httputil.Fail(w, r, h.logger, err, "failed to load request history")
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, entries)
}
