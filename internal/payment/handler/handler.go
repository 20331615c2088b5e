package handler

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"etatcivil/internal/authz"
	"etatcivil/internal/payment/models"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/platform/httputil"
	"etatcivil/pkg/requestcontext"
)

// WebhookSecretHeader carries the shared secret on gateway callbacks.
const WebhookSecretHeader = "X-Webhook-Secret"

type Service interface {
	CreateSession(ctx context.Context, citizenID id.UserID, req *models.CreateSessionRequest) (*models.Checkout, error)
	Status(ctx context.Context, citizenID id.UserID, sessionID string) (*models.StatusResult, error)
	Confirm(ctx context.Context, sessionID string) (*models.StatusResult, error)
	List(ctx context.Context) ([]*models.Payment, error)
	Export(ctx context.Context) ([]byte, error)
}

var (
	payPolicy    = authz.Allow("payment", "pay", id.RoleCitizen)
	ledgerPolicy = authz.Allow("payment", "ledger", id.RoleAdmin)
)

type Handler struct {
	service       Service
	webhookSecret string
	logger        *slog.Logger
}

func New(service Service, webhookSecret string, logger *slog.Logger) *Handler {
	return &Handler{service: service, webhookSecret: webhookSecret, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/payments/webhook", h.handleWebhook)
	r.Group(func(r chi.Router) {
		r.Use(authz.Middleware(payPolicy, h.logger))
		r.Post("/payments/session", h.handleCreateSession)
		r.Get("/payments/status", h.handleStatus)
	})
	r.Group(func(r chi.Router) {
		r.Use(authz.Middleware(ledgerPolicy, h.logger))
		r.Get("/admin/payments", h.handleList)
		r.Get("/admin/payments/export", h.handleExport)
	})
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.CreateSessionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err, "invalid session request")
		return
	}
	out, err := h.service.CreateSession(ctx, requestcontext.UserID(ctx), &req)
	if err != nil {
		h.fail(w, r, err, "failed to create payment session")
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, out)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out, err := h.service.Status(ctx, requestcontext.UserID(ctx), r.URL.Query().Get("session_id"))
	if err != nil {
		h.fail(w, r, err, "failed to read payment status")
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, out)
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	got := r.Header.Get(WebhookSecretHeader)
	if h.webhookSecret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.webhookSecret)) != 1 {
		h.fail(w, r, dErrors.New(dErrors.CodeUnauthorized, "Signature de notification invalide"), "webhook rejected")
		return
	}
	var req models.WebhookRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err, "invalid webhook body")
		return
	}
	out, err := h.service.Confirm(r.Context(), req.SessionID)
	if err != nil {
		h.fail(w, r, err, "webhook reconciliation failed")
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, out)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, r, err, "failed to list payments")
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, list)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Export(r.Context())
	if err != nil {
		h.fail(w, r, err, "failed to export payments")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=paiements.xlsx")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	httputil.Fail(w, r, h.logger, err, msg)
}
