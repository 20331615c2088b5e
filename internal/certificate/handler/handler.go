package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"etatcivil/internal/authz"
	"etatcivil/internal/certificate/models"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/platform/httputil"
	"etatcivil/pkg/requestcontext"
)

type Service interface {
	Create(ctx context.Context, citizenID id.UserID, req *models.CreateRequest) (*models.Certificate, error)
	Get(ctx context.Context, caller *requestcontext.Caller, certificateID id.CertificateID) (*models.Certificate, error)
	GetByTrackingNumber(ctx context.Context, caller *requestcontext.Caller, trackingNumber string) (*models.Certificate, error)
	ListForCitizen(ctx context.Context, citizenID id.UserID) ([]*models.Certificate, error)
	Transition(ctx context.Context, certificateID id.CertificateID, agentID id.UserID, req *models.TransitionRequest) (*models.Certificate, error)
}

var (
	requestPolicy = authz.Allow("birth_certificate", "request", id.RoleCitizen)
	readPolicy    = authz.Allow("birth_certificate", "read", id.RoleCitizen, id.RoleAgent, id.RoleAdmin)
	reviewPolicy  = authz.Allow("birth_certificate", "review", id.RoleAgent, id.RoleAdmin)
)

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(authz.Middleware(requestPolicy, h.logger))
		r.Post("/birth-certificates", h.handleCreate)
		r.Get("/birth-certificates/mine", h.handleListMine)
	})
	r.With(authz.Middleware(readPolicy, h.logger)).Get("/birth-certificates/track/{trackingNumber}", h.handleTrack)
	r.With(authz.Middleware(readPolicy, h.logger)).Get("/birth-certificates/{id}", h.handleGet)
	r.With(authz.Middleware(reviewPolicy, h.logger)).Patch("/agent/birth-certificates/{id}/status", h.handleTransition)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.CreateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err, "invalid certificate request")
		return
	}
	c, err := h.service.Create(ctx, requestcontext.UserID(ctx), &req)
	if err != nil {
		h.fail(w, r, err, "failed to create certificate request")
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, c)
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := h.service.ListForCitizen(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.fail(w, r, err, "failed to list certificates")
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	certificateID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	c, err := h.service.Get(r.Context(), requestcontext.Principal(r.Context()), certificateID)
	if err != nil {
		h.fail(w, r, err, "failed to get certificate")
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, c)
}

func (h *Handler) handleTrack(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetByTrackingNumber(r.Context(), requestcontext.Principal(r.Context()), chi.URLParam(r, "trackingNumber"))
	if err != nil {
		h.fail(w, r, err, "failed to track certificate")
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, c)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	certificateID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req models.TransitionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err, "invalid transition request")
		return
	}
	c, err := h.service.Transition(ctx, certificateID, requestcontext.UserID(ctx), &req)
	if err != nil {
		h.fail(w, r, err, "failed to transition certificate")
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, c)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (id.CertificateID, bool) {
	certificateID, err := id.ParseCertificateID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, dErrors.New(dErrors.CodeNotFound, "Demande d'acte introuvable"), "invalid certificate id")
		return id.CertificateID{}, false
	}
	return certificateID, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	httputil.Fail(w, r, h.logger, err, msg)
}
