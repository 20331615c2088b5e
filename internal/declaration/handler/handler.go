package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"etatcivil/internal/authz"
	"etatcivil/internal/declaration/models"
	"etatcivil/internal/workflow"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/platform/httputil"
	"etatcivil/pkg/requestcontext"
)

type Service interface {
	Create(ctx context.Context, citizenID id.UserID, req *models.CreateRequest) (*models.Declaration, error)
	Get(ctx context.Context, caller *requestcontext.Caller, declarationID id.DeclarationID) (*models.Declaration, error)
	ListForCitizen(ctx context.Context, citizenID id.UserID) ([]*models.Declaration, error)
	Transition(ctx context.Context, declarationID id.DeclarationID, agentID id.UserID, req *models.TransitionRequest) (*models.Declaration, error)
	SoftDelete(ctx context.Context, declarationID id.DeclarationID) error
}

var (
	submitPolicy = authz.Allow("birth_declaration", "submit", id.RoleCitizen)
	readPolicy   = authz.Allow("birth_declaration", "read", id.RoleCitizen, id.RoleAgent, id.RoleAdmin)
	reviewPolicy = authz.Allow("birth_declaration", "review", id.RoleAgent, id.RoleAdmin)
	purgePolicy  = authz.Allow("birth_declaration", "delete", id.RoleAdmin)
)

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.With(authz.Middleware(submitPolicy, h.logger)).Post("/birth-declarations", h.handleCreate)
	r.With(authz.Middleware(submitPolicy, h.logger)).Get("/birth-declarations/mine", h.handleListMine)
	r.With(authz.Middleware(readPolicy, h.logger)).Get("/birth-declarations/{id}", h.handleGet)

	r.With(authz.Middleware(reviewPolicy, h.logger)).Patch("/agent/birth-declarations/{id}/status", h.handleTransition)
	r.With(authz.Middleware(reviewPolicy, h.logger)).Delete("/agent/birth-declarations/{id}", h.handleDelete)
	r.With(authz.Middleware(purgePolicy, h.logger)).Delete("/admin/birth-declarations/{id}", h.handleDelete)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.CreateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err, "invalid declaration request")
		return
	}
	d, err := h.service.Create(ctx, requestcontext.UserID(ctx), &req)
	if err != nil {
		h.fail(w, r, err, "failed to create declaration")
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, d)
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := h.service.ListForCitizen(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.fail(w, r, err, "failed to list declarations")
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	declarationID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	d, err := h.service.Get(r.Context(), requestcontext.Principal(r.Context()), declarationID)
	if err != nil {
		h.fail(w, r, err, "failed to get declaration")
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, d)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	declarationID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req models.TransitionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err, "invalid transition request")
		return
	}
	d, err := h.service.Transition(ctx, declarationID, requestcontext.UserID(ctx), &req)
	if err != nil {
		h.fail(w, r, err, "failed to transition declaration")
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, d)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	declarationID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.SoftDelete(r.Context(), declarationID); err != nil {
		h.fail(w, r, err, "failed to delete declaration")
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, map[string]string{
		"id":     declarationID.String(),
		"status": workflow.StatusDeleted.String(),
	})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (id.DeclarationID, bool) {
	declarationID, err := id.ParseDeclarationID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, dErrors.New(dErrors.CodeNotFound, "Déclaration introuvable"), "invalid declaration id")
		return id.DeclarationID{}, false
	}
	return declarationID, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	httputil.Fail(w, r, h.logger, err, msg)
}
