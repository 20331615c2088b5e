package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"etatcivil/internal/account/models"
	"etatcivil/internal/authz"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/platform/httputil"
	"etatcivil/pkg/requestcontext"
)

// Service defines the account operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.Session, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.Session, error)
	Me(ctx context.Context, caller *requestcontext.Caller) (*models.Profile, error)
	CreateUser(ctx context.Context, req *models.CreateUserRequest) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	ListCitizens(ctx context.Context) ([]*models.Citizen, error)
	TransitionCitizenStatus(ctx context.Context, citizenID id.UserID, status string) (*models.Citizen, error)
	TransitionUserStatus(ctx context.Context, userID id.UserID, status string) (*models.User, error)
}

var (
	meRead        = authz.Allow("account", "read", id.RoleCitizen, id.RoleAgent, id.RoleAdmin)
	usersManage   = authz.Allow("users", "manage", id.RoleAdmin)
	citizenManage = authz.Allow("citizens", "manage", id.RoleAdmin)
)

// Handler serves registration, login and account administration.
type Handler struct {
	service  Service
	logger   *slog.Logger
	throttle func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithThrottle wraps the public register and login routes, typically with
// the per-IP rate limiter.
func WithThrottle(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.throttle = mw
	}
}

func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the account routes.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.throttle != nil {
			r.Use(h.throttle)
		}
		r.Post("/auth/register", h.handleRegister)
		r.Post("/auth/login", h.handleLogin)
	})
	r.With(authz.Middleware(meRead, h.logger)).Get("/auth/me", h.handleMe)

	r.Group(func(r chi.Router) {
		r.Use(authz.Middleware(usersManage, h.logger))
		r.Get("/admin/users", h.handleListUsers)
		r.Post("/admin/users", h.handleCreateUser)
		r.Patch("/admin/users/{id}/status", h.handleUserStatus)
	})
	r.Group(func(r chi.Router) {
		r.Use(authz.Middleware(citizenManage, h.logger))
		r.Get("/admin/citizens", h.handleListCitizens)
		r.Patch("/admin/citizens/{id}/status", h.handleCitizenStatus)
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err, "invalid register request")
		return
	}
	sess, err := h.service.Register(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err, "registration failed")
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, sess)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err, "invalid login request")
		return
	}
	sess, err := h.service.Login(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err, "login failed")
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, sess)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.Me(r.Context(), requestcontext.Principal(r.Context()))
	if err != nil {
		h.fail(w, r, err, "failed to load profile")
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, profile)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.fail(w, r, err, "failed to list users")
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, users)
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err, "invalid create user request")
		return
	}
	u, err := h.service.CreateUser(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err, "failed to create user")
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, u)
}

func (h *Handler) handleUserStatus(w http.ResponseWriter, r *http.Request) {
	userID, req, ok := h.decodeStatus(w, r)
	if !ok {
		return
	}
	u, err := h.service.TransitionUserStatus(r.Context(), userID, req.Status)
	if err != nil {
		h.fail(w, r, err, "failed to change user status")
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, u)
}

func (h *Handler) handleListCitizens(w http.ResponseWriter, r *http.Request) {
	citizens, err := h.service.ListCitizens(r.Context())
	if err != nil {
		h.fail(w, r, err, "failed to list citizens")
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, citizens)
}

func (h *Handler) handleCitizenStatus(w http.ResponseWriter, r *http.Request) {
	citizenID, req, ok := h.decodeStatus(w, r)
	if !ok {
		return
	}
	c, err := h.service.TransitionCitizenStatus(r.Context(), citizenID, req.Status)
	if err != nil {
		h.fail(w, r, err, "failed to change citizen status")
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, c)
}

func (h *Handler) decodeStatus(w http.ResponseWriter, r *http.Request) (id.UserID, *models.StatusRequest, bool) {
	accountID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, dErrors.New(dErrors.CodeNotFound, "Compte introuvable"), "invalid account id")
		return id.UserID{}, nil, false
	}
	var req models.StatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err, "invalid status request")
		return id.UserID{}, nil, false
	}
	return accountID, &req, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	httputil.Fail(w, r, h.logger, err, msg)
}
