package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"etatcivil/internal/account/models"
	"etatcivil/internal/account/passwords"
	"etatcivil/internal/platform/metrics"
	"etatcivil/internal/workflow"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/email"
	metadata "etatcivil/pkg/platform/middleware/metadata"
	"etatcivil/pkg/platform/sentinel"
	"etatcivil/pkg/requestcontext"
)

type CitizenStore interface {
	Create(ctx context.Context, c *models.Citizen) error
	FindByID(ctx context.Context, citizenID id.UserID) (*models.Citizen, error)
	FindByEmail(ctx context.Context, email string) (*models.Citizen, error)
	List(ctx context.Context) ([]*models.Citizen, error)
	Execute(ctx context.Context, citizenID id.UserID, validate func(*models.Citizen) error, mutate func(*models.Citizen)) (*models.Citizen, error)
}

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Execute(ctx context.Context, userID id.UserID, validate func(*models.User) error, mutate func(*models.User)) (*models.User, error)
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(userID id.UserID, email string, role id.Role) (string, error)
	TTL() time.Duration
}

// Service manages citizen registration, staff accounts and login.
type Service struct {
	citizens CitizenStore
	users    UserStore
	tokens   TokenIssuer
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(citizens CitizenStore, users UserStore, tokens TokenIssuer, opts ...Option) *Service {
	s := &Service{citizens: citizens, users: users, tokens: tokens, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an active citizen account and signs it in.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.Session, error) {
	if err := workflow.ValidateRequired(req); err != nil {
		return nil, err
	}
	address := email.Normalize(req.Email)
	if !email.IsPlausible(address) {
		return nil, dErrors.Validation("email", "Adresse e-mail invalide")
	}
	if err := s.ensureEmailFree(ctx, address); err != nil {
		return nil, err
	}
	hash, err := passwords.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	c, err := models.NewCitizen(id.UserID(uuid.New()), req.FirstName, req.LastName, address, req.Phone, req.Address, hash, requestcontext.Now(ctx))
	if err != nil {
		return nil, invariantToValidation(err)
	}
	if err := s.citizens.Create(ctx, c); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "Cette adresse e-mail est déjà utilisée")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create citizen")
	}
	s.metrics.IncAccountCreated(id.RoleCitizen.String())
	s.logger.InfoContext(ctx, "citizen registered",
		"user_id", c.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return s.issue(ctx, c.Profile())
}

// Login authenticates against citizens first, then staff users.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.Session, error) {
	if err := workflow.ValidateRequired(req); err != nil {
		return nil, err
	}
	address := email.Normalize(req.Email)

	profile, hash, active, err := s.lookupCredentials(ctx, address)
	if err != nil {
		return nil, err
	}
	if err := passwords.Verify(req.Password, hash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			s.logger.WarnContext(ctx, "login failed - wrong password",
				"request_id", requestcontext.RequestID(ctx),
			)
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify password")
	}
	if !active {
		return nil, dErrors.New(dErrors.CodeForbidden, "Ce compte est désactivé")
	}

	attrs := append([]any{
		"user_id", profile.ID.String(),
		"role", profile.Role.String(),
		"client_ip", requestcontext.ClientIP(ctx),
		"request_id", requestcontext.RequestID(ctx),
	}, metadata.Device(ctx)...)
	s.logger.InfoContext(ctx, "login succeeded", attrs...)
	return s.issue(ctx, profile)
}

func (s *Service) lookupCredentials(ctx context.Context, address string) (models.Profile, string, bool, error) {
	c, err := s.citizens.FindByEmail(ctx, address)
	if err == nil {
		return c.Profile(), c.PasswordHash, c.IsActive(), nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return models.Profile{}, "", false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load citizen")
	}

	u, err := s.users.FindByEmail(ctx, address)
	if err == nil {
		return u.Profile(), u.PasswordHash, u.IsActive(), nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.Profile{}, "", false, dErrors.New(dErrors.CodeUnauthorized, "Email ou mot de passe incorrect")
	}
	return models.Profile{}, "", false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
}

func (s *Service) issue(ctx context.Context, profile models.Profile) (*models.Session, error) {
	token, err := s.tokens.Issue(profile.ID, profile.Email, profile.Role)
	if err != nil {
		return nil, err
	}
	return &models.Session{
		Token:     token,
		ExpiresAt: requestcontext.Now(ctx).Add(s.tokens.TTL()),
		User:      profile,
	}, nil
}

// Me returns the profile of the signed-in caller.
func (s *Service) Me(ctx context.Context, caller *requestcontext.Caller) (*models.Profile, error) {
	if caller.Role == id.RoleCitizen {
		c, err := s.citizens.FindByID(ctx, caller.UserID)
		if err != nil {
			return nil, wrapAccountErr(err, "Compte introuvable")
		}
		p := c.Profile()
		return &p, nil
	}
	u, err := s.users.FindByID(ctx, caller.UserID)
	if err != nil {
		return nil, wrapAccountErr(err, "Compte introuvable")
	}
	p := u.Profile()
	return &p, nil
}

// IsActive backs the auth middleware's deactivated-account check.
func (s *Service) IsActive(ctx context.Context, userID id.UserID, role id.Role) (bool, error) {
	if role == id.RoleCitizen {
		c, err := s.citizens.FindByID(ctx, userID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return c.IsActive(), nil
	}
	u, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.IsActive(), nil
}

// CreateUser creates an agent or administrator. Missing names are derived
// from the e-mail address.
func (s *Service) CreateUser(ctx context.Context, req *models.CreateUserRequest) (*models.User, error) {
	if err := workflow.ValidateRequired(req); err != nil {
		return nil, err
	}
	role, err := id.ParseRole(strings.ToUpper(req.Role))
	if err != nil || !role.IsStaff() {
		return nil, dErrors.Validation("role", "Rôle invalide")
	}
	address := email.Normalize(req.Email)
	if !email.IsPlausible(address) {
		return nil, dErrors.Validation("email", "Adresse e-mail invalide")
	}
	if err := s.ensureEmailFree(ctx, address); err != nil {
		return nil, err
	}
	hash, err := passwords.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	firstName, lastName := req.FirstName, req.LastName
	if firstName == "" || lastName == "" {
		derivedFirst, derivedLast := email.DeriveNameFromEmail(address)
		if firstName == "" {
			firstName = derivedFirst
		}
		if lastName == "" {
			lastName = derivedLast
		}
	}

	u, err := models.NewUser(id.UserID(uuid.New()), firstName, lastName, address, role, hash, requestcontext.Now(ctx))
	if err != nil {
		return nil, invariantToValidation(err)
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "Cette adresse e-mail est déjà utilisée")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}
	s.metrics.IncAccountCreated(role.String())
	s.logger.InfoContext(ctx, "staff user created",
		"user_id", u.ID.String(),
		"role", role.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return u, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]*models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list users")
	}
	return users, nil
}

func (s *Service) ListCitizens(ctx context.Context) ([]*models.Citizen, error) {
	citizens, err := s.citizens.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list citizens")
	}
	return citizens, nil
}

// TransitionCitizenStatus activates or deactivates a citizen.
func (s *Service) TransitionCitizenStatus(ctx context.Context, citizenID id.UserID, rawStatus string) (*models.Citizen, error) {
	status, err := workflow.ParseAccountStatus(rawStatus)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	c, err := s.citizens.Execute(ctx, citizenID,
		func(*models.Citizen) error { return nil },
		func(c *models.Citizen) { c.ApplyStatus(status, now) },
	)
	if err != nil {
		return nil, wrapAccountErr(err, "Citoyen introuvable")
	}
	s.logger.InfoContext(ctx, "citizen status changed",
		"user_id", citizenID.String(),
		"status", status.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return c, nil
}

// TransitionUserStatus activates or deactivates a staff user. Administrators
// cannot deactivate themselves.
func (s *Service) TransitionUserStatus(ctx context.Context, userID id.UserID, rawStatus string) (*models.User, error) {
	status, err := workflow.ParseAccountStatus(rawStatus)
	if err != nil {
		return nil, err
	}
	if caller := requestcontext.Principal(ctx); caller != nil && caller.UserID == userID && !status.IsActive() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "Vous ne pouvez pas désactiver votre propre compte")
	}
	now := requestcontext.Now(ctx)
	u, err := s.users.Execute(ctx, userID,
		func(*models.User) error { return nil },
		func(u *models.User) { u.ApplyStatus(status, now) },
	)
	if err != nil {
		return nil, wrapAccountErr(err, "Utilisateur introuvable")
	}
	s.logger.InfoContext(ctx, "user status changed",
		"user_id", userID.String(),
		"status", status.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return u, nil
}

func (s *Service) ensureEmailFree(ctx context.Context, address string) error {
	if _, err := s.citizens.FindByEmail(ctx, address); err == nil {
		return dErrors.New(dErrors.CodeConflict, "Cette adresse e-mail est déjà utilisée")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check e-mail")
	}
	if _, err := s.users.FindByEmail(ctx, address); err == nil {
		return dErrors.New(dErrors.CodeConflict, "Cette adresse e-mail est déjà utilisée")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check e-mail")
	}
	return nil
}

func wrapAccountErr(err error, notFoundMessage string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, notFoundMessage)
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "account store failure")
}

func invariantToValidation(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, err.Error())
	}
	return err
}
