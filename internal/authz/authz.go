// Package authz is the single role guard every route declares its policy against.
package authz

import (
	"log/slog"
	"net/http"
	"slices"

	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/platform/httputil"
	"etatcivil/pkg/requestcontext"
)

// Policy declares who may perform Action on Resource.
type Policy struct {
	Resource     string
	Action       string
	AllowedRoles []id.Role
}

// Allow builds a policy for the given roles.
func Allow(resource, action string, roles ...id.Role) Policy {
	return Policy{Resource: resource, Action: action, AllowedRoles: roles}
}

// Check fails with unauthorized when there is no caller and forbidden when
// the caller's role is not allowed.
func Check(caller *requestcontext.Caller, p Policy) error {
	if caller == nil {
		return dErrors.New(dErrors.CodeUnauthorized, "Authentification requise")
	}
	if !slices.Contains(p.AllowedRoles, caller.Role) {
		return dErrors.New(dErrors.CodeForbidden, "Accès refusé")
	}
	return nil
}

// RequireOwner lets staff through and restricts citizens to their own resources.
func RequireOwner(caller *requestcontext.Caller, ownerID id.UserID) error {
	if caller == nil {
		return dErrors.New(dErrors.CodeUnauthorized, "Authentification requise")
	}
	if caller.Role.IsStaff() || caller.UserID == ownerID {
		return nil
	}
	return dErrors.New(dErrors.CodeForbidden, "Accès refusé")
}

// Middleware enforces p before the handler runs, so a refused caller never
// reaches any mutation.
func Middleware(p Policy, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			caller := requestcontext.Principal(ctx)
			if err := Check(caller, p); err != nil {
				attrs := []any{
					"resource", p.Resource,
					"action", p.Action,
					"request_id", requestcontext.RequestID(ctx),
				}
				if caller != nil {
					attrs = append(attrs, "user_id", caller.UserID.String(), "role", caller.Role.String())
				}
				logger.WarnContext(ctx, "access denied", append(attrs, "reason", string(dErrors.CodeOf(err)))...)
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
