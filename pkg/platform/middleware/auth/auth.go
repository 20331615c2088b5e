package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/platform/httputil"
	"etatcivil/pkg/requestcontext"
)

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// AccountStatusChecker reports whether the account behind a token is still active.
type AccountStatusChecker interface {
	IsActive(ctx context.Context, userID id.UserID, role id.Role) (bool, error)
}

// Claims represents the claims we expect from the token validator
type Claims struct {
	UserID id.UserID
	Email  string
	Role   id.Role
	JTI    string
}

// Authenticate attaches the caller to the request context when a valid bearer
// token is present. Requests without a token, or with an invalid one, continue
// anonymously: route guards decide whether a principal is required.
// A token that belongs to a deactivated account is refused with 403.
func Authenticate(validator TokenValidator, accounts AccountStatusChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)
			claims, err := validator.ValidateToken(strings.TrimSpace(token))
			if err != nil {
				logger.WarnContext(ctx, "ignoring invalid bearer token",
					"error", err,
					"request_id", requestID,
				)
				next.ServeHTTP(w, r)
				return
			}

			if accounts != nil {
				active, err := accounts.IsActive(ctx, claims.UserID, claims.Role)
				if err != nil {
					logger.ErrorContext(ctx, "failed to check account status",
						"error", err,
						"user_id", claims.UserID.String(),
						"request_id", requestID,
					)
					httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check account status"))
					return
				}
				if !active {
					logger.WarnContext(ctx, "forbidden access - account inactive",
						"user_id", claims.UserID.String(),
						"request_id", requestID,
					)
					httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "Ce compte est désactivé"))
					return
				}
			}

			ctx = requestcontext.WithPrincipal(ctx, &requestcontext.Caller{
				UserID: claims.UserID,
				Email:  claims.Email,
				Role:   claims.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
