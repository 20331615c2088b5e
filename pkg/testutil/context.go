package testutil

import (
	"net/http"

	"github.com/google/uuid"

	id "etatcivil/pkg/domain"
	"etatcivil/pkg/requestcontext"
)

// WithCaller attaches an authenticated caller to the request context,
// simulating what the auth middleware does for a valid bearer token.
func WithCaller(req *http.Request, userID id.UserID, role id.Role) *http.Request {
	ctx := requestcontext.WithPrincipal(req.Context(), &requestcontext.Caller{
		UserID: userID,
		Email:  userID.String() + "@test.local",
		Role:   role,
	})
	return req.WithContext(ctx)
}

// AsCitizen attaches a citizen caller.
func AsCitizen(req *http.Request, userID id.UserID) *http.Request {
	return WithCaller(req, userID, id.RoleCitizen)
}

// AsAgent attaches an agent caller.
func AsAgent(req *http.Request, userID id.UserID) *http.Request {
	return WithCaller(req, userID, id.RoleAgent)
}

// AsAdmin attaches an administrator caller.
func AsAdmin(req *http.Request, userID id.UserID) *http.Request {
	return WithCaller(req, userID, id.RoleAdmin)
}

// NewUserID returns a random user ID.
func NewUserID() id.UserID {
	return id.UserID(uuid.New())
}
