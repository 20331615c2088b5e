package session

import (
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
	authmw "etatcivil/pkg/platform/middleware/auth"
)

// ToMiddlewareClaims converts token claims into the typed claims the auth
// middleware attaches to the request.
func ToMiddlewareClaims(claims *Claims) (*authmw.Claims, error) {
	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token subject")
	}
	role, err := id.ParseRole(claims.Role)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token role")
	}
	return &authmw.Claims{
		UserID: userID,
		Email:  claims.Email,
		Role:   role,
		JTI:    claims.ID,
	}, nil
}

type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*authmw.Claims, error) {
	claims, err := a.service.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims)
}
