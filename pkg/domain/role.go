package domain

import dErrors "etatcivil/pkg/domain-errors"

// Role is the caller's role as carried by the session.
type Role string

const (
	RoleCitizen Role = "CITIZEN"
	RoleAgent   Role = "AGENT"
	RoleAdmin   Role = "ADMIN"
)

var validRoles = map[Role]bool{
	RoleCitizen: true,
	RoleAgent:   true,
	RoleAdmin:   true,
}

// ParseRole constructs a Role from external input.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role")
	}
	return r, nil
}

func (r Role) IsValid() bool {
	return validRoles[r]
}

// IsStaff reports whether the role belongs to a back-office account.
func (r Role) IsStaff() bool {
	return r == RoleAgent || r == RoleAdmin
}

func (r Role) String() string {
	return string(r)
}
