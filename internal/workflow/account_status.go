package workflow

import (
	"strings"

	dErrors "etatcivil/pkg/domain-errors"
)

// AccountStatus gates login for citizens and staff users.
type AccountStatus string

const (
	AccountActive   AccountStatus = "active"
	AccountInactive AccountStatus = "inactive"
)

// ParseAccountStatus validates an administrator-submitted account status.
func ParseAccountStatus(s string) (AccountStatus, error) {
	switch AccountStatus(strings.TrimSpace(s)) {
	case AccountActive:
		return AccountActive, nil
	case AccountInactive:
		return AccountInactive, nil
	}
	return "", &dErrors.Error{Code: dErrors.CodeInvalidStatus, Message: "Statut de compte invalide", Field: "status"}
}

func (s AccountStatus) IsActive() bool {
	return s == AccountActive
}

func (s AccountStatus) String() string {
	return string(s)
}
