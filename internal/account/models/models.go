package models

import (
	"time"

	"etatcivil/internal/workflow"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
)

// Citizen is an end user submitting civil-registry requests.
//
// Invariants:
//   - Email is non-empty and stored lowercased
//   - Status is active or inactive; only administrators change it
type Citizen struct {
	ID           id.UserID              `json:"id"`
	FirstName    string                 `json:"firstName"`
	LastName     string                 `json:"lastName"`
	Email        string                 `json:"email"`
	Phone        string                 `json:"phone"`
	Address      string                 `json:"address"`
	PasswordHash string                 `json:"-"`
	Status       workflow.AccountStatus `json:"status"`
	CreatedAt    time.Time              `json:"createdAt"`
	UpdatedAt    time.Time              `json:"updatedAt"`
}

func NewCitizen(citizenID id.UserID, firstName, lastName, email, phone, address, passwordHash string, now time.Time) (*Citizen, error) {
	if firstName == "" || lastName == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "citizen name cannot be empty")
	}
	if email == "" || passwordHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "citizen credentials cannot be empty")
	}
	return &Citizen{
		ID:           citizenID,
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		Phone:        phone,
		Address:      address,
		PasswordHash: passwordHash,
		Status:       workflow.AccountActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (c *Citizen) IsActive() bool {
	return c.Status.IsActive()
}

// ApplyStatus sets the account status. Setting the current status again is a no-op
// apart from the timestamp.
func (c *Citizen) ApplyStatus(status workflow.AccountStatus, now time.Time) {
	c.Status = status
	c.UpdatedAt = now
}

// User is a staff account: an agent processing requests or an administrator.
type User struct {
	ID           id.UserID              `json:"id"`
	FirstName    string                 `json:"firstName"`
	LastName     string                 `json:"lastName"`
	Email        string                 `json:"email"`
	Role         id.Role                `json:"role"`
	PasswordHash string                 `json:"-"`
	Status       workflow.AccountStatus `json:"status"`
	CreatedAt    time.Time              `json:"createdAt"`
	UpdatedAt    time.Time              `json:"updatedAt"`
}

func NewUser(userID id.UserID, firstName, lastName, email string, role id.Role, passwordHash string, now time.Time) (*User, error) {
	if !role.IsStaff() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "staff users must be agents or administrators")
	}
	if email == "" || passwordHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user credentials cannot be empty")
	}
	return &User{
		ID:           userID,
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		Role:         role,
		PasswordHash: passwordHash,
		Status:       workflow.AccountActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (u *User) IsActive() bool {
	return u.Status.IsActive()
}

func (u *User) ApplyStatus(status workflow.AccountStatus, now time.Time) {
	u.Status = status
	u.UpdatedAt = now
}
