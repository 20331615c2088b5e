package models

import (
	"time"

	id "etatcivil/pkg/domain"
)

type RegisterRequest struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required"`
	Password  string `json:"password" validate:"required"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type CreateUserRequest struct {
	Email     string `json:"email" validate:"required"`
	Password  string `json:"password" validate:"required"`
	Role      string `json:"role" validate:"required"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type StatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// Profile is the identity shown to the signed-in caller.
type Profile struct {
	ID        id.UserID `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Role      id.Role   `json:"role"`
}

// Session is returned by a successful login or registration.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      Profile   `json:"user"`
}

func (c *Citizen) Profile() Profile {
	return Profile{ID: c.ID, FirstName: c.FirstName, LastName: c.LastName, Email: c.Email, Role: id.RoleCitizen}
}

func (u *User) Profile() Profile {
	return Profile{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email, Role: u.Role}
}
