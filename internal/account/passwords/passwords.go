// Package passwords hashes and verifies account passwords with bcrypt.
package passwords

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	dErrors "etatcivil/pkg/domain-errors"
)

const minLength = 8

// Generate creates a random password, used when bootstrapping staff accounts.
func Generate() (string, error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hash creates a bcrypt hash of the password.
func Hash(password string) (string, error) {
	if len(password) < minLength {
		return "", dErrors.Validation("password", "Le mot de passe doit contenir au moins 8 caractères")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.Validation("password", "Le mot de passe est trop long")
		}
		return "", fmt.Errorf("could not hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify checks a plaintext password against a bcrypt hash.
func Verify(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeUnauthorized, "Email ou mot de passe incorrect")
		}
		return fmt.Errorf("could not verify password: %w", err)
	}
	return nil
}
