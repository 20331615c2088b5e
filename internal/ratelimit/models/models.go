// Package models holds the rate limiting vocabulary shared by stores and middleware.
package models

import (
	"fmt"
	"time"
)

// EndpointClass groups routes that share a limit.
type EndpointClass string

const (
	// ClassAuth covers the public registration and login endpoints.
	ClassAuth EndpointClass = "auth"
)

// Rule is a request budget over a sliding window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Result is the outcome of one bucket check.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"resetAt"`
	RetryAfter int       `json:"retryAfter,omitempty"` // seconds, only set when not allowed
}

// Key builds the bucket key for a class and caller identifier.
func Key(class EndpointClass, identifier string) string {
	return fmt.Sprintf("rl:%s:%s", class, SanitizeKeySegment(identifier))
}
