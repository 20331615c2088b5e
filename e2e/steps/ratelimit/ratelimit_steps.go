package ratelimit

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path, actor string, body any) error
	GetLastResponseStatus() int
	GetLastResponseHeader(name string) string
	SetForwardedFor(ip string)
}

// RegisterSteps registers rate-limiting step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^I am calling from IP "([^"]*)"$`, steps.callingFromIP)
	ctx.Step(`^I fail login (\d+) times$`, steps.failLoginNTimes)
	ctx.Step(`^the (\d+)(?:st|nd|rd|th) attempt should have returned (\d+)$`, steps.nthAttemptShouldHaveReturned)
	ctx.Step(`^the response should carry a Retry-After header$`, steps.shouldCarryRetryAfter)
}

type ratelimitSteps struct {
	tc       TestContext
	statuses []int
}

func (s *ratelimitSteps) callingFromIP(ctx context.Context, ip string) error {
	s.tc.SetForwardedFor(ip)
	return nil
}

func (s *ratelimitSteps) failLoginNTimes(ctx context.Context, times int) error {
	s.statuses = s.statuses[:0]
	for range times {
		err := s.tc.POST("/auth/login", "", map[string]string{
			"email":    "personne@e2e.etatcivil.test",
			"password": "mauvais",
		})
		if err != nil {
			return err
		}
		s.statuses = append(s.statuses, s.tc.GetLastResponseStatus())
	}
	return nil
}

func (s *ratelimitSteps) nthAttemptShouldHaveReturned(ctx context.Context, n, expected int) error {
	if n < 1 || n > len(s.statuses) {
		return fmt.Errorf("only %d attempts were made", len(s.statuses))
	}
	if got := s.statuses[n-1]; got != expected {
		return fmt.Errorf("attempt %d: expected %d, got %d", n, expected, got)
	}
	return nil
}

func (s *ratelimitSteps) shouldCarryRetryAfter(ctx context.Context) error {
	if s.tc.GetLastResponseHeader("Retry-After") == "" {
		return fmt.Errorf("missing Retry-After header")
	}
	return nil
}
