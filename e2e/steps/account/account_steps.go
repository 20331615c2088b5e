package account

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path, actor string, body any) error
	GetLastResponseStatus() int
	GetResponseField(path string) (any, error)
	SetToken(actor, token string)
	Remember(key, value string)
}

const defaultPassword = "motdepasse-e2e"

// RegisterSteps registers account step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &accountSteps{tc: tc}

	ctx.Step(`^a registered citizen "([^"]*)"$`, steps.registeredCitizen)
	ctx.Step(`^I log in as the administrator$`, steps.loginAsAdmin)
	ctx.Step(`^an agent account created by the administrator$`, steps.agentCreatedByAdmin)
	ctx.Step(`^I log in as "([^"]*)" with password "([^"]*)"$`, steps.loginWith)
}

type accountSteps struct {
	tc TestContext
}

// uniqueEmail keeps scenarios rerunnable against a long-lived database.
func uniqueEmail(name string) string {
	local := strings.ToLower(strings.ReplaceAll(name, " ", "."))
	return fmt.Sprintf("%s.%d@e2e.etatcivil.test", local, time.Now().UnixNano())
}

func (s *accountSteps) registeredCitizen(ctx context.Context, name string) error {
	first, last, _ := strings.Cut(name, " ")
	if last == "" {
		last = first
	}
	err := s.tc.POST("/auth/register", "", map[string]string{
		"firstName": first,
		"lastName":  last,
		"email":     uniqueEmail(name),
		"password":  defaultPassword,
	})
	if err != nil {
		return err
	}
	return s.saveToken("citizen", 201)
}

func (s *accountSteps) loginAsAdmin(ctx context.Context) error {
	email, password := os.Getenv("E2E_ADMIN_EMAIL"), os.Getenv("E2E_ADMIN_PASSWORD")
	if email == "" || password == "" {
		return godog.ErrPending
	}
	if err := s.tc.POST("/auth/login", "", map[string]string{"email": email, "password": password}); err != nil {
		return err
	}
	return s.saveToken("admin", 200)
}

func (s *accountSteps) agentCreatedByAdmin(ctx context.Context) error {
	if err := s.loginAsAdmin(ctx); err != nil {
		return err
	}
	email := uniqueEmail("agent")
	err := s.tc.POST("/admin/users", "admin", map[string]string{
		"email":    email,
		"password": defaultPassword,
		"role":     "AGENT",
	})
	if err != nil {
		return err
	}
	if got := s.tc.GetLastResponseStatus(); got != 201 {
		return fmt.Errorf("create agent: expected 201, got %d", got)
	}
	if err := s.tc.POST("/auth/login", "", map[string]string{"email": email, "password": defaultPassword}); err != nil {
		return err
	}
	return s.saveToken("agent", 200)
}

func (s *accountSteps) loginWith(ctx context.Context, email, password string) error {
	return s.tc.POST("/auth/login", "", map[string]string{"email": email, "password": password})
}

func (s *accountSteps) saveToken(actor string, expected int) error {
	if got := s.tc.GetLastResponseStatus(); got != expected {
		return fmt.Errorf("%s session: expected %d, got %d", actor, expected, got)
	}
	token, err := s.tc.GetResponseField("data.token")
	if err != nil {
		return err
	}
	s.tc.SetToken(actor, fmt.Sprint(token))
	userID, err := s.tc.GetResponseField("data.user.id")
	if err != nil {
		return err
	}
	s.tc.Remember(actor+".id", fmt.Sprint(userID))
	return nil
}
