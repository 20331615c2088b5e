package e2e

import (
	"github.com/cucumber/godog"

	"etatcivil/e2e/steps/account"
	"etatcivil/e2e/steps/common"
	"etatcivil/e2e/steps/ratelimit"
	"etatcivil/e2e/steps/workflow"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Status and body assertions shared by every feature
	common.RegisterSteps(ctx, tc)

	// Registration, login and staff accounts
	account.RegisterSteps(ctx, tc)

	// Declaration lifecycle and request history
	workflow.RegisterSteps(ctx, tc)

	ratelimit.RegisterSteps(ctx, tc)
}
