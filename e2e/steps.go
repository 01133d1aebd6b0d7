package e2e

import (
	"github.com/cucumber/godog"

	"proptoken/e2e/steps/common"
	"proptoken/e2e/steps/ratelimit"
	"proptoken/e2e/steps/submission"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (credentials, generic requests, assertions)
	common.RegisterSteps(ctx, tc)

	// Register submission lifecycle steps
	submission.RegisterSteps(ctx, tc)

	// Register rate limiting steps
	ratelimit.RegisterSteps(ctx, tc)
}
