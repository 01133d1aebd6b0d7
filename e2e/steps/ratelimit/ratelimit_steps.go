package ratelimit

import (
	"context"
	"time"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	LimitSubmissions(limit int, window time.Duration) error
}

// RegisterSteps registers rate limiting step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &rateLimitSteps{tc: tc}

	ctx.Step(`^submissions are limited to (\d+) per minute$`, steps.limitPerMinute)
}

type rateLimitSteps struct {
	tc TestContext
}

func (s *rateLimitSteps) limitPerMinute(ctx context.Context, limit int) error {
	return s.tc.LimitSubmissions(limit, time.Minute)
}
