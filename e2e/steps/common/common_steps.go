package common

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Request(method, path string, body []byte) error
	GET(path string) error
	StatusCode() int
	ResponseBody() []byte
	ResponseField(field string) (any, error)
	ResponseHeader(name string) string
	Authenticate(submitterID string) error
	ClearAuthentication()
}

// RegisterSteps registers credentials, generic request and assertion steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	// Credentials
	ctx.Step(`^I am authenticated as submitter "([^"]*)"$`, steps.authenticate)
	ctx.Step(`^I authenticate as submitter "([^"]*)"$`, steps.authenticate)
	ctx.Step(`^I am not authenticated$`, steps.clearAuthentication)

	// Requests
	ctx.Step(`^I POST to "([^"]*)" with body:$`, steps.postWithBody)
	ctx.Step(`^I GET "([^"]*)"$`, steps.get)
	ctx.Step(`^I GET "([^"]*)" (\d+) times$`, steps.getRepeatedly)

	// Assertions
	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.responseFieldShouldBe)
	ctx.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, steps.responseHeaderShouldBe)
	ctx.Step(`^the response header "([^"]*)" should be present$`, steps.responseHeaderShouldBePresent)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) authenticate(ctx context.Context, submitterID string) error {
	return s.tc.Authenticate(submitterID)
}

func (s *commonSteps) clearAuthentication(ctx context.Context) error {
	s.tc.ClearAuthentication()
	return nil
}

func (s *commonSteps) postWithBody(ctx context.Context, path string, body *godog.DocString) error {
	return s.tc.Request(http.MethodPost, path, []byte(body.Content))
}

func (s *commonSteps) get(ctx context.Context, path string) error {
	return s.tc.GET(path)
}

func (s *commonSteps) getRepeatedly(ctx context.Context, path string, times int) error {
	for i := 0; i < times; i++ {
		if err := s.tc.GET(path); err != nil {
			return err
		}
		if s.tc.StatusCode() == http.StatusTooManyRequests {
			return fmt.Errorf("GET %s was throttled on attempt %d", path, i+1)
		}
	}
	return nil
}

func (s *commonSteps) responseStatusShouldBe(ctx context.Context, expected int) error {
	if actual := s.tc.StatusCode(); actual != expected {
		return fmt.Errorf("expected status %d, got %d (body: %s)", expected, actual, s.tc.ResponseBody())
	}
	return nil
}

func (s *commonSteps) responseFieldShouldBe(ctx context.Context, field, expected string) error {
	value, err := s.tc.ResponseField(field)
	if err != nil {
		return err
	}
	var actual string
	switch v := value.(type) {
	case string:
		actual = v
	case float64:
		actual = strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		actual = strconv.FormatBool(v)
	default:
		actual = fmt.Sprint(v)
	}
	if actual != expected {
		return fmt.Errorf("expected field %q to be %q, got %q", field, expected, actual)
	}
	return nil
}

func (s *commonSteps) responseHeaderShouldBe(ctx context.Context, name, expected string) error {
	if actual := s.tc.ResponseHeader(name); actual != expected {
		return fmt.Errorf("expected header %s to be %q, got %q", name, expected, actual)
	}
	return nil
}

func (s *commonSteps) responseHeaderShouldBePresent(ctx context.Context, name string) error {
	if s.tc.ResponseHeader(name) == "" {
		return fmt.Errorf("expected header %s to be set", name)
	}
	return nil
}
