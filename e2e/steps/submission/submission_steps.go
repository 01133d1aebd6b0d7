package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cucumber/godog"
)

const (
	finishTimeout = 5 * time.Second
	pollInterval  = 20 * time.Millisecond
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GET(path string) error
	StatusCode() int
	ResponseBody() []byte
	ResponseField(field string) (any, error)
	SetFraudLikelihood(v float64)
	SubmissionID() string
	SetSubmissionID(id string)
}

// RegisterSteps registers submission lifecycle step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &submissionSteps{tc: tc}

	ctx.Step(`^the fraud engine reports a fraud likelihood of ([\d.]+)$`, steps.fraudLikelihood)
	ctx.Step(`^I submit the asset "([^"]*)"$`, steps.submitAsset)
	ctx.Step(`^I request verification of the submission$`, steps.requestVerification)
	ctx.Step(`^I wait for the submission to finish$`, steps.waitForFinish)

	ctx.Step(`^the submission status should be "([^"]*)"$`, steps.submissionStatusShouldBe)
	ctx.Step(`^the eligible asset should be served$`, steps.eligibleAssetServed)
	ctx.Step(`^the eligible asset should not be served$`, steps.eligibleAssetNotServed)
	ctx.Step(`^the activity feed should contain (\d+) "([^"]*)" events?$`, steps.activityFeedContains)
}

type submissionSteps struct {
	tc TestContext
}

func (s *submissionSteps) fraudLikelihood(ctx context.Context, likelihood float64) error {
	s.tc.SetFraudLikelihood(likelihood)
	return nil
}

func (s *submissionSteps) submitAsset(ctx context.Context, name string) error {
	body := map[string]any{
		"asset_name":   name,
		"category":     "real-estate",
		"owner_name":   "ABC Realty Pvt Ltd",
		"registry_ids": []string{"REG-GGM-12345"},
		"location":     map[string]any{"address": "Sector 29", "city": "Gurugram", "lat": 28.4949, "lng": 77.0887},
		"financials":   map[string]any{"claimed_value": "1000000", "current_rent": "90000", "expected_yield": 7.8},
	}
	if err := s.tc.POST("/submissions", body); err != nil {
		return err
	}
	if s.tc.StatusCode() != http.StatusAccepted {
		return nil
	}
	id, err := s.tc.ResponseField("submission_id")
	if err != nil {
		return err
	}
	s.tc.SetSubmissionID(fmt.Sprint(id))
	return nil
}

func (s *submissionSteps) requestVerification(ctx context.Context) error {
	if s.tc.SubmissionID() == "" {
		return fmt.Errorf("no submission has been created")
	}
	return s.tc.POST("/submissions/"+s.tc.SubmissionID()+"/verify", nil)
}

func (s *submissionSteps) waitForFinish(ctx context.Context) error {
	var status string
	err := poll(ctx, func() (bool, error) {
		var err error
		status, err = s.currentStatus()
		if err != nil {
			return false, err
		}
		return status == "ELIGIBLE" || status == "REJECTED", nil
	})
	if err != nil {
		return fmt.Errorf("submission %s did not finish (last status %q): %w", s.tc.SubmissionID(), status, err)
	}
	return nil
}

func (s *submissionSteps) submissionStatusShouldBe(ctx context.Context, expected string) error {
	actual, err := s.currentStatus()
	if err != nil {
		return err
	}
	if actual != expected {
		return fmt.Errorf("expected submission status %s, got %s", expected, actual)
	}
	return nil
}

func (s *submissionSteps) eligibleAssetServed(ctx context.Context) error {
	if err := s.tc.GET("/assets/" + s.tc.SubmissionID()); err != nil {
		return err
	}
	if s.tc.StatusCode() != http.StatusOK {
		return fmt.Errorf("expected eligible asset, got status %d (body: %s)", s.tc.StatusCode(), s.tc.ResponseBody())
	}
	fingerprint, err := s.tc.ResponseField("fingerprint")
	if err != nil {
		return err
	}
	if fingerprint == "" {
		return fmt.Errorf("eligible asset has no fingerprint")
	}
	return nil
}

func (s *submissionSteps) eligibleAssetNotServed(ctx context.Context) error {
	if err := s.tc.GET("/assets/" + s.tc.SubmissionID()); err != nil {
		return err
	}
	if s.tc.StatusCode() != http.StatusNotFound {
		return fmt.Errorf("expected no eligible asset, got status %d", s.tc.StatusCode())
	}
	return nil
}

// activityFeedContains polls because the verdict reaches the feed just after
// the terminal status is stored.
func (s *submissionSteps) activityFeedContains(ctx context.Context, expected int, eventType string) error {
	var count int
	err := poll(ctx, func() (bool, error) {
		if err := s.tc.GET("/activity/types/" + eventType); err != nil {
			return false, err
		}
		if s.tc.StatusCode() != http.StatusOK {
			return false, fmt.Errorf("activity feed returned %d", s.tc.StatusCode())
		}
		var feed struct {
			Events []json.RawMessage `json:"events"`
		}
		if err := json.Unmarshal(s.tc.ResponseBody(), &feed); err != nil {
			return false, fmt.Errorf("decode activity feed: %w", err)
		}
		count = len(feed.Events)
		return count >= expected, nil
	})
	if err != nil {
		return fmt.Errorf("expected %d %s events, saw %d: %w", expected, eventType, count, err)
	}
	if count != expected {
		return fmt.Errorf("expected %d %s events, got %d", expected, eventType, count)
	}
	return nil
}

func (s *submissionSteps) currentStatus() (string, error) {
	if s.tc.SubmissionID() == "" {
		return "", fmt.Errorf("no submission has been created")
	}
	if err := s.tc.GET("/submissions/" + s.tc.SubmissionID()); err != nil {
		return "", err
	}
	if s.tc.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("get submission returned %d (body: %s)", s.tc.StatusCode(), s.tc.ResponseBody())
	}
	status, err := s.tc.ResponseField("submission.status")
	if err != nil {
		return "", err
	}
	return fmt.Sprint(status), nil
}

func poll(ctx context.Context, done func() (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, finishTimeout)
	defer cancel()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		ok, err := done()
		if err != nil || ok {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
