package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	jwttoken "proptoken/internal/jwt_token"
)

const (
	signingKey = "e2e-signing-key"
	issuer     = "proptoken-e2e"
)

// TestContext carries one scenario's state: the in-process stack, the
// caller's credentials and the last response.
type TestContext struct {
	tokens *jwttoken.JWTService
	stack  *stack

	fraudBits   atomic.Uint64
	limit       int
	limitWindow time.Duration

	token        string
	submissionID string

	status int
	header http.Header
	body   []byte
}

func NewTestContext() *TestContext {
	tc := &TestContext{tokens: jwttoken.NewJWTService(signingKey, issuer)}
	tc.SetFraudLikelihood(2.5)
	return tc
}

// Close tears the stack down if the scenario started one.
func (tc *TestContext) Close() error {
	if tc.stack == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return tc.stack.close(ctx)
}

func (tc *TestContext) ensureStack() *stack {
	if tc.stack == nil {
		tc.stack = newStack(tc)
	}
	return tc.stack
}

// LimitSubmissions throttles mutating submission routes. It must run before
// the first request of the scenario.
func (tc *TestContext) LimitSubmissions(limit int, window time.Duration) error {
	if tc.stack != nil {
		return fmt.Errorf("submission limit must be configured before the first request")
	}
	tc.limit = limit
	tc.limitWindow = window
	return nil
}

func (tc *TestContext) SetFraudLikelihood(v float64) {
	tc.fraudBits.Store(math.Float64bits(v))
}

func (tc *TestContext) FraudLikelihood() float64 {
	return math.Float64frombits(tc.fraudBits.Load())
}

func (tc *TestContext) Authenticate(submitterID string) error {
	token, err := tc.tokens.GenerateAccessToken(submitterID, "", time.Hour)
	if err != nil {
		return fmt.Errorf("issue token for %s: %w", submitterID, err)
	}
	tc.token = token
	return nil
}

func (tc *TestContext) ClearAuthentication() {
	tc.token = ""
}

func (tc *TestContext) SubmissionID() string {
	return tc.submissionID
}

func (tc *TestContext) SetSubmissionID(id string) {
	tc.submissionID = id
}

func (tc *TestContext) POST(path string, body any) error {
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
	}
	return tc.Request(http.MethodPost, path, raw)
}

func (tc *TestContext) GET(path string) error {
	return tc.Request(http.MethodGet, path, nil)
}

// Request sends a request to the stack and records the response.
func (tc *TestContext) Request(method, path string, body []byte) error {
	s := tc.ensureStack()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.token != "" {
		req.Header.Set("Authorization", "Bearer "+tc.token)
	}

	resp, err := s.server.Client().Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.body, err = io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	tc.status = resp.StatusCode
	tc.header = resp.Header
	return nil
}

func (tc *TestContext) StatusCode() int {
	return tc.status
}

func (tc *TestContext) ResponseHeader(name string) string {
	if tc.header == nil {
		return ""
	}
	return tc.header.Get(name)
}

func (tc *TestContext) ResponseBody() []byte {
	return tc.body
}

// ResponseField resolves a dotted path such as "submission.status" in the
// last JSON response.
func (tc *TestContext) ResponseField(field string) (any, error) {
	var doc any
	if err := json.Unmarshal(tc.body, &doc); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w (body: %s)", err, tc.body)
	}
	cur := doc
	for _, key := range strings.Split(field, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", field, key)
		}
		cur, ok = obj[key]
		if !ok {
			return nil, fmt.Errorf("field %q not found in response: %s", field, tc.body)
		}
	}
	return cur, nil
}
