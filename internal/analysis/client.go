// Package analysis is the gateway to the external market and fraud scoring engine.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"proptoken/internal/analysis/metrics"
	"proptoken/pkg/platform/circuit"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10

	opMarket = "market"
	opFraud  = "fraud"
)

// Client calls POST /analyze/market and POST /analyze/fraud. Each call is
// bounded by the client timeout; repeated engine failures open the breaker.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: defaultTimeout,
		breaker: circuit.New("analysis"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Analyze issues the market and fraud calls concurrently and joins them. Either
// failure fails the whole analysis.
func (c *Client) Analyze(ctx context.Context, req Request) (*Result, error) {
	g, gctx := errgroup.WithContext(ctx)

	var market *MarketAnalysis
	var fraud *FraudAnalysis

	g.Go(func() error {
		m, err := c.AnalyzeMarket(gctx, req)
		market = m
		return err
	})
	g.Go(func() error {
		f, err := c.AnalyzeFraud(gctx, req)
		fraud = f
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	risk, ok := RiskScore(*market)
	if !ok {
		return nil, &GatewayError{Operation: opMarket, Message: fmt.Sprintf("no risk score and unknown tail_risk %q", market.TailRisk)}
	}
	return &Result{Market: *market, Fraud: *fraud, RiskScore: risk}, nil
}

func (c *Client) AnalyzeMarket(ctx context.Context, req Request) (*MarketAnalysis, error) {
	var out MarketAnalysis
	if err := c.call(ctx, opMarket, "/analyze/market", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnalyzeFraud requires fraud_likelihood in the response; a missing value is a
// GatewayError, never an implicit zero.
func (c *Client) AnalyzeFraud(ctx context.Context, req Request) (*FraudAnalysis, error) {
	body := fraudRequest{AssetData: req.AssetData, Financials: req.Financials, OracleData: req.OracleData}
	var out FraudAnalysis
	if err := c.call(ctx, opFraud, "/analyze/fraud", body, &out); err != nil {
		return nil, err
	}
	if out.FraudLikelihood == nil {
		return nil, &GatewayError{Operation: opFraud, Message: "response missing fraud_likelihood"}
	}
	return &out, nil
}

func (c *Client) call(ctx context.Context, op, path string, body, out any) error {
	ctx, span := otel.Tracer("proptoken/analysis").Start(ctx, "analysis."+op)
	span.SetAttributes(attribute.String("analysis.operation", op))
	defer span.End()

	if c.breaker != nil && !c.breaker.Allow() {
		c.metrics.ObserveCall(op, "rejected", 0)
		err := &GatewayError{Operation: op, Message: "scoring engine unavailable", Underlying: ErrCircuitOpen}
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	start := time.Now()
	status, err := c.do(ctx, op, path, body, out)
	elapsed := time.Since(start)

	if err != nil {
		c.metrics.ObserveCall(op, "error", elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "scoring engine call failed")
		// Caller cancellation says nothing about engine health.
		if !errors.Is(ctx.Err(), context.Canceled) && countsAgainstEngine(status) {
			c.recordFailure(ctx, op)
		}
		if c.logger != nil {
			c.logger.ErrorContext(ctx, "scoring engine call failed",
				"operation", op,
				"status", status,
				"duration_ms", elapsed.Milliseconds(),
				"error", err,
			)
		}
		return err
	}

	c.metrics.ObserveCall(op, "ok", elapsed)
	c.recordSuccess(ctx)
	return nil
}

func (c *Client) do(ctx context.Context, op, path string, body, out any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return 0, &GatewayError{Operation: op, Message: "encode request", Underlying: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, &GatewayError{Operation: op, Message: "build request", Underlying: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		msg := "request failed"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "request timed out"
		}
		return 0, &GatewayError{Operation: op, Message: msg, Underlying: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, &GatewayError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    "unexpected response: " + strings.TrimSpace(string(detail)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, &GatewayError{Operation: op, StatusCode: resp.StatusCode, Message: "decode response", Underlying: err}
	}
	return resp.StatusCode, nil
}

// countsAgainstEngine is true for transport failures and 5xx responses.
func countsAgainstEngine(status int) bool {
	return status == 0 || status >= http.StatusInternalServerError
}

func (c *Client) recordFailure(ctx context.Context, op string) {
	if c.breaker == nil {
		return
	}
	_, change := c.breaker.RecordFailure()
	if change.Opened {
		c.metrics.SetBreakerOpen(c.breaker.Name(), true)
		if c.logger != nil {
			c.logger.WarnContext(ctx, "scoring engine circuit opened", "breaker", c.breaker.Name(), "operation", op)
		}
	}
}

func (c *Client) recordSuccess(ctx context.Context) {
	if c.breaker == nil {
		return
	}
	_, change := c.breaker.RecordSuccess()
	if change.Closed {
		c.metrics.SetBreakerOpen(c.breaker.Name(), false)
		if c.logger != nil {
			c.logger.InfoContext(ctx, "scoring engine circuit closed", "breaker", c.breaker.Name())
		}
	}
}
