package e2e

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"

	"proptoken/internal/activity"
	activityhandler "proptoken/internal/activity/handler"
	"proptoken/internal/analysis"
	jwttoken "proptoken/internal/jwt_token"
	"proptoken/internal/oracle"
	oracleactivity "proptoken/internal/oracle/providers/activity"
	"proptoken/internal/oracle/providers/registry"
	"proptoken/internal/oracle/providers/satellite"
	ratelimitmw "proptoken/internal/ratelimit/middleware"
	ratelimitstore "proptoken/internal/ratelimit/store"
	submissionhandler "proptoken/internal/submission/handler"
	"proptoken/internal/submission/lock"
	"proptoken/internal/submission/service"
	"proptoken/internal/submission/store"
	"proptoken/pkg/platform/middleware/metadata"
	"proptoken/pkg/platform/middleware/request"
)

// stack is the API wired the way the server wires it, backed by in-memory
// stores and a fake scoring engine.
type stack struct {
	server *httptest.Server
	engine *httptest.Server
	svc    *service.Service
}

func newStack(tc *TestContext) *stack {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := httptest.NewServer(scoringEngine(tc))

	coordinator := oracle.NewCoordinator(
		satellite.New(satellite.WithConfidence(0.98)),
		registry.New(),
		oracleactivity.New(oracleactivity.WithConfidence(0.9)),
		oracle.WithLogger(log),
	)
	recorder := activity.NewRecorder(activity.WithLogger(log))
	svc := service.New(store.NewInMemory(), lock.NewInMemory(), coordinator,
		analysis.New(engine.URL, analysis.WithLogger(log)),
		service.WithLogger(log),
		service.WithActivity(recorder),
	)

	var limits []func(http.Handler) http.Handler
	if tc.limit > 0 {
		limiter := ratelimitmw.New(ratelimitstore.NewInMemory(), tc.limit, tc.limitWindow, log)
		limits = append(limits, limiter.Limit("submissions"))
	}
	validator := jwttoken.NewJWTServiceAdapter(jwttoken.NewJWTService(signingKey, issuer))

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Recovery(log))
	submissionhandler.New(svc, log, validator, limits...).Register(r)
	activityhandler.New(recorder, log, "").Register(r)

	return &stack{
		server: httptest.NewServer(r),
		engine: engine,
		svc:    svc,
	}
}

func (s *stack) close(ctx context.Context) error {
	s.server.Close()
	err := s.svc.Shutdown(ctx)
	s.engine.Close()
	return err
}

// scoringEngine answers market and fraud analysis with the scenario's
// configured fraud likelihood.
func scoringEngine(tc *TestContext) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /analyze/market", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"expected_nav": map[string]any{"min": 900000, "max": 1100000, "mean": 1000000},
			"downside_nav": 850000,
			"tail_risk":    "low",
			"market_depth": "Sufficient",
		})
	})
	mux.HandleFunc("POST /analyze/fraud", func(w http.ResponseWriter, _ *http.Request) {
		likelihood := tc.FraudLikelihood()
		writeJSON(w, map[string]any{
			"fraud_likelihood": likelihood,
			"anomaly_score":    likelihood / 100,
			"anomalies":        []string{},
			"passed":           likelihood <= 5,
		})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
