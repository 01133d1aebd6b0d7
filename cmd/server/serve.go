package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"proptoken/internal/activity"
	activityhandler "proptoken/internal/activity/handler"
	activitymetrics "proptoken/internal/activity/metrics"
	activitymodels "proptoken/internal/activity/models"
	"proptoken/internal/activity/sink"
	"proptoken/internal/analysis"
	analysismetrics "proptoken/internal/analysis/metrics"
	jwttoken "proptoken/internal/jwt_token"
	"proptoken/internal/oracle"
	"proptoken/internal/oracle/cache"
	oraclemetrics "proptoken/internal/oracle/metrics"
	activityprovider "proptoken/internal/oracle/providers/activity"
	registryprovider "proptoken/internal/oracle/providers/registry"
	"proptoken/internal/oracle/providers/satellite"
	"proptoken/internal/platform/config"
	"proptoken/internal/platform/httpserver"
	"proptoken/internal/platform/kafka"
	"proptoken/internal/platform/logger"
	"proptoken/internal/platform/metrics"
	natsclient "proptoken/internal/platform/nats"
	"proptoken/internal/platform/postgres"
	redisclient "proptoken/internal/platform/redis"
	ratelimitmetrics "proptoken/internal/ratelimit/metrics"
	ratelimitmw "proptoken/internal/ratelimit/middleware"
	ratelimitstore "proptoken/internal/ratelimit/store"
	submissionhandler "proptoken/internal/submission/handler"
	"proptoken/internal/submission/lock"
	submissionmetrics "proptoken/internal/submission/metrics"
	"proptoken/internal/submission/service"
	"proptoken/internal/submission/store"
	"proptoken/pkg/platform/circuit"
	"proptoken/pkg/platform/httputil"
	"proptoken/pkg/platform/middleware/metadata"
	"proptoken/pkg/platform/middleware/request"
	"proptoken/pkg/platform/middleware/requesttime"
)

func NewServeCommand(opts *rootOptions) *cobra.Command {
	var migrateOnStart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the verification API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, migrateOnStart)
		},
	}

	cmd.Flags().BoolVar(&migrateOnStart, "migrate", true, "apply pending migrations before serving")

	return cmd
}

// infra holds the optional backing services selected by configuration.
type infra struct {
	db        *sql.DB
	redis     *redisclient.Client
	publisher sink.Publisher
	closers   []func()
}

func (i *infra) close() {
	for n := len(i.closers) - 1; n >= 0; n-- {
		i.closers[n]()
	}
}

func connect(ctx context.Context, cfg *config.Config, log *slog.Logger, migrateOnStart bool) (*infra, error) {
	in := &infra{}

	if cfg.Database.URL != "" {
		if migrateOnStart {
			if err := postgres.MigrateUp(cfg.Database.URL); err != nil {
				return in, err
			}
		}
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return in, err
		}
		in.db = db
		in.closers = append(in.closers, func() { _ = db.Close() })
	}

	rdb, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return in, err
	}
	if rdb != nil {
		in.redis = rdb
		in.closers = append(in.closers, func() { _ = rdb.Close() })
	}

	switch cfg.Activity.Sink {
	case config.SinkKafka:
		client, err := kafka.NewClient(ctx, cfg.Kafka)
		if err != nil {
			return in, err
		}
		in.closers = append(in.closers, client.Close)
		if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.Topic, cfg.Kafka.Partitions); err != nil {
			return in, err
		}
		in.publisher = sink.NewKafkaPublisher(client, cfg.Kafka.Topic)
	case config.SinkNATS:
		conn, err := natsclient.Connect(cfg.NATS, log)
		if err != nil {
			return in, err
		}
		in.closers = append(in.closers, func() { _ = conn.Drain() })
		in.publisher = sink.NewNATSPublisher(conn, cfg.NATS.SubjectPrefix)
	}

	return in, nil
}

func serve(ctx context.Context, cfg *config.Config, migrateOnStart bool) error {
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	reg := metrics.NewRegistry()

	in, err := connect(ctx, cfg, log, migrateOnStart)
	defer in.close()
	if err != nil {
		return err
	}

	var (
		submissions   service.Store  = store.NewInMemory()
		locker        service.Locker = lock.NewInMemory()
		registryCache cache.Store    = cache.NewInMemoryStore(cfg.Oracle.RegistryCacheTTL)
	)
	if in.db != nil {
		submissions = store.NewPostgres(in.db)
	}
	if in.redis != nil {
		locker = lock.NewRedis(in.redis.Client)
		registryCache = cache.NewRedisStore(in.redis.Client, cfg.Oracle.RegistryCacheTTL)
	}
	log.InfoContext(ctx, "backing services selected",
		"postgres", in.db != nil,
		"redis", in.redis != nil,
		"activity_sink", cfg.Activity.Sink,
	)

	oracleMetrics := oraclemetrics.New(reg)
	coordinator := oracle.NewCoordinator(
		satellite.New(
			satellite.WithConfidence(cfg.Oracle.SatelliteConfidence),
			satellite.WithLatency(cfg.Oracle.SimulatedProbeLatency),
		),
		cache.NewCachingRegistry(
			registryprovider.New(
				registryprovider.WithConfidence(cfg.Oracle.RegistryConfidence),
				registryprovider.WithLatency(cfg.Oracle.SimulatedProbeLatency),
			),
			registryCache,
			cache.WithLogger(log),
			cache.WithMetrics(oracleMetrics),
		),
		activityprovider.New(
			activityprovider.WithConfidence(cfg.Oracle.ActivityConfidence),
			activityprovider.WithLatency(cfg.Oracle.SimulatedProbeLatency),
		),
		oracle.WithLogger(log),
		oracle.WithMetrics(oracleMetrics),
		oracle.WithProbeTimeout(cfg.Oracle.Timeout),
	)

	analyzer := analysis.New(cfg.Analysis.URL,
		analysis.WithLogger(log),
		analysis.WithMetrics(analysismetrics.New(reg)),
		analysis.WithTimeout(cfg.Analysis.Timeout),
		analysis.WithBreaker(circuit.New("analysis",
			circuit.WithFailureThreshold(cfg.Analysis.BreakerFailures),
			circuit.WithCooldown(cfg.Analysis.BreakerCooldown),
		)),
	)

	activityMetrics := activitymetrics.New(reg)
	recorderOpts := []activity.Option{
		activity.WithLogger(log),
		activity.WithMetrics(activityMetrics),
		activity.WithCapacity(cfg.Activity.Capacity),
	}
	var worker *sink.Worker
	if in.publisher != nil {
		inbox := make(chan activitymodels.Event, cfg.Activity.Capacity)
		recorderOpts = append(recorderOpts, activity.WithSink(inbox))
		worker = sink.NewWorker(in.publisher, inbox,
			sink.WithLogger(log),
			sink.WithMetrics(activityMetrics),
		)
	}
	recorder := activity.NewRecorder(recorderOpts...)

	svc := service.New(submissions, locker, coordinator, analyzer,
		service.WithLogger(log),
		service.WithMetrics(submissionmetrics.New(reg)),
		service.WithActivity(recorder),
		service.WithRunTimeout(cfg.Pipeline.RunTimeout),
		service.WithLockTTL(cfg.Pipeline.LockTTL),
	)

	started, rejected, err := svc.Recover(ctx)
	if err != nil {
		return fmt.Errorf("recover submissions: %w", err)
	}
	if started > 0 || rejected > 0 {
		log.InfoContext(ctx, "recovered orphaned submissions", "started", started, "rejected", rejected)
	}

	var limits []func(http.Handler) http.Handler
	if cfg.RateLimit.Submissions > 0 {
		var limitStore ratelimitmw.Store = ratelimitstore.NewInMemory()
		if in.redis != nil {
			limitStore = ratelimitstore.NewRedis(in.redis.Client)
		}
		limiter := ratelimitmw.New(limitStore, cfg.RateLimit.Submissions, cfg.RateLimit.Window, log,
			ratelimitmw.WithMetrics(ratelimitmetrics.New(reg)),
		)
		limits = append(limits, limiter.Limit("submissions"))
	}

	validator := jwttoken.NewJWTServiceAdapter(jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer))

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Recovery(log))
	r.Use(request.Logger(log))
	r.Use(requesttime.Middleware)
	r.Get("/healthz", healthHandler(in))
	r.Handle("/metrics", reg.Handler())
	submissionhandler.New(svc, log, validator, limits...).Register(r)
	activityhandler.New(recorder, log, cfg.Auth.AdminToken).Register(r)

	srv := httpserver.New(cfg.Server, r, log)

	// The sink outlives the HTTP server so verdicts recorded during shutdown
	// are still published.
	sinkCtx, stopSink := context.WithCancel(context.WithoutCancel(ctx))
	defer stopSink()

	g, gctx := errgroup.WithContext(ctx)
	if worker != nil {
		g.Go(func() error {
			if err := worker.Run(sinkCtx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("activity sink: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		log.Info("starting proptoken", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("graceful shutdown failed: %w", err))
		}
		if err := svc.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("stop verification runs: %w", err))
		}
		stopSink()
		return errors.Join(errs...)
	})

	return g.Wait()
}

func healthHandler(in *infra) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{}
		healthy := true
		if in.db != nil {
			checks["postgres"] = "ok"
			if err := in.db.PingContext(r.Context()); err != nil {
				checks["postgres"] = err.Error()
				healthy = false
			}
		}
		if in.redis != nil {
			checks["redis"] = "ok"
			if err := in.redis.Health(r.Context()); err != nil {
				checks["redis"] = err.Error()
				healthy = false
			}
		}

		status, code := "ok", http.StatusOK
		if !healthy {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, code, map[string]any{"status": status, "checks": checks})
	}
}
