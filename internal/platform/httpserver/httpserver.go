package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"proptoken/internal/platform/config"
)

const (
	defaultReadHeaderTimeout = 5 * time.Second
	readTimeout              = 30 * time.Second
	idleTimeout              = 120 * time.Second
)

// New builds the API server. The write timeout covers the slowest handler,
// GET /activity/export, not verification runs, which continue after 202.
func New(cfg config.ServerConfig, handler http.Handler, logger *slog.Logger) *http.Server {
	readHeader := cfg.ReadHeaderTimeout
	if readHeader <= 0 {
		readHeader = defaultReadHeaderTimeout
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeader,
		ReadTimeout:       readTimeout,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       idleTimeout,
	}
	if logger != nil {
		srv.ErrorLog = slog.NewLogLogger(logger.Handler(), slog.LevelWarn)
	}
	return srv
}
