package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultListenAddress  = ":2112"
	defaultShutdownPeriod = 5 * time.Second

	serverReadTimeout  = 5 * time.Second
	serverWriteTimeout = 10 * time.Second
)

// ServerConfig controls the capture daemon's metrics and health endpoint.
type ServerConfig struct {
	Address        string
	Logger         *slog.Logger
	Metrics        *Metrics
	ShutdownPeriod time.Duration
}

// Server exposes Prometheus metrics on /metrics and a liveness probe on
// /healthz. The probe turns unhealthy once the store records a write error
// and stays that way until MarkHealthy resets the flag, so an operator can
// tell a wedged database apart from a quiet mesh.
type Server struct {
	logger   *slog.Logger
	metrics  *Metrics
	shutdown time.Duration
	srv      *http.Server
}

// NewServer prepares the endpoint; Run starts it.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Address == "" {
		cfg.Address = defaultListenAddress
	}
	if cfg.Logger == nil {
		cfg.Logger = NoOpLogger()
	}
	if cfg.ShutdownPeriod == 0 {
		cfg.ShutdownPeriod = defaultShutdownPeriod
	}

	s := &Server{
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		shutdown: cfg.ShutdownPeriod,
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealth)

	s.srv = &http.Server{
		Addr:         cfg.Address,
		Handler:      mux,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
	}
	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !s.metrics.Healthy() {
		http.Error(w, "store errors recorded", http.StatusServiceUnavailable)
		return
	}
	_, _ = io.WriteString(w, "ok\n")
}

// Run serves until the context is cancelled, then drains connections within
// the shutdown period.
func (s *Server) Run(ctx context.Context) {
	if s == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("observability server shutdown", slog.Any("error", err))
		}
	}()

	s.logger.Info("observability server listening", slog.String("address", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("observability server failed", slog.Any("error", err))
	}
	<-done
}
