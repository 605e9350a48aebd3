package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/referralguard/referral-integrity-backend/internal/infrastructure/config"
)

// HealthChecker reports whether a dependency is ready to serve.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server hosts the HTTP API.
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	logger     *slog.Logger
	readiness  []HealthChecker
}

// NewServer wires the handler, middleware and health checks into an
// http.Server. readiness checks gate the /readyz endpoint.
func NewServer(cfg *config.Config, handler *Handler, logger *slog.Logger, readiness ...HealthChecker) *Server {
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		readiness: readiness,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleLiveness)
	mux.HandleFunc("GET /readyz", s.handleReadiness)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/v1/behavior/analyze", handler.handleAnalyzeBehavior)
	mux.HandleFunc("POST /api/v1/anomalies/detect", handler.handleDetectAnomalies)
	mux.HandleFunc("POST /api/v1/alerts", handler.handleCreateAlert)
	mux.HandleFunc("GET /api/v1/alerts", handler.handleListAlerts)
	mux.HandleFunc("PATCH /api/v1/alerts/{id}", handler.handleUpdateAlert)
	mux.HandleFunc("POST /api/v1/cases", handler.handleCreateCase)
	mux.HandleFunc("GET /api/v1/cases", handler.handleListCases)
	mux.HandleFunc("PATCH /api/v1/cases/{id}", handler.handleUpdateCase)
	mux.HandleFunc("POST /api/v1/accounts/{id}/freeze", handler.handleFreezeAccount)
	mux.HandleFunc("DELETE /api/v1/accounts/{id}/freeze", handler.handleUnfreezeAccount)
	mux.HandleFunc("GET /api/v1/accounts/{id}/status", handler.handleAccountStatus)

	var h http.Handler = mux
	h = metricsMiddleware(handler.metrics)(h)
	h = rateLimitMiddleware(float64(cfg.Server.RateLimit.RequestsPerSecond), cfg.Server.RateLimit.BurstSize)(h)
	h = loggingMiddleware(h)
	h = requestIDMiddleware(h)
	h = recoveryMiddleware(h)

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        h,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	return s
}

// Start runs the server until an interrupt arrives, then drains within
// the configured shutdown timeout.
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.httpServer.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		s.logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	for _, check := range s.readiness {
		if err := check.HealthCheck(ctx); err != nil {
			s.logger.Warn("readiness check failed", "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
