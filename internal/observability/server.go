// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

// Package observability provides HTTP endpoints for metrics and health checks.
package observability

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// ReadinessChecker returns nil when the service can take traffic, or an
// error describing why not.
type ReadinessChecker func(ctx context.Context) error

// Metrics contains process-level troupe metrics that are not owned by the
// command dispatcher.
type Metrics struct {
	HTTPRequests   *prometheus.CounterVec
	JournalAppends *prometheus.CounterVec
}

// NewMetrics creates and registers the metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "troupe_http_requests_total",
				Help: "Total number of API requests by route and status code",
			},
			[]string{"route", "status"},
		),
		JournalAppends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "troupe_journal_appends_total",
				Help: "Total number of journal appends by backend and status",
			},
			[]string{"backend", "status"},
		),
	}
	reg.MustRegister(m.HTTPRequests, m.JournalAppends)
	return m
}

// Server serves /metrics and the health probes.
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	registry   *prometheus.Registry
	metrics    *Metrics
	isReady    ReadinessChecker
	logger     *slog.Logger
	running    atomic.Bool
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithReadiness sets the readiness check.
func WithReadiness(check ReadinessChecker) ServerOption {
	return func(s *Server) {
		s.isReady = check
	}
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates an observability server listening on addr
// ("127.0.0.1:9100", or ":0" for an ephemeral port).
func NewServer(addr string, opts ...ServerOption) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s := &Server{
		addr:     addr,
		registry: registry,
		metrics:  NewMetrics(registry),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the registry served on /metrics. Components register
// their own collectors with it.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// Metrics returns the process-level metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Start begins serving. The returned channel receives a serve error, if
// any, and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("ALREADY_RUNNING").Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("observability server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("observability server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts the server down. Stopping a stopped server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_observability_server").Wrap(err)
		}
	}

	s.logger.Info("observability server stopped")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // client may disconnect
	w.Write([]byte("ok\n"))
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if s.isReady != nil {
		if err := s.isReady(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			//nolint:errcheck // client may disconnect
			w.Write([]byte("not ready: " + err.Error() + "\n"))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // client may disconnect
	w.Write([]byte("ok\n"))
}
