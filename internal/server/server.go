// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

// Package server exposes registered commands over an HTTP JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/troupe-dev/troupe/internal/command"
	"github.com/troupe-dev/troupe/internal/journal"
	"github.com/troupe-dev/troupe/internal/observability"
)

// CallerHeader identifies the caller when the request body does not.
const CallerHeader = "X-Troupe-Caller"

// maxBodyBytes caps a run request body.
const maxBodyBytes = 1 << 20

// ErrNilDispatcher is returned when a server is created without a dispatcher.
var ErrNilDispatcher = errors.New("dispatcher cannot be nil")

// Server serves the command API.
type Server struct {
	addr       string
	dispatcher *command.Dispatcher
	journal    journal.Journal
	metrics    *observability.Metrics
	logger     *slog.Logger
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// Option configures a Server.
type Option func(*Server)

// WithJournal enables GET /v1/journal.
func WithJournal(j journal.Journal) Option {
	return func(s *Server) {
		s.journal = j
	}
}

// WithMetrics counts requests in m.HTTPRequests.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates an API server listening on addr.
func New(addr string, d *command.Dispatcher, opts ...Option) (*Server, error) {
	if d == nil {
		return nil, ErrNilDispatcher
	}
	s := &Server{
		addr:       addr,
		dispatcher: d,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /v1/commands", s.instrument("list", s.handleList))
	mux.Handle("GET /v1/commands/{name}", s.instrument("describe", s.handleDescribe))
	mux.Handle("POST /v1/commands/{name}", s.instrument("run", s.handleRun))
	mux.Handle("GET /v1/journal", s.instrument("journal", s.handleJournal))
	return mux
}

// Start begins serving. The returned channel receives a serve error, if
// any, and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("ALREADY_RUNNING").Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := s.httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts the server down. Stopping a stopped server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.running.Store(true)
		return oops.With("operation", "shutdown_api_server").Wrap(err)
	}
	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.dispatcher.Registry().DescribeAll())
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	entry, ok := s.dispatcher.Registry().Get(name)
	if !ok {
		s.writeError(w, command.ErrUnknownCommand(name), "")
		return
	}
	s.writeJSON(w, http.StatusOK, command.Describe(entry))
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if r.ContentLength != 0 {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		dec.UseNumber()
		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.writeError(w, command.ErrInvalidArgs(r.PathValue("name"), "request body is not valid JSON"), "")
			return
		}
	}
	if req.Caller == "" {
		req.Caller = r.Header.Get(CallerHeader)
	}

	res, err := s.dispatcher.Dispatch(r.Context(), command.Request{
		Name:   r.PathValue("name"),
		Input:  normalize(req.Input),
		Caller: req.Caller,
	})
	if err != nil {
		id := ""
		if res != nil {
			id = res.Invocation().ID().String()
		}
		s.writeError(w, err, id)
		return
	}

	inv := res.Invocation()
	s.writeJSON(w, http.StatusOK, RunResponse{
		Command:      inv.Contract().Name(),
		InvocationID: inv.ID().String(),
		Success:      res.Success(),
		Reason:       res.Reason(),
		Context:      res.Context().Snapshot(),
		Violations:   inv.Violations().Names(),
	})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeJSON(w, http.StatusNotFound, ErrorResponse{Code: "JOURNAL_DISABLED", Message: "No journal configured."})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, command.ErrInvalidArgs("journal", "limit must be a non-negative integer"), "")
			return
		}
		limit = n
	}

	records, err := s.journal.List(r.Context(), r.URL.Query().Get("command"), limit)
	if err != nil {
		s.writeError(w, err, "")
		return
	}
	if records == nil {
		records = []journal.Record{}
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// instrument counts requests by route and status code.
func (s *Server) instrument(route string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		if s.metrics != nil {
			s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
