// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

// Package logging provides structured logging enriched with trace and
// command-run context.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/trace"
)

// Options configures Setup.
type Options struct {
	Service string
	Version string
	// Format is "json" (default) or "text".
	Format string
	// Level is "debug", "info" (default), "warn" or "error".
	Level string
}

type runKey struct{}

type runInfo struct {
	command      string
	invocationID string
	caller       string
}

// WithRun returns a context whose log records carry the command name,
// invocation ID and caller. Empty values are omitted.
func WithRun(ctx context.Context, command, invocationID, caller string) context.Context {
	return context.WithValue(ctx, runKey{}, runInfo{
		command:      command,
		invocationID: invocationID,
		caller:       caller,
	})
}

// traceHandler wraps a slog.Handler to add service, trace and run context.
type traceHandler struct {
	handler slog.Handler
	service string
	version string
}

// Handle adds context attributes to the log record.
func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(
		slog.String("service", h.service),
		slog.String("version", h.version),
	)

	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.HasTraceID() {
		r.AddAttrs(slog.String("trace_id", spanCtx.TraceID().String()))
	}
	if spanCtx.HasSpanID() {
		r.AddAttrs(slog.String("span_id", spanCtx.SpanID().String()))
	}

	if run, ok := ctx.Value(runKey{}).(runInfo); ok {
		if run.command != "" {
			r.AddAttrs(slog.String("command", run.command))
		}
		if run.invocationID != "" {
			r.AddAttrs(slog.String("invocation_id", run.invocationID))
		}
		if run.caller != "" {
			r.AddAttrs(slog.String("caller", run.caller))
		}
	}

	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return h.handler.Handle(ctx, r)
}

// Enabled returns true if the level is enabled.
func (h *traceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// WithAttrs returns a new handler with the given attributes.
func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{
		handler: h.handler.WithAttrs(attrs),
		service: h.service,
		version: h.version,
	}
}

// WithGroup returns a new handler with the given group.
func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{
		handler: h.handler.WithGroup(name),
		service: h.service,
		version: h.version,
	}
}

// ParseLevel converts a level name into a slog.Level. An empty name is info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, oops.Code("INVALID_LOG_LEVEL").
			With("level", name).
			Errorf("unknown log level %q", name)
	}
}

// New creates a configured slog.Logger. If w is nil, it writes to os.Stderr.
// An unknown level falls back to info.
func New(opts Options, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	level, err := ParseLevel(opts.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var baseHandler slog.Handler
	if opts.Format == "text" {
		baseHandler = slog.NewTextHandler(w, handlerOpts)
	} else {
		baseHandler = slog.NewJSONHandler(w, handlerOpts)
	}

	return slog.New(&traceHandler{
		handler: baseHandler,
		service: opts.Service,
		version: opts.Version,
	})
}

// Setup creates a debug-level logger.
// format: "json" or "text" (defaults to "json" if empty)
func Setup(service, version, format string, w io.Writer) *slog.Logger {
	return New(Options{Service: service, Version: version, Format: format, Level: "debug"}, w)
}

// SetDefault configures the process-wide default logger and returns it.
func SetDefault(opts Options) *slog.Logger {
	logger := New(opts, nil)
	slog.SetDefault(logger)
	return logger
}
