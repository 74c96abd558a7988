// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package command

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/troupe-dev/troupe/internal/journal"
	"github.com/troupe-dev/troupe/internal/logging"
	"github.com/troupe-dev/troupe/pkg/contract"
	"github.com/troupe-dev/troupe/pkg/errutil"
	"github.com/troupe-dev/troupe/pkg/interactor"
	"github.com/troupe-dev/troupe/pkg/troupe"
)

var tracer = otel.Tracer("troupe/command")

// UndeclaredPolicy decides what happens to request input a command's
// contract neither expects nor permits.
type UndeclaredPolicy string

// Undeclared input policies.
const (
	PolicyIgnore UndeclaredPolicy = "ignore"
	PolicyWarn   UndeclaredPolicy = "warn"
	PolicyReject UndeclaredPolicy = "reject"
)

// Dispatcher resolves requests to registered commands and runs them.
type Dispatcher struct {
	registry    *Registry
	aliases     *AliasTable  // optional
	rateLimiter *RateLimiter // optional
	journal     journal.Journal
	policy      UndeclaredPolicy
	logger      *slog.Logger
	invokeOpts  []troupe.Option
}

// DispatcherOption configures a Dispatcher during construction.
type DispatcherOption func(*Dispatcher)

// WithAliases enables alias resolution.
func WithAliases(aliases *AliasTable) DispatcherOption {
	return func(d *Dispatcher) {
		d.aliases = aliases
	}
}

// WithRateLimiter limits dispatches per caller.
func WithRateLimiter(rl *RateLimiter) DispatcherOption {
	return func(d *Dispatcher) {
		d.rateLimiter = rl
	}
}

// WithJournal records every run in j.
func WithJournal(j journal.Journal) DispatcherOption {
	return func(d *Dispatcher) {
		d.journal = j
	}
}

// WithUndeclaredPolicy sets the undeclared input policy. The default is
// PolicyWarn.
func WithUndeclaredPolicy(p UndeclaredPolicy) DispatcherOption {
	return func(d *Dispatcher) {
		d.policy = p
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithInvokeOptions appends options passed to every run.
func WithInvokeOptions(opts ...troupe.Option) DispatcherOption {
	return func(d *Dispatcher) {
		d.invokeOpts = append(d.invokeOpts, opts...)
	}
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *Registry, opts ...DispatcherOption) (*Dispatcher, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}
	d := &Dispatcher{
		registry: registry,
		policy:   PolicyWarn,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Registry returns the registry the dispatcher resolves against.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// DispatchLine parses line and dispatches it on behalf of caller.
func (d *Dispatcher) DispatchLine(ctx context.Context, caller, line string) (*troupe.Result, error) {
	parsed, err := Parse(line)
	if err != nil {
		return nil, err
	}
	return d.Dispatch(ctx, Request{Name: parsed.Name, Input: parsed.Args, Caller: caller})
}

// Dispatch runs the command named by req.
//
// A command that fails through its context yields a failed Result and a nil
// error. Violations and other errors are returned; the Result is non-nil
// whenever the command got as far as running.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (res *troupe.Result, err error) {
	m := NewMetricsRecorder()
	defer m.Record()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrEmptyInput()
	}

	input := make(map[string]any, len(req.Input))
	maps.Copy(input, req.Input)

	aliasUsed := ""
	if d.aliases != nil {
		ar := d.aliases.Resolve(req.Caller, name, d.registry)
		if ar.WasAlias {
			parsed, err := Parse(ar.Resolved)
			if err != nil {
				return nil, oops.With("alias", ar.AliasUsed).Wrap(err)
			}
			name = parsed.Name
			for k, v := range parsed.Args {
				if _, set := input[k]; !set {
					input[k] = v
				}
			}
			aliasUsed = ar.AliasUsed
			RecordAliasExpansion(aliasUsed)
		}
	}
	m.SetCommandName(name)

	ctx, span := tracer.Start(ctx, "command.dispatch",
		trace.WithAttributes(
			attribute.String("command.name", name),
			attribute.String("command.caller", req.Caller),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	if aliasUsed != "" {
		span.SetAttributes(
			attribute.Bool("command.alias_expanded", true),
			attribute.String("command.alias_used", aliasUsed),
		)
	}

	if d.rateLimiter != nil && req.Caller != "" {
		if allowed, cooldownMs := d.rateLimiter.Allow(req.Caller); !allowed {
			span.SetAttributes(
				attribute.Bool("command.rate_limited", true),
				attribute.Int64("command.cooldown_ms", cooldownMs),
			)
			m.SetStatus(StatusRateLimited)
			return nil, ErrRateLimited(cooldownMs)
		}
	}

	entry, ok := d.registry.Get(name)
	if !ok {
		m.SetStatus(StatusNotFound)
		return nil, ErrUnknownCommand(name)
	}
	m.SetCommandSource(entry.Source)
	span.SetAttributes(attribute.String("command.source", entry.Source))

	cmd := entry.New()
	if cmd == nil {
		return nil, oops.Code(CodeInvalidEntry).With("command", name).Errorf("factory returned a nil command")
	}

	if err := d.checkUndeclared(ctx, name, cmd, input); err != nil {
		m.SetStatus(StatusRejected)
		return nil, err
	}

	id := ulid.Make()
	ctx = logging.WithRun(ctx, name, id.String(), req.Caller)
	ctx = WithCaller(ctx, req.Caller)
	span.SetAttributes(attribute.String("command.invocation_id", id.String()))

	opts := append([]troupe.Option{troupe.WithLogger(d.logger), troupe.WithInvocationID(id)}, d.invokeOpts...)
	started := time.Now()
	res, err = troupe.CallStrict(ctx, cmd, input, opts...)

	rec := journal.Record{
		ID:        id,
		Command:   name,
		Caller:    req.Caller,
		StartedAt: started,
		Duration:  time.Since(started),
	}
	if res != nil {
		rec.Violations = res.Invocation().Violations().Names()
		RecordViolations(name, rec.Violations)
	}

	switch {
	case err == nil:
		m.SetStatus(StatusSuccess)
		rec.Outcome = journal.OutcomeSuccess
	case errors.Is(err, contract.ErrCommandFailed) && res != nil:
		m.SetStatus(StatusFailure)
		rec.Outcome = journal.OutcomeFailure
		rec.Reason = res.Reason()
		span.SetAttributes(attribute.String("command.failure_reason", rec.Reason))
		err = nil
	default:
		m.SetStatus(StatusError)
		rec.Outcome = journal.OutcomeError
		rec.Reason = err.Error()
		d.logger.WarnContext(ctx, "command execution failed",
			"error", err,
			"code", errutil.Code(err),
		)
	}

	d.record(ctx, rec)
	return res, err
}

func (d *Dispatcher) checkUndeclared(ctx context.Context, name string, cmd troupe.Command, input map[string]any) error {
	if d.policy == PolicyIgnore || cmd.Contract() == nil {
		return nil
	}
	undeclared := cmd.Contract().Undeclared(interactor.NewContext(input))
	if len(undeclared) == 0 {
		return nil
	}
	if d.policy == PolicyReject {
		return ErrUndeclaredProperty(name, undeclared)
	}
	d.logger.WarnContext(ctx, "undeclared input",
		"command", name,
		"properties", undeclared,
	)
	return nil
}

func (d *Dispatcher) record(ctx context.Context, rec journal.Record) {
	if d.journal == nil {
		return
	}
	if err := d.journal.Append(ctx, rec); err != nil {
		d.logger.WarnContext(ctx, "journal append failed",
			"invocation_id", rec.ID.String(),
			"error", err,
		)
	}
}
