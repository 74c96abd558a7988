// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

// Package command provides the command registry, input parser, aliases and
// the dispatcher that runs contract-guarded commands on behalf of callers.
package command

import (
	"context"

	"github.com/troupe-dev/troupe/pkg/troupe"
)

// Factory builds a fresh command instance per dispatch.
type Factory func() troupe.Command

// Entry is a registered command.
type Entry struct {
	Name   string  // canonical name (e.g., "charge")
	Source string  // "go", "manifest" or a manifest path
	Help   string  // short description (one line)
	Usage  string  // usage pattern (e.g., "charge amount=<int> [currency=<code>]")
	New    Factory // constructs the command
}

// Request asks the dispatcher to run a command.
type Request struct {
	// Name is a command name or alias.
	Name string
	// Input seeds the execution context. Values from an alias expansion
	// are used only for keys Input does not set.
	Input map[string]any
	// Caller identifies who is dispatching, for rate limiting, per-caller
	// aliases and the journal. Empty callers are not rate limited.
	Caller string
}

type callerKey struct{}

// WithCaller returns a context carrying the dispatching caller.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom returns the caller stored by WithCaller, or "".
func CallerFrom(ctx context.Context) string {
	caller, _ := ctx.Value(callerKey{}).(string)
	return caller
}
