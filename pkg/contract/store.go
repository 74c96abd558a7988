// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package contract

import "context"

// Store is the execution context an invocation reads and writes.
// The engine assumes exclusive ownership for the duration of a run.
type Store interface {
	Membership
	Get(name string) any
	Set(name string, value any)

	// Fail records a failure outcome with a reason.
	Fail(reason string)
	// Succeed records that a run completed normally.
	Succeed()
	Failed() bool
	Reason() string

	// Track registers an invocation for rollback notification.
	Track(inv *Invocation)
	// Rollback notifies tracked invocations. Only the first call has effect.
	Rollback(ctx context.Context)
}

// Body is the command logic wrapped by the hook runner.
type Body func(ctx context.Context) error

// HookRunner composes host-supplied stages around a body. Implementations
// must run body at most once and return its error unmodified.
type HookRunner interface {
	RunWithHooks(ctx context.Context, inv *Invocation, body Body) error
}

// Rollbacker is implemented by commands that undo their work when a run
// they took part in fails.
type Rollbacker interface {
	Rollback(ctx context.Context, inv *Invocation) error
}

// MethodResolver lets a command resolve named-method defaults without
// reflection.
type MethodResolver interface {
	ResolveMethod(name string) (DefaultFunc, bool)
}
