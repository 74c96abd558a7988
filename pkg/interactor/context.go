// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package interactor

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"github.com/troupe-dev/troupe/pkg/contract"
)

// Compile-time interface check.
var _ contract.Store = (*Context)(nil)

// Context is an ordered key/value store shared by the commands of one run.
// Members keep insertion order. A Context is not safe for concurrent use;
// give each invocation chain its own.
type Context struct {
	order      []string
	values     map[string]any
	failed     bool
	succeeded  bool
	reason     string
	tracked    []*contract.Invocation
	rolledBack bool
	logger     *slog.Logger
}

// NewContext creates a context seeded with input. Seeded keys are inserted
// in sorted order so member order does not depend on map iteration.
func NewContext(input map[string]any) *Context {
	c := &Context{
		values: make(map[string]any, len(input)),
		logger: slog.Default(),
	}
	for _, key := range slices.Sorted(maps.Keys(input)) {
		c.Set(key, input[key])
	}
	return c
}

// WithLogger sets the logger used to report rollback errors.
func (c *Context) WithLogger(l *slog.Logger) *Context {
	if l != nil {
		c.logger = l
	}
	return c
}

// Has reports key membership. A key holding nil is a member.
func (c *Context) Has(name string) bool {
	_, ok := c.values[name]
	return ok
}

// Get returns the value stored under name, or nil.
func (c *Context) Get(name string) any {
	return c.values[name]
}

// Set stores value under name.
func (c *Context) Set(name string, value any) {
	if c.values == nil {
		c.values = make(map[string]any)
	}
	if _, exists := c.values[name]; !exists {
		c.order = append(c.order, name)
	}
	c.values[name] = value
}

// Delete removes name.
func (c *Context) Delete(name string) {
	if _, exists := c.values[name]; !exists {
		return
	}
	delete(c.values, name)
	c.order = slices.DeleteFunc(c.order, func(n string) bool { return n == name })
}

// Members returns member names in insertion order.
func (c *Context) Members() []string {
	return append([]string(nil), c.order...)
}

// Len returns the number of members.
func (c *Context) Len() int {
	return len(c.order)
}

// Snapshot returns a copy of the stored values.
func (c *Context) Snapshot() map[string]any {
	return maps.Clone(c.values)
}

// Fail marks the context failed with reason.
func (c *Context) Fail(reason string) {
	c.failed = true
	c.reason = reason
}

// Succeed records that a run over this context completed normally.
func (c *Context) Succeed() {
	c.succeeded = true
}

// Completed reports whether any run over this context completed normally.
func (c *Context) Completed() bool {
	return c.succeeded
}

// Failed reports whether the context was marked failed.
func (c *Context) Failed() bool {
	return c.failed
}

// Success reports whether the context was not marked failed.
func (c *Context) Success() bool {
	return !c.failed
}

// Reason returns the failure reason.
func (c *Context) Reason() string {
	return c.reason
}

// Track registers inv for rollback notification.
func (c *Context) Track(inv *contract.Invocation) {
	c.tracked = append(c.tracked, inv)
}

// Tracked returns the registered invocations in registration order.
func (c *Context) Tracked() []*contract.Invocation {
	return append([]*contract.Invocation(nil), c.tracked...)
}

// Rollback notifies every tracked invocation whose command implements
// contract.Rollbacker, most recent first. Only the first call has effect.
// Rollback errors are logged; they never replace the error that caused the
// rollback.
func (c *Context) Rollback(ctx context.Context) {
	if c.rolledBack {
		return
	}
	c.rolledBack = true

	for _, inv := range slices.Backward(c.tracked) {
		r, ok := inv.Command().(contract.Rollbacker)
		if !ok {
			continue
		}
		if err := r.Rollback(ctx, inv); err != nil {
			c.logger.WarnContext(ctx, "rollback failed",
				"contract", inv.Contract().Name(),
				"invocation_id", inv.ID().String(),
				"error", err,
			)
		}
	}
}

// RolledBack reports whether Rollback has run.
func (c *Context) RolledBack() bool {
	return c.rolledBack
}
