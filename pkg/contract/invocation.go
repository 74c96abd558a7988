// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package contract

import (
	"context"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// State is the lifecycle position of an invocation.
type State int

// Invocation states.
const (
	StateCreated State = iota
	StateValidating
	StateExecuting
	StateFinalizing
	StateSucceeded
	StateFailed
	StateRolledBack
)

var stateNames = [...]string{
	StateCreated:    "created",
	StateValidating: "validating",
	StateExecuting:  "executing",
	StateFinalizing: "finalizing",
	StateSucceeded:  "succeeded",
	StateFailed:     "failed",
	StateRolledBack: "rolled_back",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Invocation is one run of a command against a store. It owns the
// per-run violation table and the default-resolution guard, and is
// discarded after the run.
//
// An Invocation is not safe for concurrent use.
type Invocation struct {
	id         ulid.ULID
	contract   *Contract
	command    any
	store      Store
	state      State
	violations *ViolationTable
	resolving  []string
	logger     *slog.Logger
	ctx        context.Context
}

// InvocationOption configures an Invocation.
type InvocationOption func(*Invocation)

// WithLogger sets the logger used for lifecycle debug output.
func WithLogger(l *slog.Logger) InvocationOption {
	return func(inv *Invocation) {
		if l != nil {
			inv.logger = l
		}
	}
}

// WithID overrides the generated invocation ID.
func WithID(id ulid.ULID) InvocationOption {
	return func(inv *Invocation) {
		inv.id = id
	}
}

// NewInvocation prepares a run of command against store. It seals the
// contract and registers the invocation with the store for rollback
// notification.
func NewInvocation(c *Contract, command any, store Store, opts ...InvocationOption) (*Invocation, error) {
	if c == nil {
		return nil, ErrNilContract
	}
	if store == nil {
		return nil, ErrNilStore
	}
	if err := c.Err(); err != nil {
		return nil, err
	}
	c.Seal()

	inv := &Invocation{
		id:         ulid.Make(),
		contract:   c,
		command:    command,
		store:      store,
		violations: &ViolationTable{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(inv)
	}
	store.Track(inv)
	return inv, nil
}

// Context returns the context the invocation runs under, or
// context.Background before Run. Handlers and defaults that block use it.
func (inv *Invocation) Context() context.Context {
	if inv.ctx == nil {
		return context.Background()
	}
	return inv.ctx
}

// ID returns the invocation identifier.
func (inv *Invocation) ID() ulid.ULID {
	return inv.id
}

// Contract returns the contract being enforced.
func (inv *Invocation) Contract() *Contract {
	return inv.contract
}

// Command returns the command instance.
func (inv *Invocation) Command() any {
	return inv.command
}

// Store returns the execution context.
func (inv *Invocation) Store() Store {
	return inv.store
}

// State returns the current lifecycle state.
func (inv *Invocation) State() State {
	return inv.state
}

// Violations returns the violation table built during validation.
func (inv *Invocation) Violations() *ViolationTable {
	return inv.violations
}

// Has reports whether name is a member of the store.
func (inv *Invocation) Has(name string) bool {
	return inv.store.Has(name)
}

// Get returns the value of a declared property.
//
// A value already in the store is returned as is. Otherwise the declared
// default is evaluated and its result, nil included, is written to the
// store so later reads return the same value. Defaults that reach back
// into a property still being resolved fail with a DEFAULT_CYCLE error.
func (inv *Invocation) Get(name string) (any, error) {
	def, ok := inv.contract.table.Get(name)
	if !ok {
		return nil, ErrUnknownProperty(inv.contract.name, name)
	}
	if inv.store.Has(name) {
		return inv.store.Get(name), nil
	}

	for _, pending := range inv.resolving {
		if pending == name {
			chain := append(append([]string(nil), inv.resolving...), name)
			return nil, ErrDefaultCycle(inv.contract.name, chain)
		}
	}
	inv.resolving = append(inv.resolving, name)
	defer func() {
		inv.resolving = inv.resolving[:len(inv.resolving)-1]
	}()

	value, err := inv.evaluateDefault(def)
	if err != nil {
		return nil, err
	}
	inv.store.Set(name, value)
	return value, nil
}

// Set writes a provided property. Expected and permitted properties are
// read-only from the command's side, and undeclared names are rejected.
func (inv *Invocation) Set(name string, value any) error {
	def, ok := inv.contract.table.Get(name)
	if !ok || def.Presence != Provided {
		return ErrUndeclaredWrite(inv.contract.name, name)
	}
	inv.store.Set(name, value)
	return nil
}

// Fail marks the store failed and returns the matching *Failure so a
// handler or body can `return inv.Fail("reason")`.
func (inv *Invocation) Fail(reason string) error {
	inv.store.Fail(reason)
	return &Failure{Reason: reason}
}

func (inv *Invocation) evaluateDefault(def Definition) (any, error) {
	switch {
	case def.Default.fn != nil:
		return def.Default.fn(inv)
	case def.Default.method != "":
		fn, err := inv.resolveMethod(def.Default.method)
		if err != nil {
			return nil, err
		}
		return fn(inv)
	default:
		return nil, nil
	}
}

// Value reads a property and asserts its type. A nil value yields the zero T.
func Value[T any](inv *Invocation, name string) (T, error) {
	var zero T
	v, err := inv.Get(name)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	typed, ok := v.(T)
	if !ok {
		return zero, oops.Code(CodeTypeMismatch).
			With("contract", inv.contract.name).
			With("property", name).
			Errorf("property '%s' holds %T, not %T", name, v, zero)
	}
	return typed, nil
}
