// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package contract

import (
	"sync/atomic"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Contract is the property contract of one command type.
//
// Declarations are additive and happen at definition time. The first
// Invocation seals the contract; declarations after that are rejected.
// A sealed contract is safe for concurrent use by many invocations.
type Contract struct {
	name        string
	table       *Table
	onViolation ViolationHandler
	allow       []allowPattern
	err         error
	sealed      atomic.Bool
}

type allowPattern struct {
	raw string
	g   glob.Glob
}

// New creates an empty contract for the named command type.
func New(name string) *Contract {
	return &Contract{name: name, table: NewTable()}
}

// Define builds and seals a contract. It returns the first definition error
// raised while fn declared properties.
func Define(name string, fn func(c *Contract)) (*Contract, error) {
	c := New(name)
	if fn != nil {
		fn(c)
	}
	if err := c.Err(); err != nil {
		return nil, err
	}
	c.Seal()
	return c, nil
}

// MustDefine is like Define but panics on a definition error.
// This is intended for package-level contract variables.
func MustDefine(name string, fn func(c *Contract)) *Contract {
	c, err := Define(name, fn)
	if err != nil {
		panic(err)
	}
	return c
}

// Name returns the command type name.
func (c *Contract) Name() string {
	return c.name
}

// Table returns the property table. Callers must not declare through it
// directly; use the Contract methods so sealing is honoured.
func (c *Contract) Table() *Table {
	return c.table
}

// Property declares or merges a property. It is the primitive behind
// Expects, Permits and Provides and returns definition errors immediately.
// Once sealed the contract is left unchanged and usable; the error is
// returned but not recorded.
func (c *Contract) Property(name string, opts ...Option) error {
	if c.sealed.Load() {
		return ErrSealed(c.name, name)
	}
	if _, err := c.table.Declare(name, opts...); err != nil {
		return c.record(oops.With("contract", c.name).Wrap(err))
	}
	return nil
}

// Expects declares properties that must be present before the command runs.
func (c *Contract) Expects(names ...string) *Declaration {
	return c.declare(Expected, names)
}

// Permits declares optional properties.
func (c *Contract) Permits(names ...string) *Declaration {
	return c.declare(Permitted, names)
}

// Provides declares properties the command body writes.
func (c *Contract) Provides(names ...string) *Declaration {
	return c.declare(Provided, names)
}

// OnViolationFor installs h as the handler for each named property.
// Every name must already be declared. It has no effect once sealed.
func (c *Contract) OnViolationFor(h ViolationHandler, names ...string) {
	if c.sealed.Load() {
		return
	}
	for _, name := range names {
		if !c.table.Declared(name) {
			c.record(oops.Code(CodeUnknownProperty).
				With("contract", c.name).
				With("property", name).
				Errorf("cannot attach violation handler to undeclared property '%s'", name))
			continue
		}
		//nolint:errcheck // recorded on the contract
		c.Property(name, WithViolationHandler(h))
	}
}

// OnViolation installs the command-level fallback handler. It has no
// effect once sealed.
func (c *Contract) OnViolation(h ViolationHandler) {
	if c.sealed.Load() {
		return
	}
	c.onViolation = h
}

// ViolationHandler returns the command-level fallback handler, or nil.
func (c *Contract) ViolationHandler() ViolationHandler {
	return c.onViolation
}

// HandlerFor resolves the handler for a violation on property: the
// property-specific handler first, then the command-level handler.
func (c *Contract) HandlerFor(property string) ViolationHandler {
	if h := c.table.OnViolationFor(property); h != nil {
		return h
	}
	return c.onViolation
}

// AllowUndeclared registers glob patterns for context members that the
// command tolerates without declaring them.
func (c *Contract) AllowUndeclared(patterns ...string) error {
	if c.sealed.Load() {
		return ErrSealed(c.name, "allow_undeclared")
	}
	for _, raw := range patterns {
		g, err := glob.Compile(raw)
		if err != nil {
			return c.record(oops.Code(CodeInvalidPattern).
				With("contract", c.name).
				With("pattern", raw).
				Wrapf(err, "invalid undeclared-property pattern %q", raw))
		}
		c.allow = append(c.allow, allowPattern{raw: raw, g: g})
	}
	return nil
}

// AllowedUndeclared returns the registered allow-list patterns.
func (c *Contract) AllowedUndeclared() []string {
	patterns := make([]string, 0, len(c.allow))
	for _, p := range c.allow {
		patterns = append(patterns, p.raw)
	}
	return patterns
}

// Undeclared returns the members of ctx that are neither expected nor
// permitted and match none of the allow-list patterns.
func (c *Contract) Undeclared(ctx Membership) []string {
	var out []string
	for _, name := range c.table.Undeclared(ctx) {
		if !c.allowed(name) {
			out = append(out, name)
		}
	}
	return out
}

func (c *Contract) allowed(name string) bool {
	for _, p := range c.allow {
		if p.g.Match(name) {
			return true
		}
	}
	return false
}

// Err returns the first definition error recorded by a declaration.
func (c *Contract) Err() error {
	return c.err
}

// Seal freezes the contract. Sealing is idempotent.
func (c *Contract) Seal() {
	c.sealed.Store(true)
}

// Sealed reports whether the contract accepts further declarations.
func (c *Contract) Sealed() bool {
	return c.sealed.Load()
}

func (c *Contract) declare(p Presence, names []string) *Declaration {
	d := &Declaration{contract: c}
	for _, name := range names {
		if err := c.Property(name, WithPresence(p)); err != nil {
			continue
		}
		d.names = append(d.names, name)
	}
	return d
}

// record keeps the first definition error. It is only reached before the
// contract is sealed.
func (c *Contract) record(err error) error {
	if c.err == nil {
		c.err = err
	}
	return err
}

// Declaration is returned by Expects, Permits and Provides so options can be
// chained onto the properties just declared.
type Declaration struct {
	contract *Contract
	names    []string
}

// Names returns the property names covered by the declaration.
func (d *Declaration) Names() []string {
	return append([]string(nil), d.names...)
}

// Default sets a thunk default on every covered property.
func (d *Declaration) Default(fn DefaultFunc) *Declaration {
	return d.apply(WithDefault(fn))
}

// DefaultValue sets a constant default on every covered property.
func (d *Declaration) DefaultValue(value any) *Declaration {
	return d.apply(WithDefaultValue(value))
}

// DefaultMethod sets a named-method default on every covered property.
func (d *Declaration) DefaultMethod(name string) *Declaration {
	return d.apply(WithDefaultMethod(name))
}

// OnViolation sets the violation handler on every covered property.
func (d *Declaration) OnViolation(h ViolationHandler) *Declaration {
	return d.apply(WithViolationHandler(h))
}

// Err returns the contract's first definition error.
func (d *Declaration) Err() error {
	return d.contract.Err()
}

func (d *Declaration) apply(opt Option) *Declaration {
	for _, name := range d.names {
		//nolint:errcheck // recorded on the contract
		d.contract.Property(name, opt)
	}
	return d
}
