// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package contract

// DefaultFunc computes a default value for a property. It runs with the
// invocation that requested the value, so it can read other properties.
type DefaultFunc func(inv *Invocation) (any, error)

// ViolationHandler intercepts a contract violation instead of letting it
// propagate. Returning an error aborts the run with that error; calling
// inv.Fail marks the run failed.
type ViolationHandler func(inv *Invocation, v *Violation) error

// Default describes how a missing property is computed. The zero value means
// the property has no default and resolves to nil.
type Default struct {
	fn     DefaultFunc
	method string
}

// DefaultOf wraps a thunk as a default.
func DefaultOf(fn DefaultFunc) Default {
	return Default{fn: fn}
}

// DefaultValue wraps a constant as a default.
func DefaultValue(value any) Default {
	return Default{fn: func(*Invocation) (any, error) { return value, nil }}
}

// DefaultMethod refers to a method resolved on the command instance at
// evaluation time.
func DefaultMethod(name string) Default {
	return Default{method: name}
}

// IsZero reports whether no default was declared.
func (d Default) IsZero() bool {
	return d.fn == nil && d.method == ""
}

// Func returns the thunk, or nil for method and absent defaults.
func (d Default) Func() DefaultFunc {
	return d.fn
}

// Method returns the method name, or "" for thunk and absent defaults.
func (d Default) Method() string {
	return d.method
}

// Definition is one declared property.
type Definition struct {
	Name        string
	Presence    Presence
	Default     Default
	OnViolation ViolationHandler
}

// Option overlays a setting onto a Definition. Options applied to an
// existing definition merge with what was declared before.
type Option func(*Definition)

// WithPresence sets the presence classification.
func WithPresence(p Presence) Option {
	return func(d *Definition) {
		d.Presence = p
	}
}

// WithDefault sets a thunk default.
func WithDefault(fn DefaultFunc) Option {
	return func(d *Definition) {
		d.Default = DefaultOf(fn)
	}
}

// WithDefaultValue sets a constant default.
func WithDefaultValue(value any) Option {
	return func(d *Definition) {
		d.Default = DefaultValue(value)
	}
}

// WithDefaultMethod sets a named-method default.
func WithDefaultMethod(name string) Option {
	return func(d *Definition) {
		d.Default = DefaultMethod(name)
	}
}

// WithViolationHandler sets the handler scoped to this property.
func WithViolationHandler(h ViolationHandler) Option {
	return func(d *Definition) {
		d.OnViolation = h
	}
}
