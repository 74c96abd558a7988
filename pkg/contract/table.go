// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package contract

import "strings"

// Membership is the read side of an execution context the table inspects.
type Membership interface {
	Has(name string) bool
	Members() []string
}

// Table is the ordered set of property definitions of one command type.
// Names appear at most once; re-declaring a name merges options into the
// existing definition and keeps its original position.
//
// A Table is not safe for concurrent mutation. Contracts only mutate their
// table before they are sealed.
type Table struct {
	order []string
	defs  map[string]*Definition
}

// NewTable creates an empty property table.
func NewTable() *Table {
	return &Table{defs: make(map[string]*Definition)}
}

// Declare creates or merges the definition for name.
// It fails without modifying the table when the resulting presence is invalid.
func (t *Table) Declare(name string, opts ...Option) (Definition, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Definition{}, ErrInvalidName(name)
	}

	def := Definition{Name: name}
	existing, exists := t.defs[name]
	if exists {
		def = *existing
	}
	for _, opt := range opts {
		opt(&def)
	}
	if !def.Presence.Valid() {
		return Definition{}, ErrInvalidPresence(string(def.Presence))
	}

	if exists {
		*existing = def
		return def, nil
	}
	if t.defs == nil {
		t.defs = make(map[string]*Definition)
	}
	stored := def
	t.defs[name] = &stored
	t.order = append(t.order, name)
	return def, nil
}

// Get returns a copy of the definition for name.
func (t *Table) Get(name string) (Definition, bool) {
	def, ok := t.defs[name]
	if !ok {
		return Definition{}, false
	}
	return *def, true
}

// Declared reports whether name has a definition.
func (t *Table) Declared(name string) bool {
	_, ok := t.defs[name]
	return ok
}

// Len returns the number of declared properties.
func (t *Table) Len() int {
	return len(t.order)
}

// Expected returns expected property names in declaration order.
func (t *Table) Expected() []string {
	return t.withPresence(Expected)
}

// Permitted returns permitted property names in declaration order.
func (t *Table) Permitted() []string {
	return t.withPresence(Permitted)
}

// Provided returns provided property names in declaration order.
func (t *Table) Provided() []string {
	return t.withPresence(Provided)
}

// ExpectedAndPermitted returns expected names followed by permitted names.
func (t *Table) ExpectedAndPermitted() []string {
	return append(t.Expected(), t.Permitted()...)
}

// All returns every declared name: expected first, then permitted, then provided.
func (t *Table) All() []string {
	return append(t.ExpectedAndPermitted(), t.Provided()...)
}

// MissingExpected returns the expected names that are not members of ctx.
// Membership means key presence; a nil value counts as present.
func (t *Table) MissingExpected(ctx Membership) []string {
	var missing []string
	for _, name := range t.order {
		def := t.defs[name]
		if def.Presence == Expected && !ctx.Has(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// Undeclared returns the members of ctx that are neither expected nor permitted.
// The result is diagnostic; the engine does not enforce it.
func (t *Table) Undeclared(ctx Membership) []string {
	var undeclared []string
	for _, name := range ctx.Members() {
		def, ok := t.defs[name]
		if !ok || def.Presence == Provided {
			undeclared = append(undeclared, name)
		}
	}
	return undeclared
}

// DefaultFor returns the default declared for name, or the zero Default.
func (t *Table) DefaultFor(name string) Default {
	if def, ok := t.defs[name]; ok {
		return def.Default
	}
	return Default{}
}

// OnViolationFor returns the handler scoped to name, or nil.
func (t *Table) OnViolationFor(name string) ViolationHandler {
	if def, ok := t.defs[name]; ok {
		return def.OnViolation
	}
	return nil
}

func (t *Table) withPresence(p Presence) []string {
	names := make([]string, 0, len(t.order))
	for _, name := range t.order {
		if t.defs[name].Presence == p {
			names = append(names, name)
		}
	}
	return names
}
