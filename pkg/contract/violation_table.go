// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package contract

// ViolationTable maps property names to violations in declaration order.
// The zero value is an empty table.
type ViolationTable struct {
	order  []string
	byName map[string]*Violation
}

func (t *ViolationTable) put(v *Violation) {
	if t.byName == nil {
		t.byName = make(map[string]*Violation)
	}
	if _, exists := t.byName[v.property]; !exists {
		t.order = append(t.order, v.property)
	}
	t.byName[v.property] = v
}

// Len returns the number of violations.
func (t *ViolationTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.order)
}

// Get returns the violation recorded for property.
func (t *ViolationTable) Get(property string) (*Violation, bool) {
	if t == nil {
		return nil, false
	}
	v, ok := t.byName[property]
	return v, ok
}

// Names returns the violated property names in declaration order.
func (t *ViolationTable) Names() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.order...)
}

// All returns the violations in declaration order.
func (t *ViolationTable) All() []*Violation {
	if t == nil {
		return nil
	}
	out := make([]*Violation, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.byName[name])
	}
	return out
}
