// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package troupe

import (
	"context"

	"github.com/troupe-dev/troupe/pkg/contract"
)

// Organizer runs commands in sequence against one shared context. The first
// failing step stops the chain; the context rollback then notifies every
// step that ran, most recent first.
//
// Each step enforces its own contract. The organizer's contract declares
// nothing.
type Organizer struct {
	contract *contract.Contract
	steps    []Command
	opts     []Option
}

// Compile-time interface check.
var _ Command = (*Organizer)(nil)

// Organize builds an organizer named name.
func Organize(name string, steps ...Command) *Organizer {
	c := contract.New(name)
	c.Seal()
	return &Organizer{contract: c, steps: steps}
}

// WithOptions sets the options used for every step.
func (o *Organizer) WithOptions(opts ...Option) *Organizer {
	o.opts = append(o.opts, opts...)
	return o
}

// Steps returns the organized commands in run order.
func (o *Organizer) Steps() []Command {
	return append([]Command(nil), o.steps...)
}

// Contract returns the organizer's empty contract.
func (o *Organizer) Contract() *contract.Contract {
	return o.contract
}

// Call runs each step against the organizer's store.
func (o *Organizer) Call(ctx context.Context, inv *contract.Invocation) error {
	for _, step := range o.steps {
		if _, err := Invoke(ctx, step, inv.Store(), o.opts...); err != nil {
			return err
		}
	}
	return nil
}
