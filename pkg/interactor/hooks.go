// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package interactor

import (
	"context"

	"github.com/troupe-dev/troupe/pkg/contract"
)

// Compile-time interface check.
var _ contract.HookRunner = (*Hooks)(nil)

// HookFunc runs before or after a command body.
type HookFunc func(ctx context.Context, inv *contract.Invocation) error

// AroundFunc wraps a command body. It must call next to run the body.
type AroundFunc func(ctx context.Context, inv *contract.Invocation, next contract.Body) error

// Hooks composes before, around and after stages.
//
// Around hooks wrap everything, the first registered outermost. Inside them
// before hooks run in registration order, then the body, then after hooks in
// reverse registration order.
type Hooks struct {
	before []HookFunc
	around []AroundFunc
	after  []HookFunc
}

// NewHooks creates an empty hook set.
func NewHooks() *Hooks {
	return &Hooks{}
}

// Before registers hooks that run ahead of the body.
func (h *Hooks) Before(fns ...HookFunc) *Hooks {
	h.before = append(h.before, fns...)
	return h
}

// Around registers hooks that wrap the body.
func (h *Hooks) Around(fns ...AroundFunc) *Hooks {
	h.around = append(h.around, fns...)
	return h
}

// After registers hooks that run once the body returned without error.
func (h *Hooks) After(fns ...HookFunc) *Hooks {
	h.after = append(h.after, fns...)
	return h
}

// RunWithHooks runs body inside the registered stages. The first error from
// any stage stops the chain and is returned unmodified. A nil *Hooks runs
// body directly.
func (h *Hooks) RunWithHooks(ctx context.Context, inv *contract.Invocation, body contract.Body) error {
	if h == nil {
		return body(ctx)
	}

	chain := func(ctx context.Context) error {
		for _, fn := range h.before {
			if err := fn(ctx, inv); err != nil {
				return err
			}
		}
		if err := body(ctx); err != nil {
			return err
		}
		for i := len(h.after) - 1; i >= 0; i-- {
			if err := h.after[i](ctx, inv); err != nil {
				return err
			}
		}
		return nil
	}

	for i := len(h.around) - 1; i >= 0; i-- {
		around, next := h.around[i], chain
		chain = func(ctx context.Context) error {
			return around(ctx, inv, next)
		}
	}
	return chain(ctx)
}
