// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package contract

import (
	"context"
	"fmt"

	"github.com/samber/oops"
)

// Outcome is the result of resolving a violation table. Handled lists the
// violations a handler accepted; Unresolved is the first violation without
// a handler, after which resolution stopped.
type Outcome struct {
	Handled    []*Violation
	Unresolved *Violation
}

// Err converts an unresolved violation into the error that aborts the run.
func (o Outcome) Err() error {
	if o.Unresolved != nil {
		return o.Unresolved
	}
	return nil
}

// DetectViolations builds a violation for every expected property missing
// from the store.
func (inv *Invocation) DetectViolations() *ViolationTable {
	missing := inv.contract.table.MissingExpected(inv.store)
	table := &ViolationTable{}
	for _, name := range missing {
		table.put(NewViolation(inv.command, name, MissingPropertyMessage(name)))
	}
	return table
}

// Resolve routes each violation in declaration order to its handler: the
// property handler, else the command-level handler. A violation with no
// handler stops resolution and is reported in Outcome.Unresolved. A handler
// error, or a handler that marks the store failed, stops resolution and is
// returned as the error.
func (inv *Invocation) Resolve(table *ViolationTable) (Outcome, error) {
	var out Outcome
	for _, v := range table.All() {
		h := inv.contract.HandlerFor(v.property)
		if h == nil {
			out.Unresolved = v
			return out, nil
		}
		if err := h(inv, v); err != nil {
			return out, err
		}
		out.Handled = append(out.Handled, v)
		if err := inv.failure(); err != nil {
			return out, err
		}
		inv.logger.Debug("contract violation handled",
			"contract", inv.contract.name,
			"invocation_id", inv.id.String(),
			"property", v.property,
		)
	}
	return out, nil
}

// ForceDefaults reads every declared property, expected then permitted then
// provided, so lazy defaults are materialized exactly once even when the
// body never touched them.
func (inv *Invocation) ForceDefaults() error {
	for _, name := range inv.contract.table.All() {
		if _, err := inv.Get(name); err != nil {
			return err
		}
	}
	return nil
}

// Recheck resolves the violation table captured before the body ran a
// second time. It is not recomputed from the current store, so handlers run
// again with the original violation objects and violations introduced by
// the body are not detected.
func (inv *Invocation) Recheck() error {
	out, err := inv.Resolve(inv.violations)
	if err != nil {
		return err
	}
	return out.Err()
}

// Run executes the full lifecycle: validation, the body wrapped by hooks,
// default materialization and the recheck. Any error, including a failure
// signalled through the store, triggers the store's rollback notification
// before it is returned. A panic is re-raised after rollback.
func (inv *Invocation) Run(ctx context.Context, hooks HookRunner, body Body) (err error) {
	if inv.state != StateCreated {
		return oops.Code(CodeInvocationReused).
			With("contract", inv.contract.name).
			With("invocation_id", inv.id.String()).
			With("state", inv.state.String()).
			Errorf("invocation already run")
	}
	inv.ctx = ctx

	defer func() {
		if r := recover(); r != nil {
			inv.abort(ctx, fmt.Errorf("panic: %v", r))
			panic(r)
		}
		if err != nil {
			inv.abort(ctx, err)
		}
	}()

	inv.state = StateValidating
	if err = inv.validate(); err != nil {
		return err
	}

	inv.state = StateExecuting
	if hooks == nil {
		err = body(ctx)
	} else {
		err = hooks.RunWithHooks(ctx, inv, body)
	}
	if err != nil {
		return err
	}
	if err = inv.failure(); err != nil {
		return err
	}

	inv.state = StateFinalizing
	if err = inv.ForceDefaults(); err != nil {
		return err
	}
	if err = inv.Recheck(); err != nil {
		return err
	}
	if err = inv.failure(); err != nil {
		return err
	}

	inv.store.Succeed()
	inv.state = StateSucceeded
	return nil
}

func (inv *Invocation) validate() error {
	inv.violations = inv.DetectViolations()
	if inv.violations.Len() == 0 {
		return nil
	}
	out, err := inv.Resolve(inv.violations)
	if err != nil {
		return err
	}
	return out.Err()
}

func (inv *Invocation) failure() error {
	if inv.store.Failed() {
		return &Failure{Reason: inv.store.Reason()}
	}
	return nil
}

func (inv *Invocation) abort(ctx context.Context, cause error) {
	inv.state = StateFailed
	inv.logger.DebugContext(ctx, "rolling back invocation",
		"contract", inv.contract.name,
		"invocation_id", inv.id.String(),
		"error", cause,
	)
	inv.store.Rollback(ctx)
	inv.state = StateRolledBack
}
