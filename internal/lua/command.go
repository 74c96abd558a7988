// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package lua

import (
	"context"

	"github.com/troupe-dev/troupe/pkg/contract"
	"github.com/troupe-dev/troupe/pkg/interactor"
	"github.com/troupe-dev/troupe/pkg/troupe"
)

// Compile-time interface checks.
var (
	_ troupe.Command          = (*Command)(nil)
	_ troupe.Rollbacker       = (*Command)(nil)
	_ troupe.HookProvider     = (*Command)(nil)
	_ contract.MethodResolver = (*Command)(nil)
)

// Command is a troupe.Command whose body is a Lua script. The script's
// call function is the body; rollback, before and after are used when
// defined, and every other global function can back a named-method default.
// Each entry point runs in a fresh state, so scripts share data only
// through the execution context.
type Command struct {
	rt       *Runtime
	contract *contract.Contract
	script   *Script
	hooks    *interactor.Hooks
}

// NewCommand binds a compiled script to a contract.
func (r *Runtime) NewCommand(c *contract.Contract, s *Script) *Command {
	cmd := &Command{rt: r, contract: c, script: s}

	if s.Defines(FuncBefore) || s.Defines(FuncAfter) {
		cmd.hooks = interactor.NewHooks()
		if s.Defines(FuncBefore) {
			cmd.hooks.Before(cmd.entry(FuncBefore))
		}
		if s.Defines(FuncAfter) {
			cmd.hooks.After(cmd.entry(FuncAfter))
		}
	}
	return cmd
}

// Contract returns the command's contract.
func (c *Command) Contract() *contract.Contract {
	return c.contract
}

// Script returns the compiled script.
func (c *Command) Script() *Script {
	return c.script
}

// Call runs the script's call function.
func (c *Command) Call(ctx context.Context, inv *contract.Invocation) error {
	_, err := c.rt.exec(ctx, c.script.name, c.script.proto, inv, FuncCall)
	return err
}

// Rollback runs the script's rollback function when it defines one.
func (c *Command) Rollback(ctx context.Context, inv *contract.Invocation) error {
	if !c.script.Defines(FuncRollback) {
		return nil
	}
	_, err := c.rt.exec(ctx, c.script.name, c.script.proto, inv, FuncRollback)
	return err
}

// Hooks returns before and after hooks backed by the script, or nil.
func (c *Command) Hooks() *interactor.Hooks {
	return c.hooks
}

// ResolveMethod resolves a named-method default to a script function. The
// function's first return value is the default.
func (c *Command) ResolveMethod(name string) (contract.DefaultFunc, bool) {
	if !c.script.Defines(name) {
		return nil, false
	}
	return func(inv *contract.Invocation) (any, error) {
		return c.rt.exec(inv.Context(), c.script.name, c.script.proto, inv, name)
	}, true
}

func (c *Command) entry(fn string) interactor.HookFunc {
	return func(ctx context.Context, inv *contract.Invocation) error {
		_, err := c.rt.exec(ctx, c.script.name, c.script.proto, inv, fn)
		return err
	}
}
