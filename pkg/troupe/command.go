// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package troupe

import (
	"context"

	"github.com/troupe-dev/troupe/pkg/contract"
	"github.com/troupe-dev/troupe/pkg/interactor"
)

// Command is a unit of work guarded by a contract.
type Command interface {
	Contract() *contract.Contract
	Call(ctx context.Context, inv *contract.Invocation) error
}

// Rollbacker is implemented by commands that undo their work when a run they
// took part in fails.
type Rollbacker = contract.Rollbacker

// HookProvider is implemented by commands that wrap their body in hooks.
type HookProvider interface {
	Hooks() *interactor.Hooks
}

// CallFunc is the body of a command built with NewCommand.
type CallFunc func(ctx context.Context, inv *contract.Invocation) error

type funcCommand struct {
	contract *contract.Contract
	call     CallFunc
	hooks    *interactor.Hooks
}

// NewCommand builds a Command from a contract and a body. A nil body does
// nothing.
func NewCommand(c *contract.Contract, fn CallFunc) Command {
	return &funcCommand{contract: c, call: fn}
}

// NewCommandWithHooks is like NewCommand with hooks around the body.
func NewCommandWithHooks(c *contract.Contract, hooks *interactor.Hooks, fn CallFunc) Command {
	return &funcCommand{contract: c, call: fn, hooks: hooks}
}

func (f *funcCommand) Contract() *contract.Contract { return f.contract }

func (f *funcCommand) Hooks() *interactor.Hooks { return f.hooks }

func (f *funcCommand) Call(ctx context.Context, inv *contract.Invocation) error {
	if f.call == nil {
		return nil
	}
	return f.call(ctx, inv)
}
