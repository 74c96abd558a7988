// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package troupe

import (
	"github.com/troupe-dev/troupe/pkg/contract"
	"github.com/troupe-dev/troupe/pkg/interactor"
)

// Result is the outcome of running a command.
type Result struct {
	ctx *interactor.Context
	inv *contract.Invocation
}

// Success reports whether the context was not marked failed.
func (r *Result) Success() bool {
	return r.ctx.Success()
}

// Failure reports whether the context was marked failed.
func (r *Result) Failure() bool {
	return r.ctx.Failed()
}

// Reason returns the failure reason, or "".
func (r *Result) Reason() string {
	return r.ctx.Reason()
}

// Get returns a context value.
func (r *Result) Get(name string) any {
	return r.ctx.Get(name)
}

// Context returns the context the command ran against.
func (r *Result) Context() *interactor.Context {
	return r.ctx
}

// Invocation returns the invocation that ran.
func (r *Result) Invocation() *contract.Invocation {
	return r.inv
}
