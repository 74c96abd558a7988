// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package troupe

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/troupe-dev/troupe/pkg/contract"
	"github.com/troupe-dev/troupe/pkg/interactor"
)

// ErrNilCommand is returned when a nil command is run.
var ErrNilCommand = errors.New("command cannot be nil")

type options struct {
	logger *slog.Logger
	id     ulid.ULID
}

// Option configures a run.
type Option func(*options)

// WithLogger sets the logger used for lifecycle debug output and rollback
// errors.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithInvocationID sets the ID of the invocation Invoke creates.
func WithInvocationID(id ulid.ULID) Option {
	return func(o *options) {
		o.id = id
	}
}

func newOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Invoke runs cmd against an existing store. The returned invocation is nil
// only when it could not be created.
func Invoke(ctx context.Context, cmd Command, store contract.Store, opts ...Option) (*contract.Invocation, error) {
	if cmd == nil {
		return nil, ErrNilCommand
	}
	o := newOptions(opts)

	c := cmd.Contract()
	invOpts := []contract.InvocationOption{contract.WithLogger(o.logger)}
	if o.id.Compare(ulid.ULID{}) != 0 {
		invOpts = append(invOpts, contract.WithID(o.id))
	}
	inv, err := contract.NewInvocation(c, cmd, store, invOpts...)
	if err != nil {
		return nil, err
	}

	var hooks contract.HookRunner
	if hp, ok := cmd.(HookProvider); ok {
		if h := hp.Hooks(); h != nil {
			hooks = h
		}
	}

	o.logger.DebugContext(ctx, "invoking command",
		"contract", c.Name(),
		"invocation_id", inv.ID().String(),
	)
	err = inv.Run(ctx, hooks, func(ctx context.Context) error {
		return cmd.Call(ctx, inv)
	})
	return inv, err
}

// CallStrict runs cmd against a new context seeded with input. Failures are
// returned as *contract.Failure alongside the failed Result. The Result is
// nil only when the invocation could not be created.
func CallStrict(ctx context.Context, cmd Command, input map[string]any, opts ...Option) (*Result, error) {
	o := newOptions(opts)
	store := interactor.NewContext(input).WithLogger(o.logger)

	inv, err := Invoke(ctx, cmd, store, opts...)
	if inv == nil {
		return nil, err
	}

	var f *contract.Failure
	if errors.As(err, &f) && !store.Failed() {
		store.Fail(f.Reason)
	}
	return &Result{ctx: store, inv: inv}, err
}

// Call runs cmd against a new context seeded with input. A failure signalled
// through the context yields a failed Result and a nil error; violations and
// every other error are returned.
func Call(ctx context.Context, cmd Command, input map[string]any, opts ...Option) (*Result, error) {
	res, err := CallStrict(ctx, cmd, input, opts...)
	if errors.Is(err, contract.ErrCommandFailed) {
		return res, nil
	}
	return res, err
}
