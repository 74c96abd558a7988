// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package lua

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/troupe-dev/troupe/pkg/contract"
)

// Error codes for script failures.
const (
	CodeSyntax        = "LUA_SYNTAX_ERROR"
	CodeMissingCall   = "LUA_MISSING_CALL"
	CodeScriptError   = "LUA_SCRIPT_ERROR"
	CodeScriptTimeout = "LUA_TIMEOUT"
	CodeNoFunction    = "LUA_NO_FUNCTION"
)

// Entry points a command script may define.
const (
	FuncCall     = "call"
	FuncRollback = "rollback"
	FuncBefore   = "before"
	FuncAfter    = "after"
)

// DefaultTimeout bounds a single script entry point.
const DefaultTimeout = 5 * time.Second

// Runtime compiles scripts and runs them in fresh sandboxed states.
type Runtime struct {
	factory *StateFactory
	logger  *slog.Logger
	timeout time.Duration
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger behind troupe.log.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithTimeout bounds each script entry point. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(r *Runtime) {
		r.timeout = d
	}
}

// NewRuntime creates a runtime.
func NewRuntime(opts ...Option) *Runtime {
	r := &Runtime{
		factory: NewStateFactory(),
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Script is compiled Lua source with the global functions it defines.
type Script struct {
	name      string
	proto     *lua.FunctionProto
	functions []string
}

// Name returns the chunk name the script was compiled under.
func (s *Script) Name() string {
	return s.name
}

// Functions returns the sorted names of the global functions the script
// defines.
func (s *Script) Functions() []string {
	return slices.Clone(s.functions)
}

// Defines reports whether the script defines the global function name.
func (s *Script) Defines(name string) bool {
	_, found := slices.BinarySearch(s.functions, name)
	return found
}

// Compile parses code and loads it once in a throwaway state to learn which
// functions it defines. A command script must define call.
func (r *Runtime) Compile(ctx context.Context, name, code string) (*Script, error) {
	proto, err := compile(name, code)
	if err != nil {
		return nil, err
	}

	L, err := r.factory.NewState(ctx)
	if err != nil {
		return nil, err
	}
	defer L.Close()

	before := globalNames(L)
	b := &bridge{script: name, logger: r.logger}
	b.install(L)
	L.Push(L.NewFunctionFromProto(proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		return nil, oops.Code(CodeScriptError).
			With("script", name).
			Wrapf(err, "loading script")
	}

	var defined []string
	for _, fn := range globalNames(L) {
		if _, builtin := slices.BinarySearch(before, fn); !builtin {
			defined = append(defined, fn)
		}
	}

	s := &Script{name: name, proto: proto, functions: defined}
	if !s.Defines(FuncCall) {
		return nil, oops.Code(CodeMissingCall).
			With("script", name).
			Errorf("script must define a %s function", FuncCall)
	}
	return s, nil
}

// DefaultFunc compiles code as the body of a default: a chunk returning the
// value. Declared properties are readable as globals.
func (r *Runtime) DefaultFunc(name, code string) (contract.DefaultFunc, error) {
	proto, err := compile(name, code)
	if err != nil {
		return nil, err
	}
	return func(inv *contract.Invocation) (any, error) {
		return r.exec(inv.Context(), name, proto, inv, "")
	}, nil
}

func compile(name, code string) (*lua.FunctionProto, error) {
	chunk, err := parse.Parse(strings.NewReader(code), name)
	if err != nil {
		return nil, oops.Code(CodeSyntax).
			With("script", name).
			Wrapf(err, "parsing script")
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, oops.Code(CodeSyntax).
			With("script", name).
			Wrapf(err, "compiling script")
	}
	return proto, nil
}

// exec loads proto in a fresh state bound to inv. With fn empty the chunk's
// first return value is the result; otherwise the chunk is loaded and the
// global function fn is called with args.
func (r *Runtime) exec(ctx context.Context, name string, proto *lua.FunctionProto, inv *contract.Invocation, fn string, args ...any) (any, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	L, err := r.factory.NewState(ctx)
	if err != nil {
		return nil, err
	}
	defer L.Close()

	b := &bridge{script: name, inv: inv, logger: r.logger}
	b.install(L)

	nret := 0
	if fn == "" {
		nret = 1
	}
	L.Push(L.NewFunctionFromProto(proto))
	if err := L.PCall(0, nret, nil); err != nil {
		return nil, b.translate(ctx, err, fn)
	}
	if fn != "" {
		f, ok := L.G.Global.RawGetString(fn).(*lua.LFunction)
		if !ok {
			return nil, oops.Code(CodeNoFunction).
				With("script", name).
				With("function", fn).
				Errorf("script does not define %s", fn)
		}
		L.Push(f)
		for _, arg := range args {
			L.Push(ToLua(L, arg))
		}
		if err := L.PCall(len(args), 1, nil); err != nil {
			return nil, b.translate(ctx, err, fn)
		}
	}

	ret := L.Get(-1)
	L.Pop(1)
	return FromLua(ret), nil
}

// translate recovers the Go error behind a Lua error where there is one.
func (b *bridge) translate(ctx context.Context, err error, fn string) error {
	switch {
	case b.failure != nil:
		return b.failure
	case b.err != nil:
		return b.err
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return oops.Code(CodeScriptTimeout).
			With("script", b.script).
			With("function", fn).
			Wrapf(err, "script timed out")
	default:
		return oops.Code(CodeScriptError).
			With("script", b.script).
			With("function", fn).
			Wrap(err)
	}
}
