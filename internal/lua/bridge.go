// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package lua

import (
	"log/slog"

	lua "github.com/yuin/gopher-lua"

	"github.com/troupe-dev/troupe/pkg/contract"
)

// ModuleName is the global table scripts use to reach the invocation.
const ModuleName = "troupe"

// bridge binds a state to one invocation. Go errors raised through it are
// kept so the caller receives the original error instead of its Lua string.
type bridge struct {
	script  string
	inv     *contract.Invocation
	logger  *slog.Logger
	err     error
	failure error
}

// install registers the troupe module and exposes declared properties as
// read-only globals. With a nil invocation every accessor raises, which is
// how scripts are loaded for inspection.
func (b *bridge) install(L *lua.LState) {
	mod := L.NewTable()
	L.SetField(mod, "get", L.NewFunction(b.get))
	L.SetField(mod, "set", L.NewFunction(b.set))
	L.SetField(mod, "has", L.NewFunction(b.has))
	L.SetField(mod, "fail", L.NewFunction(b.fail))
	L.SetField(mod, "log", L.NewFunction(b.log))
	L.SetGlobal(ModuleName, mod)

	mt := L.NewTable()
	L.SetField(mt, "__index", L.NewFunction(b.index))
	L.SetMetatable(L.G.Global, mt)
}

func (b *bridge) raise(L *lua.LState, err error) int {
	if b.err == nil {
		b.err = err
	}
	L.RaiseError("%s", err.Error())
	return 0
}

func (b *bridge) unbound(L *lua.LState) int {
	L.RaiseError("%s is not available while loading a script", ModuleName)
	return 0
}

func (b *bridge) get(L *lua.LState) int {
	name := L.CheckString(1)
	if b.inv == nil {
		return b.unbound(L)
	}
	v, err := b.inv.Get(name)
	if err != nil {
		return b.raise(L, err)
	}
	L.Push(ToLua(L, v))
	return 1
}

func (b *bridge) set(L *lua.LState) int {
	name := L.CheckString(1)
	value := L.Get(2)
	if b.inv == nil {
		return b.unbound(L)
	}
	if err := b.inv.Set(name, FromLua(value)); err != nil {
		return b.raise(L, err)
	}
	return 0
}

func (b *bridge) has(L *lua.LState) int {
	name := L.CheckString(1)
	if b.inv == nil {
		return b.unbound(L)
	}
	L.Push(lua.LBool(b.inv.Has(name)))
	return 1
}

// fail marks the run failed and unwinds the script.
func (b *bridge) fail(L *lua.LState) int {
	reason := L.OptString(1, "")
	if b.inv == nil {
		return b.unbound(L)
	}
	b.failure = b.inv.Fail(reason)
	L.RaiseError("%s", reason)
	return 0
}

func (b *bridge) log(L *lua.LState) int {
	level := L.CheckString(1)
	message := L.CheckString(2)

	logger := b.logger.With("script", b.script)
	if b.inv != nil {
		logger = logger.With("invocation_id", b.inv.ID().String())
	}
	switch level {
	case "debug":
		logger.Debug(message)
	case "warn":
		logger.Warn(message)
	case "error":
		logger.Error(message)
	default:
		logger.Info(message)
	}
	return 0
}

// index resolves unknown globals to declared properties, evaluating
// defaults on first read.
func (b *bridge) index(L *lua.LState) int {
	name, ok := L.Get(2).(lua.LString)
	if !ok || b.inv == nil || !b.inv.Contract().Table().Declared(string(name)) {
		L.Push(lua.LNil)
		return 1
	}
	v, err := b.inv.Get(string(name))
	if err != nil {
		return b.raise(L, err)
	}
	L.Push(ToLua(L, v))
	return 1
}
