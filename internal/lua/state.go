// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

// Package lua runs command scripts and default expressions in sandboxed
// gopher-lua states.
package lua

import (
	"context"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
)

type library struct {
	name string
	fn   lua.LGFunction
}

// safeLibraries lists what a sandboxed state opens. os, io, debug and
// package are never loaded.
func safeLibraries() []library {
	return []library{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	}
}

// unsafeBaseFunctions reach the filesystem or compile arbitrary chunks.
var unsafeBaseFunctions = []string{"dofile", "loadfile", "loadstring", "load", "require"}

// StateFactory creates sandboxed Lua states.
type StateFactory struct {
	libraries []library
}

// NewStateFactory creates a factory opening base, table, string and math.
func NewStateFactory() *StateFactory {
	return &StateFactory{libraries: safeLibraries()}
}

// NewState creates a fresh sandboxed state bound to ctx. Cancelling ctx
// aborts any script running in the state.
func (f *StateFactory) NewState(ctx context.Context) (*lua.LState, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	for _, lib := range f.libraries {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, oops.In("lua").With("library", lib.name).Wrapf(err, "opening library")
		}
	}

	for _, fn := range unsafeBaseFunctions {
		L.SetGlobal(fn, lua.LNil)
	}

	if ctx != nil {
		L.SetContext(ctx)
	}
	return L, nil
}
