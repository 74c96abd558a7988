// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package lua_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	glua "github.com/yuin/gopher-lua"

	"github.com/troupe-dev/troupe/internal/lua"
)

func TestStateFactory_SafeLibraries(t *testing.T) {
	L, err := lua.NewStateFactory().NewState(context.Background())
	require.NoError(t, err)
	defer L.Close()

	for _, lib := range []string{"table", "string", "math"} {
		assert.NotEqual(t, glua.LTNil, L.GetGlobal(lib).Type(), "library %q should be loaded", lib)
	}
	for _, lib := range []string{"os", "io", "debug", "package"} {
		assert.Equal(t, glua.LTNil, L.GetGlobal(lib).Type(), "library %q should not be loaded", lib)
	}
}

func TestStateFactory_BlocksUnsafeBaseFunctions(t *testing.T) {
	L, err := lua.NewStateFactory().NewState(context.Background())
	require.NoError(t, err)
	defer L.Close()

	for _, fn := range []string{"dofile", "loadfile", "loadstring", "load", "require"} {
		assert.Equal(t, glua.LTNil, L.GetGlobal(fn).Type(), "%s should be blocked", fn)
	}
	require.NoError(t, L.DoString(`result = string.upper("hi") .. math.floor(2.5)`))
	assert.Equal(t, "HI2", L.GetGlobal("result").String())
}

func TestStateFactory_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	L, err := lua.NewStateFactory().NewState(ctx)
	require.NoError(t, err)
	defer L.Close()

	assert.Error(t, L.DoString(`while true do end`))
}

func TestConvert(t *testing.T) {
	L := glua.NewState()
	defer L.Close()

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"bool", true, true},
		{"string", "x", "x"},
		{"int", 7, 7},
		{"int64", int64(7), 7},
		{"float", 1.25, 1.25},
		{"list", []any{1, "a"}, []any{1, "a"}},
		{"strings", []string{"a", "b"}, []any{"a", "b"}},
		{"map", map[string]any{"k": 2}, map[string]any{"k": 2}},
		{"empty map", map[string]any{}, map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lua.FromLua(lua.ToLua(L, tt.in)))
		})
	}
}

func TestConvert_UserDataRoundTrip(t *testing.T) {
	L := glua.NewState()
	defer L.Close()

	type opaque struct{ n int }
	v := lua.ToLua(L, opaque{n: 3})
	assert.Equal(t, glua.LTUserData, v.Type())
	assert.Equal(t, opaque{n: 3}, lua.FromLua(v))
}
