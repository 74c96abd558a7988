// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package lua

import (
	"math"
	"sort"

	lua "github.com/yuin/gopher-lua"
)

// ToLua converts a Go value into a Lua value. Maps with string keys and
// slices become tables; values with no Lua counterpart travel as userdata
// and come back unchanged through FromLua.
func ToLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return val
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case int:
		return lua.LNumber(val)
	case int8:
		return lua.LNumber(val)
	case int16:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint:
		return lua.LNumber(val)
	case uint8:
		return lua.LNumber(val)
	case uint16:
		return lua.LNumber(val)
	case uint32:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case []any:
		t := L.CreateTable(len(val), 0)
		for _, item := range val {
			t.Append(ToLua(L, item))
		}
		return t
	case []string:
		t := L.CreateTable(len(val), 0)
		for _, item := range val {
			t.Append(lua.LString(item))
		}
		return t
	case map[string]any:
		t := L.CreateTable(0, len(val))
		for k, item := range val {
			t.RawSetString(k, ToLua(L, item))
		}
		return t
	default:
		ud := L.NewUserData()
		ud.Value = v
		return ud
	}
}

// FromLua converts a Lua value into a Go value. Integral numbers become
// int, other numbers float64. A table whose keys are exactly 1..n becomes
// []any; any other table becomes map[string]any keyed by the string form
// of each key. Functions convert to nil.
func FromLua(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LString:
		return string(val)
	case lua.LNumber:
		f := float64(val)
		if f == math.Trunc(f) && math.Abs(f) <= 1<<53 {
			return int(f)
		}
		return f
	case *lua.LTable:
		return tableToGo(val)
	case *lua.LUserData:
		return val.Value
	default:
		return nil
	}
}

func tableToGo(t *lua.LTable) any {
	n := t.MaxN()
	count := 0
	t.ForEach(func(lua.LValue, lua.LValue) { count++ })

	if n > 0 && n == count {
		list := make([]any, 0, n)
		for i := 1; i <= n; i++ {
			list = append(list, FromLua(t.RawGetInt(i)))
		}
		return list
	}

	m := make(map[string]any, count)
	t.ForEach(func(k, v lua.LValue) {
		m[k.String()] = FromLua(v)
	})
	return m
}

// globalNames returns the sorted names of the global functions in L.
func globalNames(L *lua.LState) []string {
	var names []string
	L.G.Global.ForEach(func(k, v lua.LValue) {
		if _, ok := v.(*lua.LFunction); !ok {
			return
		}
		if name, ok := k.(lua.LString); ok {
			names = append(names, string(name))
		}
	})
	sort.Strings(names)
	return names
}
