// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package contract

import "reflect"

var (
	invocationType = reflect.TypeOf((*Invocation)(nil))
	errorType      = reflect.TypeOf((*error)(nil)).Elem()
)

// resolveMethod finds the default method called name on command.
// A MethodResolver wins; otherwise an exported method is looked up by
// reflection. Accepted shapes take no argument or *Invocation and return a
// value, optionally followed by an error.
func (inv *Invocation) resolveMethod(name string) (DefaultFunc, error) {
	if r, ok := inv.command.(MethodResolver); ok {
		if fn, ok := r.ResolveMethod(name); ok && fn != nil {
			return fn, nil
		}
	}
	if inv.command == nil {
		return nil, ErrUnknownMethod(inv.contract.name, name, inv.command)
	}

	m := reflect.ValueOf(inv.command).MethodByName(name)
	if !m.IsValid() {
		return nil, ErrUnknownMethod(inv.contract.name, name, inv.command)
	}

	mt := m.Type()
	switch {
	case mt.NumIn() == 1 && mt.In(0) == invocationType:
	case mt.NumIn() == 0:
	default:
		return nil, ErrUnknownMethod(inv.contract.name, name, inv.command)
	}
	switch {
	case mt.NumOut() == 1:
	case mt.NumOut() == 2 && mt.Out(1) == errorType:
	default:
		return nil, ErrUnknownMethod(inv.contract.name, name, inv.command)
	}

	return func(inv *Invocation) (any, error) {
		var args []reflect.Value
		if mt.NumIn() == 1 {
			args = []reflect.Value{reflect.ValueOf(inv)}
		}
		out := m.Call(args)
		if len(out) == 2 && !out[1].IsNil() {
			return nil, out[1].Interface().(error)
		}
		return out[0].Interface(), nil
	}, nil
}
