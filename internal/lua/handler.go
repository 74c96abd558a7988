// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package lua

import (
	"github.com/samber/oops"

	"github.com/troupe-dev/troupe/pkg/contract"
)

// ViolationHandler returns a handler that calls the script function fn of
// the running command as fn(property, message). The function may call
// troupe.fail; returning normally accepts the violation.
func ViolationHandler(fn string) contract.ViolationHandler {
	return func(inv *contract.Invocation, v *contract.Violation) error {
		cmd, ok := inv.Command().(*Command)
		if !ok || !cmd.script.Defines(fn) {
			return oops.Code(CodeNoFunction).
				With("contract", inv.Contract().Name()).
				With("function", fn).
				Errorf("violation handler %s is not defined by the command script", fn)
		}
		_, err := cmd.rt.exec(inv.Context(), cmd.script.name, cmd.script.proto, inv, fn, v.Property(), v.Message())
		return err
	}
}
