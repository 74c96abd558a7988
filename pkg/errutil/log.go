// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package errutil

import (
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"github.com/troupe-dev/troupe/pkg/contract"
)

// Code returns the error code carried by err. Violations and failures map to
// their contract codes; oops errors report their own code; anything else
// yields "".
func Code(err error) string {
	var v *contract.Violation
	if errors.As(err, &v) {
		return contract.CodeContractViolation
	}
	var f *contract.Failure
	if errors.As(err, &f) {
		return contract.CodeCommandFailed
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		if code, ok := any(oopsErr.Code()).(string); ok {
			return code
		}
	}
	return ""
}

// LogError logs an error with structured context.
// Violations log the offending property, failures log their reason, and
// oops errors log their code and context. Other errors log the error string.
func LogError(logger *slog.Logger, msg string, err error) {
	var v *contract.Violation
	var f *contract.Failure
	switch {
	case errors.As(err, &v):
		logger.Error(msg,
			"error", v.Message(),
			"code", contract.CodeContractViolation,
			"property", v.Property(),
		)
	case errors.As(err, &f):
		logger.Error(msg,
			"error", f.Error(),
			"code", contract.CodeCommandFailed,
			"reason", f.Reason,
		)
	default:
		if oopsErr, ok := oops.AsOops(err); ok {
			attrs := []any{"error", oopsErr.Error()}
			if code := Code(err); code != "" {
				attrs = append(attrs, "code", code)
			}
			if ctx := oopsErr.Context(); len(ctx) > 0 {
				attrs = append(attrs, "context", ctx)
			}
			logger.Error(msg, attrs...)
			return
		}
		logger.Error(msg, "error", err)
	}
}
