// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package errutil

import (
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/troupe-dev/troupe/pkg/contract"
)

// AssertErrorCode asserts that err is an oops error with the given code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, code, Code(oopsErr))
}

// AssertErrorContext asserts that err is an oops error with the given context key/value.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	ctx := oopsErr.Context()
	assert.Contains(t, ctx, key)
	assert.Equal(t, value, ctx[key])
}

// AssertViolation asserts that err is a contract violation on property.
func AssertViolation(t *testing.T, err error, property string) *contract.Violation {
	t.Helper()
	var v *contract.Violation
	require.True(t, errors.As(err, &v), "expected *contract.Violation, got %T: %v", err, err)
	assert.Equal(t, property, v.Property())
	return v
}

// AssertFailure asserts that err is a command failure with the given reason.
func AssertFailure(t *testing.T, err error, reason string) {
	t.Helper()
	var f *contract.Failure
	require.True(t, errors.As(err, &f), "expected *contract.Failure, got %T: %v", err, err)
	assert.Equal(t, reason, f.Reason)
}
