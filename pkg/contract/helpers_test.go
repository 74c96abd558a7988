// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package contract_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/troupe-dev/troupe/pkg/contract"
	"github.com/troupe-dev/troupe/pkg/interactor"
)

// recorder is a command that counts rollback notifications.
type recorder struct {
	rollbacks int
}

func (r *recorder) Rollback(_ context.Context, _ *contract.Invocation) error {
	r.rollbacks++
	return nil
}

func newInvocation(t *testing.T, c *contract.Contract, cmd any, input map[string]any) (*contract.Invocation, *interactor.Context) {
	t.Helper()
	ctx := interactor.NewContext(input)
	inv, err := contract.NewInvocation(c, cmd, ctx)
	require.NoError(t, err)
	return inv, ctx
}

func noop(context.Context) error { return nil }
