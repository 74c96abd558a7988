// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package command

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/troupe-dev/troupe/pkg/errutil"
)

func TestAliasTable_LoadGlobal(t *testing.T) {
	table := NewAliasTable()
	aliases := map[string]string{
		"pay":    "charge",
		"refund": "charge amount=-1",
	}
	table.LoadGlobal(aliases)

	for alias, line := range aliases {
		res := table.Resolve("", alias, nil)
		assert.Equal(t, line, res.Resolved)
		assert.True(t, res.WasAlias)
		assert.Equal(t, alias, res.AliasUsed)
	}
	assert.Equal(t, aliases, table.Global())
}

func TestAliasTable_CallerAliasesAreScoped(t *testing.T) {
	table := NewAliasTable()
	require.NoError(t, table.SetForCaller("alice", "pay", "charge currency=EUR"))

	res := table.Resolve("alice", "pay", nil)
	assert.Equal(t, "charge currency=EUR", res.Resolved)

	res = table.Resolve("bob", "pay", nil)
	assert.Equal(t, "pay", res.Resolved)
	assert.False(t, res.WasAlias)
}

func TestAliasTable_CallerShadowsGlobal(t *testing.T) {
	table := NewAliasTable()
	require.NoError(t, table.SetGlobal("pay", "charge currency=USD"))
	require.NoError(t, table.SetForCaller("alice", "pay", "charge currency=EUR"))

	assert.Equal(t, "charge currency=EUR", table.Resolve("alice", "pay", nil).Resolved)
	assert.Equal(t, "charge currency=USD", table.Resolve("bob", "pay", nil).Resolved)
}

func TestAliasTable_Update(t *testing.T) {
	table := NewAliasTable()
	require.NoError(t, table.SetGlobal("pay", "charge"))
	require.NoError(t, table.SetGlobal("pay", "transfer"))
	assert.Equal(t, "transfer", table.Resolve("", "pay", nil).Resolved)
}

func TestAliasTable_Remove(t *testing.T) {
	table := NewAliasTable()
	require.NoError(t, table.SetGlobal("pay", "charge"))
	require.NoError(t, table.SetForCaller("alice", "r", "refund"))

	table.RemoveGlobal("pay")
	table.RemoveForCaller("alice", "r")
	table.RemoveForCaller("nobody", "r")

	assert.False(t, table.Resolve("", "pay", nil).WasAlias)
	assert.False(t, table.Resolve("alice", "r", nil).WasAlias)
}

func TestAliasTable_ClearCaller(t *testing.T) {
	table := NewAliasTable()
	require.NoError(t, table.SetForCaller("alice", "pay", "charge"))
	table.ClearCaller("alice")
	table.ClearCaller("nobody")

	assert.False(t, table.Resolve("alice", "pay", nil).WasAlias)
}

func TestAliasTable_RegisteredCommandWins(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(testEntry("charge", nil)))

	table := NewAliasTable()
	table.LoadGlobal(map[string]string{"charge": "refund"})

	res := table.Resolve("", "charge amount=1", reg)
	assert.Equal(t, "charge amount=1", res.Resolved)
	assert.False(t, res.WasAlias)
}

func TestAliasTable_ChainedExpansionOrdersArgs(t *testing.T) {
	table := NewAliasTable()
	require.NoError(t, table.SetGlobal("charge-eur", "charge currency=EUR"))
	require.NoError(t, table.SetGlobal("tip", "charge-eur note=tip"))

	res := table.Resolve("", "tip amount=5", nil)
	assert.Equal(t, "charge currency=EUR note=tip amount=5", res.Resolved)
	assert.Equal(t, "tip", res.AliasUsed)
}

func TestAliasTable_NoMatch(t *testing.T) {
	table := NewAliasTable()
	for _, input := range []string{"unknown a=1", "", "   "} {
		res := table.Resolve("", input, nil)
		assert.Equal(t, input, res.Resolved)
		assert.False(t, res.WasAlias)
	}
}

func TestAliasTable_CircularRejected(t *testing.T) {
	tests := []struct {
		name   string
		setup  map[string]string
		alias  string
		target string
	}{
		{"self reference", nil, "a", "a"},
		{"two step", map[string]string{"a": "b"}, "b", "a x=1"},
		{"three step", map[string]string{"a": "b", "b": "c"}, "c", "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := NewAliasTable()
			table.LoadGlobal(tt.setup)

			err := table.SetGlobal(tt.alias, tt.target)
			errutil.AssertErrorCode(t, err, CodeCircularAlias)

			_, kept := table.Global()[tt.alias]
			assert.Equal(t, tt.setup[tt.alias] != "", kept, "rejected alias must not be stored")
		})
	}
}

func TestAliasTable_CircularRejectedRestoresPrevious(t *testing.T) {
	table := NewAliasTable()
	require.NoError(t, table.SetGlobal("a", "b"))
	require.NoError(t, table.SetGlobal("b", "charge"))

	err := table.SetGlobal("b", "a")
	errutil.AssertErrorCode(t, err, CodeCircularAlias)
	assert.Equal(t, "charge", table.Global()["b"])
}

func TestAliasTable_DepthLimit(t *testing.T) {
	table := NewAliasTable()
	chain := make(map[string]string)
	for i := 0; i < MaxExpansionDepth+2; i++ {
		chain[fmt.Sprintf("a%d", i)] = fmt.Sprintf("a%d", i+1)
	}
	table.LoadGlobal(chain)

	res := table.Resolve("", "a0", nil)
	assert.True(t, res.WasAlias)
	assert.Equal(t, fmt.Sprintf("a%d", MaxExpansionDepth), res.Resolved)
}

func TestAliasTable_InvalidName(t *testing.T) {
	table := NewAliasTable()
	err := table.SetGlobal("1pay", "charge")
	errutil.AssertErrorCode(t, err, CodeInvalidName)
}

func TestAliasTable_ConcurrentAccess(t *testing.T) {
	table := NewAliasTable()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = table.SetForCaller(fmt.Sprintf("c%d", i), "pay", "charge")
		}(i)
		go func(i int) {
			defer wg.Done()
			_ = table.Resolve(fmt.Sprintf("c%d", i), "pay amount=1", nil)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, "charge amount=1", table.Resolve("c3", "pay amount=1", nil).Resolved)
}
