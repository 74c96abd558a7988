// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/troupe-dev/troupe/pkg/errutil"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantCmd  string
		wantArgs map[string]any
	}{
		{
			name:     "bare command",
			input:    "list",
			wantCmd:  "list",
			wantArgs: map[string]any{},
		},
		{
			name:    "scalar decoding",
			input:   "charge amount=42 rate=1.5 live=true note=null currency=USD",
			wantCmd: "charge",
			wantArgs: map[string]any{
				"amount":   42,
				"rate":     1.5,
				"live":     true,
				"note":     nil,
				"currency": "USD",
			},
		},
		{
			name:     "double quoted value stays a string",
			input:    `charge amount="42" note="hello   world"`,
			wantCmd:  "charge",
			wantArgs: map[string]any{"amount": "42", "note": "hello   world"},
		},
		{
			name:     "single quoted value",
			input:    `charge note='say "hi"'`,
			wantCmd:  "charge",
			wantArgs: map[string]any{"note": `say "hi"`},
		},
		{
			name:     "escaped quote inside double quotes",
			input:    `charge note="a \"b\" c"`,
			wantCmd:  "charge",
			wantArgs: map[string]any{"note": `a "b" c`},
		},
		{
			name:     "empty value",
			input:    "charge note=",
			wantCmd:  "charge",
			wantArgs: map[string]any{"note": ""},
		},
		{
			name:     "value containing equals",
			input:    "charge expr=a=b",
			wantCmd:  "charge",
			wantArgs: map[string]any{"expr": "a=b"},
		},
		{
			name:     "flow sequence",
			input:    "tag items=[a,b]",
			wantCmd:  "tag",
			wantArgs: map[string]any{"items": []any{"a", "b"}},
		},
		{
			name:     "surrounding and tab whitespace",
			input:    "  charge\tamount=1   ",
			wantCmd:  "charge",
			wantArgs: map[string]any{"amount": 1},
		},
		{
			name:     "unicode value",
			input:    "greet name=日本語",
			wantCmd:  "greet",
			wantArgs: map[string]any{"name": "日本語"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCmd, got.Name)
			assert.Equal(t, tt.wantArgs, got.Args)
			assert.Equal(t, tt.input, got.Raw)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  string
	}{
		{"empty", "", CodeEmptyInput},
		{"whitespace only", "  \t ", CodeEmptyInput},
		{"positional argument", "charge 42", CodeInvalidArgs},
		{"missing key", "charge =42", CodeInvalidArgs},
		{"duplicate key", "charge a=1 a=2", CodeInvalidArgs},
		{"unterminated quote", `charge note="oops`, CodeInvalidArgs},
		{"trailing escape", `charge note="oops\`, CodeInvalidArgs},
		{"quoted name", `"charge" a=1`, CodeInvalidArgs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}
