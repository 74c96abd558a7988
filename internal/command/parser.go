// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package command

import (
	"strings"
	"unicode"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// ParsedCommand represents a parsed command line.
type ParsedCommand struct {
	Name string         // command name (first whitespace-delimited token)
	Args map[string]any // key=value arguments
	Raw  string         // original input
}

// Parse splits a command line of the form
//
//	name key=value key2="quoted value"
//
// into a name and arguments. Unquoted values are decoded as YAML scalars, so
// 42, 1.5, true and null become int, float64, bool and nil. Quoted values
// stay strings. Inside double quotes a backslash escapes the next rune.
func Parse(input string) (*ParsedCommand, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, ErrEmptyInput()
	}

	tokens, err := tokenize(trimmed)
	if err != nil {
		return nil, err
	}

	name := tokens[0]
	if name.quoted {
		return nil, ErrInvalidArgs(name.text, "command name cannot be quoted")
	}

	parsed := &ParsedCommand{
		Name: name.text,
		Args: make(map[string]any, len(tokens)-1),
		Raw:  input,
	}
	for _, tok := range tokens[1:] {
		key, value, ok := strings.Cut(tok.text, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, ErrInvalidArgs(parsed.Name, "expected key=value, got "+tok.text)
		}
		if _, dup := parsed.Args[key]; dup {
			return nil, ErrInvalidArgs(parsed.Name, "duplicate argument "+key)
		}
		if tok.quoted {
			parsed.Args[key] = value
			continue
		}
		parsed.Args[key] = decodeScalar(value)
	}
	return parsed, nil
}

// decodeScalar decodes value as YAML, falling back to the raw string.
func decodeScalar(value string) any {
	if value == "" {
		return ""
	}
	var out any
	if err := yaml.Unmarshal([]byte(value), &out); err != nil {
		return value
	}
	return out
}

type token struct {
	text   string
	quoted bool
}

// tokenize splits input on unquoted whitespace.
func tokenize(input string) ([]token, error) {
	var (
		tokens  []token
		current strings.Builder
		quote   rune
		quoted  bool
		escaped bool
		started bool
	)

	flush := func() {
		if started {
			tokens = append(tokens, token{text: current.String(), quoted: quoted})
		}
		current.Reset()
		quoted, started = false, false
	}

	for _, r := range input {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case quote != 0:
			switch {
			case r == '\\' && quote == '"':
				escaped = true
			case r == quote:
				quote = 0
			default:
				current.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote, quoted, started = r, true, true
		case unicode.IsSpace(r):
			flush()
		default:
			current.WriteRune(r)
			started = true
		}
	}

	if quote != 0 || escaped {
		return nil, oops.Code(CodeInvalidArgs).
			With("reason", "unterminated quote").
			Errorf("invalid arguments: unterminated quote")
	}
	flush()
	return tokens, nil
}
