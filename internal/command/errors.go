// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"

	"github.com/troupe-dev/troupe/pkg/contract"
)

// Error codes for command dispatch failures.
const (
	CodeUnknownCommand     = "UNKNOWN_COMMAND"
	CodeInvalidArgs        = "INVALID_ARGS"
	CodeInvalidName        = "INVALID_NAME"
	CodeEmptyInput         = "EMPTY_INPUT"
	CodeRateLimited        = "RATE_LIMITED"
	CodeCircularAlias      = "CIRCULAR_ALIAS"
	CodeUndeclaredProperty = "UNDECLARED_PROPERTY"
	CodeInvalidEntry       = "INVALID_ENTRY"
)

var (
	// ErrNilRegistry is returned when a dispatcher is created without a registry.
	ErrNilRegistry = errors.New("registry cannot be nil")

	// ErrNilFactory is returned when an entry is registered without a factory.
	ErrNilFactory = errors.New("command factory cannot be nil")
)

// ErrUnknownCommand creates an error for an unknown command.
func ErrUnknownCommand(cmd string) error {
	return oops.Code(CodeUnknownCommand).
		With("command", cmd).
		Errorf("unknown command: %s", cmd)
}

// ErrInvalidArgs creates an error for input that cannot be parsed.
func ErrInvalidArgs(cmd, reason string) error {
	return oops.Code(CodeInvalidArgs).
		With("command", cmd).
		With("reason", reason).
		Errorf("invalid arguments: %s", reason)
}

// ErrEmptyInput creates an error for a request without a command.
func ErrEmptyInput() error {
	return oops.Code(CodeEmptyInput).Errorf("no command provided")
}

// ErrRateLimited creates an error for rate limiting.
func ErrRateLimited(cooldownMs int64) error {
	return oops.Code(CodeRateLimited).
		With("cooldown_ms", cooldownMs).
		Errorf("Too many commands. Please slow down.")
}

// ErrCircularAlias creates an error for circular alias detection.
func ErrCircularAlias(alias string) error {
	return oops.Code(CodeCircularAlias).
		With("alias", alias).
		Errorf("Alias rejected: circular reference detected (expansion depth exceeded)")
}

// ErrUndeclaredProperty creates an error for input the command's contract
// neither expects nor permits.
func ErrUndeclaredProperty(cmd string, properties []string) error {
	return oops.Code(CodeUndeclaredProperty).
		With("command", cmd).
		With("properties", properties).
		Errorf("command %s does not accept %s", cmd, strings.Join(properties, ", "))
}

// UserMessage extracts a caller-facing message from an error.
func UserMessage(err error) string {
	const fallback = "Something went wrong. Try again."
	if err == nil {
		return fallback
	}

	var v *contract.Violation
	if errors.As(err, &v) {
		return v.Message()
	}
	var f *contract.Failure
	if errors.As(err, &f) {
		return f.Error()
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return fallback
	}

	ctx := oopsErr.Context()
	switch code, _ := any(oopsErr.Code()).(string); code {
	case CodeUnknownCommand:
		return "Unknown command. Try 'list'."
	case CodeInvalidArgs:
		if reason, ok := ctx["reason"].(string); ok && reason != "" {
			return "Invalid arguments: " + reason
		}
		return "Invalid arguments."
	case CodeEmptyInput:
		return "No command provided."
	case CodeRateLimited:
		return "Too many commands. Please slow down."
	case CodeCircularAlias:
		return "Alias rejected: circular reference detected (expansion depth exceeded)"
	case CodeUndeclaredProperty:
		if props, ok := ctx["properties"].([]string); ok && len(props) > 0 {
			return fmt.Sprintf("Unexpected input: %s.", strings.Join(props, ", "))
		}
		return "Unexpected input."
	case contract.CodeUndeclaredWrite, contract.CodeUnknownProperty:
		return oopsErr.Error()
	default:
		return fallback
	}
}
