// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package contract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Error codes for contract failures.
const (
	CodeInvalidPresence   = "INVALID_PRESENCE"
	CodeInvalidName       = "INVALID_PROPERTY_NAME"
	CodeInvalidPattern    = "INVALID_PATTERN"
	CodeContractSealed    = "CONTRACT_SEALED"
	CodeUnknownProperty   = "UNKNOWN_PROPERTY"
	CodeUndeclaredWrite   = "UNDECLARED_WRITE"
	CodeDefaultCycle      = "DEFAULT_CYCLE"
	CodeUnknownMethod     = "UNKNOWN_METHOD"
	CodeTypeMismatch      = "TYPE_MISMATCH"
	CodeInvocationReused  = "INVOCATION_REUSED"
	CodeContractViolation = "CONTRACT_VIOLATION"
	CodeCommandFailed     = "COMMAND_FAILED"
)

var (
	// ErrContractViolation matches every *Violation through errors.Is.
	ErrContractViolation = errors.New("contract violation")

	// ErrCommandFailed matches every *Failure through errors.Is.
	ErrCommandFailed = errors.New("command failed")

	// ErrNilContract is returned when an invocation is created without a contract.
	ErrNilContract = errors.New("contract cannot be nil")

	// ErrNilStore is returned when an invocation is created without a store.
	ErrNilStore = errors.New("store cannot be nil")
)

// ErrInvalidPresence creates a definition error for an unknown presence value.
func ErrInvalidPresence(value string) error {
	return oops.Code(CodeInvalidPresence).
		With("presence", value).
		Errorf("Invalid value '%s' for option presence", value)
}

// ErrInvalidName creates a definition error for an empty property name.
func ErrInvalidName(name string) error {
	return oops.Code(CodeInvalidName).
		With("property", name).
		Errorf("property name cannot be empty")
}

// ErrSealed creates a definition error for a declaration made after the
// contract was sealed.
func ErrSealed(contractName, property string) error {
	return oops.Code(CodeContractSealed).
		With("contract", contractName).
		With("property", property).
		Errorf("contract %s is sealed; cannot declare property '%s'", contractName, property)
}

// ErrUnknownProperty creates an error for reading a property the contract does not declare.
func ErrUnknownProperty(contractName, property string) error {
	return oops.Code(CodeUnknownProperty).
		With("contract", contractName).
		With("property", property).
		Errorf("no such readable property '%s'", property)
}

// ErrUndeclaredWrite creates an error for writing a property that is not declared as provided.
func ErrUndeclaredWrite(contractName, property string) error {
	return oops.Code(CodeUndeclaredWrite).
		With("contract", contractName).
		With("property", property).
		Errorf("no such writable property '%s'", property)
}

// ErrDefaultCycle creates an error for defaults that reference each other.
func ErrDefaultCycle(contractName string, chain []string) error {
	return oops.Code(CodeDefaultCycle).
		With("contract", contractName).
		With("chain", chain).
		Errorf("default cycle detected: %s", strings.Join(chain, " -> "))
}

// ErrUnknownMethod creates an error for a named-method default the command cannot dispatch.
func ErrUnknownMethod(contractName, method string, command any) error {
	return oops.Code(CodeUnknownMethod).
		With("contract", contractName).
		With("method", method).
		With("command_type", fmt.Sprintf("%T", command)).
		Errorf("command %T has no default method %q", command, method)
}

// Violation reports a property that breaks a command's contract.
// It is immutable once constructed.
type Violation struct {
	command  any
	property string
	message  string
}

// NewViolation creates a violation for property raised by command.
// An empty message falls back to a generic description.
func NewViolation(command any, property, message string) *Violation {
	return &Violation{command: command, property: property, message: message}
}

// MissingPropertyMessage returns the message used for a missing expected property.
func MissingPropertyMessage(property string) string {
	return fmt.Sprintf("Expected context to include property '%s'.", property)
}

// Command returns the command instance that owns the violated contract.
func (v *Violation) Command() any {
	return v.command
}

// Property returns the offending property name.
func (v *Violation) Property() string {
	return v.property
}

// Message returns the human-readable description.
func (v *Violation) Message() string {
	if v.message != "" {
		return v.message
	}
	return fmt.Sprintf("Property '%s' violated the command's contract.", v.property)
}

func (v *Violation) Error() string {
	return v.Message()
}

// Is makes errors.Is(err, ErrContractViolation) true for violations.
func (v *Violation) Is(target error) bool {
	return target == ErrContractViolation
}

// Failure is returned when the execution context was marked failed.
// It carries the reason supplied to Invocation.Fail or Store.Fail.
type Failure struct {
	Reason string
}

func (f *Failure) Error() string {
	if f.Reason == "" {
		return ErrCommandFailed.Error()
	}
	return f.Reason
}

// Is makes errors.Is(err, ErrCommandFailed) true for failures.
func (f *Failure) Is(target error) bool {
	return target == ErrCommandFailed
}
