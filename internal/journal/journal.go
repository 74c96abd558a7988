// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

// Package journal records the outcome of every dispatched command.
package journal

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Outcome classifies how a dispatch ended.
type Outcome string

// Outcomes.
const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeError   Outcome = "error"
)

// Error codes.
const (
	CodeDuplicateRecord = "DUPLICATE_RECORD"
	CodeAppendFailed    = "JOURNAL_APPEND_FAILED"
	CodeListFailed      = "JOURNAL_LIST_FAILED"
	CodeInvalidRecord   = "INVALID_RECORD"
)

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 100

// Record is one journal entry. ID is the invocation ID.
type Record struct {
	ID         ulid.ULID     `json:"id" yaml:"id"`
	Command    string        `json:"command" yaml:"command"`
	Caller     string        `json:"caller,omitempty" yaml:"caller,omitempty"`
	Outcome    Outcome       `json:"outcome" yaml:"outcome"`
	Reason     string        `json:"reason,omitempty" yaml:"reason,omitempty"`
	Violations []string      `json:"violations,omitempty" yaml:"violations,omitempty"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
}

// Validate checks the fields every backend requires.
func (r Record) Validate() error {
	if r.ID.Compare(ulid.ULID{}) == 0 {
		return oops.Code(CodeInvalidRecord).Errorf("record id is required")
	}
	if r.Command == "" {
		return oops.Code(CodeInvalidRecord).With("id", r.ID.String()).Errorf("record command is required")
	}
	switch r.Outcome {
	case OutcomeSuccess, OutcomeFailure, OutcomeError:
	default:
		return oops.Code(CodeInvalidRecord).
			With("id", r.ID.String()).
			Errorf("invalid outcome %q", r.Outcome)
	}
	return nil
}

// Journal stores dispatch records.
type Journal interface {
	// Append stores r. Appending an ID twice fails with DUPLICATE_RECORD.
	Append(ctx context.Context, r Record) error
	// List returns up to limit records, newest first. An empty command
	// matches every command; a non-positive limit uses DefaultListLimit.
	List(ctx context.Context, command string, limit int) ([]Record, error)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
