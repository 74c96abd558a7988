// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package journal

import (
	"context"
	"slices"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultMemorySize is the capacity used when NewMemory gets a
// non-positive size.
const DefaultMemorySize = 1000

// Memory is a fixed-size in-process journal. When full, the oldest record
// is evicted. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	records []Record
	next    int
	full    bool
	ids     map[ulid.ULID]struct{}
}

// NewMemory creates a journal holding at most size records.
func NewMemory(size int) *Memory {
	if size <= 0 {
		size = DefaultMemorySize
	}
	return &Memory{
		records: make([]Record, size),
		ids:     make(map[ulid.ULID]struct{}, size),
	}
}

// Append implements Journal.
func (m *Memory) Append(_ context.Context, r Record) error {
	if err := r.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.ids[r.ID]; dup {
		return oops.Code(CodeDuplicateRecord).With("id", r.ID.String()).Errorf("record already journaled")
	}
	if m.full {
		delete(m.ids, m.records[m.next].ID)
	}

	r.Violations = slices.Clone(r.Violations)
	m.records[m.next] = r
	m.ids[r.ID] = struct{}{}
	m.next = (m.next + 1) % len(m.records)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

// List implements Journal.
func (m *Memory) List(_ context.Context, command string, limit int) ([]Record, error) {
	limit = normalizeLimit(limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	n := m.next
	if m.full {
		n = len(m.records)
	}

	out := make([]Record, 0, min(n, limit))
	for i := 1; i <= n && len(out) < limit; i++ {
		r := m.records[(m.next-i+len(m.records))%len(m.records)]
		if command != "" && r.Command != command {
			continue
		}
		r.Violations = slices.Clone(r.Violations)
		out = append(out, r)
	}
	return out, nil
}

// Len returns the number of records held.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.full {
		return len(m.records)
	}
	return m.next
}
