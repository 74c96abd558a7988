// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package command

import (
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/samber/oops"
)

// Registry manages command registration and lookup.
// It is thread-safe for concurrent access.
type Registry struct {
	commands map[string]Entry
	mu       sync.RWMutex
}

// NewRegistry creates a new command registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]Entry),
	}
}

// Register adds a command to the registry.
// If a command with the same name exists, it is overwritten and a warning
// is logged: the last registration wins.
func (r *Registry) Register(entry Entry) error {
	entry.Name = strings.TrimSpace(entry.Name)
	if err := ValidateCommandName(entry.Name); err != nil {
		return err
	}
	if entry.New == nil {
		return oops.Code(CodeInvalidEntry).With("command", entry.Name).Wrap(ErrNilFactory)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.commands[entry.Name]; ok {
		slog.Warn("command conflict: overwriting existing command",
			"command", entry.Name,
			"previous_source", existing.Source,
			"new_source", entry.Source)
	}

	r.commands[entry.Name] = entry
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(entry Entry) {
	if err := r.Register(entry); err != nil {
		panic(err)
	}
}

// Get retrieves a command by name.
func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.commands[name]
	return entry, ok
}

// All returns all registered commands sorted by name.
// The returned slice is a copy and safe to modify.
func (r *Registry) All() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, 0, len(r.commands))
	for _, e := range r.commands {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(a.Name, b.Name)
	})
	return entries
}

// Names returns the registered command names in sorted order.
func (r *Registry) Names() []string {
	entries := r.All()
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

// Len returns the number of registered commands.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.commands)
}
