// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package command

import (
	"maps"
	"strings"
	"sync"
)

// MaxExpansionDepth is the maximum depth for alias expansion to prevent infinite loops.
const MaxExpansionDepth = 10

// AliasTable maps alias names to command lines. An alias expands to a
// command name optionally followed by key=value arguments, which act as
// defaults for the request. Caller aliases shadow global ones.
// It is safe for concurrent use.
type AliasTable struct {
	callerAliases map[string]map[string]string // caller → alias → line
	globalAliases map[string]string            // alias → line
	mu            sync.RWMutex
}

// NewAliasTable creates an empty alias table.
func NewAliasTable() *AliasTable {
	return &AliasTable{
		callerAliases: make(map[string]map[string]string),
		globalAliases: make(map[string]string),
	}
}

// LoadGlobal bulk loads global aliases without cycle checks. It is meant
// for startup from a validated manifest.
func (t *AliasTable) LoadGlobal(aliases map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	maps.Copy(t.globalAliases, aliases)
}

// SetGlobal adds or updates a global alias.
// It fails if the alias name is invalid or would create a circular reference.
func (t *AliasTable) SetGlobal(alias, line string) error {
	return t.set("", alias, line)
}

// SetForCaller adds or updates an alias visible only to caller.
func (t *AliasTable) SetForCaller(caller, alias, line string) error {
	return t.set(caller, alias, line)
}

func (t *AliasTable) set(caller, alias, line string) error {
	if err := ValidateAliasName(alias); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	target := t.globalAliases
	if caller != "" {
		if t.callerAliases[caller] == nil {
			t.callerAliases[caller] = make(map[string]string)
		}
		target = t.callerAliases[caller]
	}

	old, existed := target[alias]
	target[alias] = strings.TrimSpace(line)

	if t.isCircularLocked(caller, alias) {
		if existed {
			target[alias] = old
		} else {
			delete(target, alias)
		}
		return ErrCircularAlias(alias)
	}
	return nil
}

// RemoveGlobal removes a global alias.
func (t *AliasTable) RemoveGlobal(alias string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.globalAliases, alias)
}

// RemoveForCaller removes a caller alias.
func (t *AliasTable) RemoveForCaller(caller, alias string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.callerAliases[caller], alias)
}

// ClearCaller removes all aliases of caller.
func (t *AliasTable) ClearCaller(caller string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.callerAliases, caller)
}

// Global returns a copy of the global aliases.
func (t *AliasTable) Global() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return maps.Clone(t.globalAliases)
}

// ForCaller returns a copy of the aliases of caller.
func (t *AliasTable) ForCaller(caller string) map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return maps.Clone(t.callerAliases[caller])
}

// Lookup returns the line of alias as seen by caller: caller aliases first,
// then global ones. An empty caller sees only global aliases.
func (t *AliasTable) Lookup(caller, alias string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.lookupLocked(caller, alias)
}

// AliasResult contains the result of alias resolution.
type AliasResult struct {
	Resolved  string // the resolved command line
	WasAlias  bool   // whether an alias was expanded
	AliasUsed string // the alias that was matched (empty if no alias)
}

// Resolve expands the first word of input through the alias table.
// Resolution order:
//  1. a registered command name is returned unchanged
//  2. caller aliases
//  3. global aliases
//
// Arguments from each expansion step come before the arguments that
// followed the alias in input.
func (t *AliasTable) Resolve(caller, input string, registry *Registry) AliasResult {
	first, args := splitFirstWord(input)
	if first == "" {
		return AliasResult{Resolved: input}
	}

	if registry != nil {
		if _, ok := registry.Get(first); ok {
			return AliasResult{Resolved: input}
		}
	}

	t.mu.RLock()
	resolved, expanded := t.resolveWithDepth(caller, first, 0)
	t.mu.RUnlock()

	if !expanded {
		return AliasResult{Resolved: input}
	}
	if args != "" {
		resolved += " " + args
	}
	return AliasResult{Resolved: resolved, WasAlias: true, AliasUsed: first}
}

// lookupLocked finds the line for name. Must be called with the lock held.
func (t *AliasTable) lookupLocked(caller, name string) (string, bool) {
	if caller != "" {
		if line, ok := t.callerAliases[caller][name]; ok {
			return line, true
		}
	}
	line, ok := t.globalAliases[name]
	return line, ok
}

// resolveWithDepth performs alias resolution with depth tracking.
// Must be called with at least RLock held.
func (t *AliasTable) resolveWithDepth(caller, name string, depth int) (string, bool) {
	if depth >= MaxExpansionDepth {
		return name, depth > 0
	}

	line, ok := t.lookupLocked(caller, name)
	if !ok {
		return name, depth > 0
	}

	first, args := splitFirstWord(line)
	if first == "" {
		return line, true
	}
	further, _ := t.resolveWithDepth(caller, first, depth+1)
	if args != "" {
		return further + " " + args, true
	}
	return further, true
}

// isCircularLocked reports whether following alias leads back to a name
// already on the chain or exceeds MaxExpansionDepth.
// Must be called with Lock held.
func (t *AliasTable) isCircularLocked(caller, alias string) bool {
	seen := map[string]bool{alias: true}
	name := alias
	for depth := 0; depth < MaxExpansionDepth; depth++ {
		line, ok := t.lookupLocked(caller, name)
		if !ok {
			return false
		}
		next, _ := splitFirstWord(line)
		if next == "" {
			return false
		}
		if seen[next] {
			return true
		}
		seen[next] = true
		name = next
	}
	return true
}

// splitFirstWord splits input into the first word and remaining args.
func splitFirstWord(input string) (first, rest string) {
	input = strings.TrimLeft(input, " \t")
	if input == "" {
		return "", ""
	}

	idx := strings.IndexAny(input, " \t")
	if idx == -1 {
		return input, ""
	}

	return input[:idx], strings.TrimLeft(input[idx+1:], " \t")
}
