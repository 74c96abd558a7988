// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package contract

// Presence classifies when a property must exist in the execution context.
type Presence string

// Valid presence classifications.
const (
	// Expected properties must be present before the command runs.
	Expected Presence = "expected"
	// Permitted properties are optional and may carry a lazy default.
	Permitted Presence = "permitted"
	// Provided properties are written by the command body.
	Provided Presence = "provided"
)

// Valid reports whether p is one of Expected, Permitted or Provided.
func (p Presence) Valid() bool {
	switch p {
	case Expected, Permitted, Provided:
		return true
	default:
		return false
	}
}

func (p Presence) String() string {
	return string(p)
}

// ParsePresence converts a textual classification into a Presence.
// Any value other than "expected", "permitted" or "provided" is a definition error.
func ParsePresence(s string) (Presence, error) {
	p := Presence(s)
	if !p.Valid() {
		return "", ErrInvalidPresence(s)
	}
	return p, nil
}
