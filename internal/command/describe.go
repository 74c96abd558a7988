// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package command

import (
	"github.com/troupe-dev/troupe/pkg/contract"
)

// PropertyDescription summarizes one declared property.
type PropertyDescription struct {
	Name          string `json:"name" yaml:"name"`
	Presence      string `json:"presence" yaml:"presence"`
	HasDefault    bool   `json:"has_default,omitempty" yaml:"has_default,omitempty"`
	DefaultMethod string `json:"default_method,omitempty" yaml:"default_method,omitempty"`
	HasHandler    bool   `json:"has_handler,omitempty" yaml:"has_handler,omitempty"`
}

// Description is the caller-facing summary of a registered command.
type Description struct {
	Name            string                `json:"name" yaml:"name"`
	Source          string                `json:"source,omitempty" yaml:"source,omitempty"`
	Help            string                `json:"help,omitempty" yaml:"help,omitempty"`
	Usage           string                `json:"usage,omitempty" yaml:"usage,omitempty"`
	Properties      []PropertyDescription `json:"properties" yaml:"properties"`
	HasHandler      bool                  `json:"has_handler,omitempty" yaml:"has_handler,omitempty"`
	AllowUndeclared []string              `json:"allow_undeclared,omitempty" yaml:"allow_undeclared,omitempty"`
}

// Describe builds a Description of entry by instantiating its command.
// Properties are listed expected first, then permitted, then provided.
func Describe(entry Entry) Description {
	d := Description{
		Name:       entry.Name,
		Source:     entry.Source,
		Help:       entry.Help,
		Usage:      entry.Usage,
		Properties: []PropertyDescription{},
	}
	if entry.New == nil {
		return d
	}
	cmd := entry.New()
	if cmd == nil || cmd.Contract() == nil {
		return d
	}

	c := cmd.Contract()
	d.HasHandler = c.ViolationHandler() != nil
	d.AllowUndeclared = c.AllowedUndeclared()

	table := c.Table()
	for _, name := range table.All() {
		def, _ := table.Get(name)
		d.Properties = append(d.Properties, PropertyDescription{
			Name:          def.Name,
			Presence:      def.Presence.String(),
			HasDefault:    !def.Default.IsZero(),
			DefaultMethod: def.Default.Method(),
			HasHandler:    def.OnViolation != nil,
		})
	}
	return d
}

// DescribeAll describes every registered command in name order.
func (r *Registry) DescribeAll() []Description {
	entries := r.All()
	out := make([]Description, 0, len(entries))
	for _, e := range entries {
		out = append(out, Describe(e))
	}
	return out
}

// Properties returns the names declared with presence p by the entry's
// contract.
func Properties(entry Entry, p contract.Presence) []string {
	var names []string
	for _, prop := range Describe(entry).Properties {
		if prop.Presence == p.String() {
			names = append(names, prop.Name)
		}
	}
	return names
}
