// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

// Package builtin provides the commands every troupe server registers:
// list, describe, alias, unalias and aliases.
package builtin

import (
	"github.com/troupe-dev/troupe/internal/command"
	"github.com/troupe-dev/troupe/internal/store"
	"github.com/troupe-dev/troupe/pkg/troupe"
)

// Source is the Entry.Source of built-in commands.
const Source = "builtin"

// Deps are the services built-in commands act on.
type Deps struct {
	Registry *command.Registry
	Aliases  *command.AliasTable
	// Repo persists alias changes. Nil keeps aliases in memory only.
	Repo store.AliasRepository
}

// RegisterAll registers the built-in commands with deps.Registry. The alias
// commands are skipped when deps.Aliases is nil.
func RegisterAll(deps Deps) error {
	entries := []command.Entry{
		{
			Name:  "list",
			Help:  "List registered commands",
			Usage: "list [source=<source>]",
			New:   func() troupe.Command { return &listCommand{registry: deps.Registry} },
		},
		{
			Name:  "describe",
			Help:  "Describe a command's contract",
			Usage: "describe name=<command>",
			New:   func() troupe.Command { return &describeCommand{registry: deps.Registry} },
		},
	}
	if deps.Aliases != nil {
		entries = append(entries,
			command.Entry{
				Name:  "alias",
				Help:  "Define an alias",
				Usage: `alias alias=<name> line="<command> [key=value...]" [global=true]`,
				New: func() troupe.Command {
					return &aliasCommand{registry: deps.Registry, aliases: deps.Aliases, repo: deps.Repo}
				},
			},
			command.Entry{
				Name:  "unalias",
				Help:  "Remove an alias",
				Usage: "unalias alias=<name> [global=true]",
				New:   func() troupe.Command { return &unaliasCommand{aliases: deps.Aliases, repo: deps.Repo} },
			},
			command.Entry{
				Name:  "aliases",
				Help:  "List the aliases visible to the caller",
				Usage: "aliases",
				New:   func() troupe.Command { return &aliasesCommand{aliases: deps.Aliases} },
			},
		)
	}

	for _, e := range entries {
		e.Source = Source
		if err := deps.Registry.Register(e); err != nil {
			return err
		}
	}
	return nil
}
