// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/troupe-dev/troupe/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the troupe CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "troupe",
		Short: "Troupe - contract-checked command runner",
		Long: `Troupe runs command objects whose contracts declare which context
properties they expect, permit and provide. Commands are declared in a
manifest with optional Lua scripts and run from the CLI or over HTTP.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewDescribeCmd())
	cmd.AddCommand(NewValidateCmd())
	cmd.AddCommand(NewSchemaCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewJournalCmd())

	return cmd
}
