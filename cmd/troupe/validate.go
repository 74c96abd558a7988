// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/troupe-dev/troupe/internal/lua"
	"github.com/troupe-dev/troupe/internal/manifest"
)

// NewValidateCmd creates the validate subcommand.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [manifest]",
		Short: "Check a manifest without running anything",
		Long: `Validate a manifest against the schema, parse every contract, compile
every script and check the manifest's version requirement.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	path := ""
	if len(args) == 1 {
		path = args[0]
	} else if path, err = requireManifest(cfg); err != nil {
		return err
	}

	m, err := manifest.Load(path)
	if err != nil {
		return err
	}
	if err := m.CheckCompatible(version); err != nil {
		return err
	}
	entries, err := manifest.Build(cmd.Context(), m, manifest.WithRuntime(lua.NewRuntime(lua.WithLogger(logger))))
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d commands, %d aliases\n", path, len(entries), len(m.Aliases))
	return err
}
