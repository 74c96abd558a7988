// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package main

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/troupe-dev/troupe/internal/manifest"
	"github.com/troupe-dev/troupe/internal/xdg"
)

// NewSchemaCmd creates the schema subcommand.
func NewSchemaCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the manifest JSON Schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := manifest.GenerateSchema()
			if err != nil {
				return err
			}
			if outPath == "" {
				_, err = cmd.OutOrStdout().Write(append(schema, '\n'))
				return err
			}
			if err := xdg.EnsureDir(filepath.Dir(outPath)); err != nil {
				return err
			}
			if err := os.WriteFile(outPath, schema, 0o600); err != nil {
				return oops.Code("SCHEMA_WRITE_FAILED").With("path", outPath).Wrap(err)
			}
			cmd.Printf("Generated %s\n", outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write the schema to a file instead of stdout")

	return cmd
}
