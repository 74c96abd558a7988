// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/troupe-dev/troupe/internal/config"
	"github.com/troupe-dev/troupe/internal/store"
)

// NewMigrateCmd creates the migrate subcommand and its children.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage journal database migrations",
		Long: `Apply all pending migrations to the PostgreSQL database named by
--database-url or TROUPE_DATABASE_URL.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m *store.Migrator) error {
				cmd.Println("Running migrations...")
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations completed successfully")
				return nil
			})
		},
	}

	cmd.AddCommand(newMigrateStatusCmd())
	cmd.AddCommand(newMigrateDownCmd())
	cmd.AddCommand(newMigrateForceCmd())

	return cmd
}

func newMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the applied version and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m *store.Migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				pending, err := m.PendingMigrations()
				if err != nil {
					return err
				}

				status := "clean"
				if dirty {
					status = "dirty"
				}
				cmd.Printf("Version: %d (%s)\n", version, status)
				if len(pending) == 0 {
					cmd.Println("No pending migrations")
					return nil
				}
				cmd.Println("Pending:")
				for _, v := range pending {
					name, err := store.MigrationName(v)
					if err != nil {
						return err
					}
					cmd.Printf("  %s\n", name)
				}
				return nil
			})
		},
	}
}

func newMigrateDownCmd() *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Revert migrations",
		Long:  `Revert the last --steps migrations, or every migration when --steps is 0.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps < 0 {
				return oops.Code("INVALID_ARGS").Errorf("--steps must not be negative, got %d", steps)
			}
			return withMigrator(cmd, func(m *store.Migrator) error {
				if steps == 0 {
					return m.Down()
				}
				return m.Steps(-steps)
			})
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to revert (0 reverts all)")

	return cmd
}

func newMigrateForceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force <version>",
		Short: "Mark a version as applied after a failed migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, func(m *store.Migrator) error {
				if err := m.Force(version); err != nil {
					return err
				}
				cmd.Printf("Forced version %d\n", version)
				return nil
			})
		},
	}
}

// withMigrator opens a migrator on the configured database, runs fn and
// closes it.
func withMigrator(cmd *cobra.Command, fn func(*store.Migrator) error) (err error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	url, err := databaseURL(cfg)
	if err != nil {
		return err
	}

	m, err := store.NewMigrator(url)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(m)
}

// databaseURL returns the configured database URL or a CONFIG_INVALID error.
func databaseURL(cfg config.Config) (string, error) {
	if cfg.DatabaseURL == "" {
		return "", oops.Code("CONFIG_INVALID").
			With("field", "database-url").
			Errorf("database-url is required (flag --database-url or %sDATABASE_URL)", config.EnvPrefix)
	}
	return cfg.DatabaseURL, nil
}

// parseForceVersion parses the version argument of migrate force.
func parseForceVersion(s string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrapf(err, "version must be an integer")
	}
	return version, nil
}
