// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/troupe-dev/troupe/internal/command"
	"github.com/troupe-dev/troupe/internal/command/builtin"
	"github.com/troupe-dev/troupe/internal/config"
	"github.com/troupe-dev/troupe/internal/journal"
	"github.com/troupe-dev/troupe/internal/logging"
	"github.com/troupe-dev/troupe/internal/lua"
	"github.com/troupe-dev/troupe/internal/manifest"
	"github.com/troupe-dev/troupe/internal/store"
	"github.com/troupe-dev/troupe/internal/xdg"
)

// Journal backend labels.
const (
	backendMemory   = "memory"
	backendPostgres = "postgres"
)

// app is the wired runtime shared by the subcommands that dispatch.
type app struct {
	cfg        config.Config
	logger     *slog.Logger
	manifest   *manifest.Manifest
	registry   *command.Registry
	aliases    *command.AliasTable
	journal    journal.Journal
	backend    string
	limiter    *command.RateLimiter
	dispatcher *command.Dispatcher
	pool       *pgxpool.Pool
}

// appOptions tune newApp for the serving subcommand.
type appOptions struct {
	// registerer receives dispatcher and rate limiter collectors.
	registerer prometheus.Registerer
	// appends counts journal appends when set.
	appends *prometheus.CounterVec
}

// loadConfig resolves configuration from --config, the command's flags and
// the environment, and installs the resulting logger as the default.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := logging.New(cfg.LoggingOptions("troupe", version), cmd.ErrOrStderr())
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// newApp loads configuration and the manifest and wires the dispatcher.
// The caller must Close the returned app.
func newApp(cmd *cobra.Command, opts appOptions) (*app, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: command.NewRegistry(),
		aliases:  command.NewAliasTable(),
	}
	if err := a.wire(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// wire opens the journal, installs commands and aliases and builds the
// dispatcher. Resources acquired before a failure are left on a for Close.
func (a *app) wire(ctx context.Context, opts appOptions) error {
	cfg := a.cfg

	var repo store.AliasRepository
	if cfg.DatabaseURL != "" {
		pool, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		a.pool = pool
		a.journal = store.NewPostgresJournal(pool)
		a.backend = backendPostgres
		repo = store.NewPostgresAliasRepository(pool)
	} else {
		a.journal = journal.NewMemory(cfg.JournalSize)
		a.backend = backendMemory
	}
	a.journal = journal.Instrument(a.journal, a.backend, opts.appends)

	if err := builtin.RegisterAll(builtin.Deps{Registry: a.registry, Aliases: a.aliases, Repo: repo}); err != nil {
		return err
	}

	if err := a.installManifest(ctx); err != nil {
		return err
	}

	if repo != nil {
		globals, err := repo.GlobalAliases(ctx)
		if err != nil {
			return err
		}
		a.aliases.LoadGlobal(globals)
	}

	dispatchOpts := []command.DispatcherOption{
		command.WithAliases(a.aliases),
		command.WithJournal(a.journal),
		command.WithUndeclaredPolicy(command.UndeclaredPolicy(cfg.Undeclared)),
		command.WithLogger(a.logger),
	}
	if cfg.RateBurst > 0 {
		rlCfg := command.RateLimiterConfig{BurstCapacity: cfg.RateBurst, SustainedRate: cfg.RatePerSecond}
		if opts.registerer != nil {
			a.limiter = command.NewRateLimiterWithRegistry(rlCfg, opts.registerer)
		} else {
			a.limiter = command.NewRateLimiter(rlCfg)
		}
		dispatchOpts = append(dispatchOpts, command.WithRateLimiter(a.limiter))
	}

	dispatcher, err := command.NewDispatcher(a.registry, dispatchOpts...)
	if err != nil {
		return err
	}
	a.dispatcher = dispatcher
	return nil
}

// installManifest registers the manifest's commands and aliases. A missing
// manifest leaves only the built-in commands.
func (a *app) installManifest(ctx context.Context) error {
	path, err := manifestPath(a.cfg)
	if err != nil {
		return err
	}
	if path == "" {
		a.logger.Info("no manifest found, serving built-in commands only")
		return nil
	}

	m, err := manifest.Load(path)
	if err != nil {
		return err
	}
	if err := m.CheckCompatible(version); err != nil {
		return err
	}

	rt := lua.NewRuntime(lua.WithLogger(a.logger))
	if err := manifest.Install(ctx, m, a.registry, a.aliases, manifest.WithRuntime(rt)); err != nil {
		return err
	}
	a.manifest = m
	a.logger.Info("manifest installed", "path", path, "commands", len(m.Commands))
	return nil
}

// Close releases the rate limiter and the database pool. It is safe on a
// nil or partially wired app.
func (a *app) Close() {
	if a == nil {
		return
	}
	if a.limiter != nil {
		a.limiter.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// manifestPath returns the configured manifest, or the one xdg.FindManifest
// discovers from the working directory.
func manifestPath(cfg config.Config) (string, error) {
	if cfg.Manifest != "" {
		return cfg.Manifest, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", oops.Code("MANIFEST_LOOKUP_FAILED").Wrap(err)
	}
	return xdg.FindManifest(wd)
}

// requireManifest is manifestPath for subcommands that cannot run without a
// manifest.
func requireManifest(cfg config.Config) (string, error) {
	path, err := manifestPath(cfg)
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", oops.Code("MANIFEST_NOT_FOUND").
			With("searched", []string{xdg.ManifestFileName, filepath.Join(xdg.ConfigDir(), xdg.ManifestFileName)}).
			Errorf("no manifest found; pass --manifest")
	}
	return path, nil
}
