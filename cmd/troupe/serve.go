// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/troupe-dev/troupe/internal/command"
	"github.com/troupe-dev/troupe/internal/observability"
	"github.com/troupe-dev/troupe/internal/server"
)

// shutdownTimeout bounds graceful shutdown of both servers.
const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the command API over HTTP",
		Long: `Serve the manifest's commands over HTTP, with Prometheus metrics and
health probes on the metrics address. Stops on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cmd.SetContext(ctx)

	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var (
		obsServer *observability.Server
		ping      func(context.Context) error
	)
	opts := appOptions{}
	if cfg.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.MetricsAddr,
			observability.WithLogger(slog.Default()),
			observability.WithReadiness(func(ctx context.Context) error {
				if ping == nil {
					return nil
				}
				return ping(ctx)
			}))
		command.RegisterMetrics(obsServer.Registry())
		opts.registerer = obsServer.Registry()
		opts.appends = obsServer.Metrics().JournalAppends
	}

	a, err := newApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.pool != nil {
		ping = a.pool.Ping
	}

	serverOpts := []server.Option{
		server.WithJournal(a.journal),
		server.WithLogger(a.logger),
	}
	if obsServer != nil {
		serverOpts = append(serverOpts, server.WithMetrics(obsServer.Metrics()))
	}
	apiServer, err := server.New(cfg.ListenAddr, a.dispatcher, serverOpts...)
	if err != nil {
		return err
	}

	var obsErrs <-chan error
	if obsServer != nil {
		obsErrs, err = obsServer.Start()
		if err != nil {
			return err
		}
		a.logger.Info("metrics server started", "addr", obsServer.Addr())
	}

	apiErrs, err := apiServer.Start()
	if err != nil {
		stopServers(obsServer, nil)
		return err
	}
	cmd.Printf("Serving commands on %s\n", apiServer.Addr())
	a.logger.Info("troupe ready", "commands", a.registry.Len(), "journal", a.backend)

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
	case err, ok := <-apiErrs:
		if ok && err != nil {
			serveErr = oops.Code("SERVE_FAILED").With("server", "api").Wrap(err)
		}
	case err, ok := <-obsErrs:
		if ok && err != nil {
			serveErr = oops.Code("SERVE_FAILED").With("server", "metrics").Wrap(err)
		}
	}

	stopServers(obsServer, apiServer)
	a.logger.Info("shutdown complete")
	return serveErr
}

func stopServers(obs *observability.Server, api *server.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if api != nil {
		if err := api.Stop(ctx); err != nil {
			slog.Warn("error stopping api server", "error", err)
		}
	}
	if obs != nil {
		if err := obs.Stop(ctx); err != nil {
			slog.Warn("error stopping metrics server", "error", err)
		}
	}
}
