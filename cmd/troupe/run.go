// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package main

import (
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// DefaultCaller identifies CLI invocations for rate limiting and the journal.
const DefaultCaller = "cli"

// runOutput is the YAML document printed for a command that ran.
type runOutput struct {
	Command      string         `yaml:"command"`
	InvocationID string         `yaml:"invocation_id"`
	Success      bool           `yaml:"success"`
	Reason       string         `yaml:"reason,omitempty"`
	Context      map[string]any `yaml:"context"`
}

// runConfig holds flags for the run command.
type runConfig struct {
	caller string
}

// NewRunCmd creates the run subcommand.
func NewRunCmd() *cobra.Command {
	cfg := &runConfig{}

	cmd := &cobra.Command{
		Use:   "run <command> [key=value...]",
		Short: "Run a command once",
		Long: `Run a command or alias with key=value input and print the resulting
context as YAML. A command that fails or violates its contract exits non-zero.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, cfg, args)
		},
	}

	cmd.Flags().StringVar(&cfg.caller, "caller", DefaultCaller, "caller identity for aliases, rate limiting and the journal")

	return cmd
}

func runRun(cmd *cobra.Command, cfg *runConfig, args []string) error {
	a, err := newApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.dispatcher.DispatchLine(cmd.Context(), cfg.caller, strings.Join(args, " "))
	if err != nil {
		return err
	}

	inv := res.Invocation()
	out := runOutput{
		Command:      inv.Contract().Name(),
		InvocationID: inv.ID().String(),
		Success:      res.Success(),
		Reason:       res.Reason(),
		Context:      res.Context().Snapshot(),
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return oops.Code("OUTPUT_FAILED").Wrap(err)
	}
	if err := enc.Close(); err != nil {
		return oops.Code("OUTPUT_FAILED").Wrap(err)
	}

	if res.Failure() {
		return oops.Code("COMMAND_FAILED").
			With("command", out.Command).
			With("invocation_id", out.InvocationID).
			Errorf("%s failed: %s", out.Command, out.Reason)
	}
	return nil
}
