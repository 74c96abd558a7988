// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/troupe-dev/troupe/internal/journal"
	"github.com/troupe-dev/troupe/internal/store"
)

// journalConfig holds flags for the journal command.
type journalConfig struct {
	command    string
	limit      int
	yamlOutput bool
}

// NewJournalCmd creates the journal subcommand.
func NewJournalCmd() *cobra.Command {
	cfg := &journalConfig{}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List recorded command runs",
		Long: `List the most recent runs recorded in the PostgreSQL journal, newest
first. Requires --database-url.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJournal(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.command, "command", "", "only show runs of this command")
	cmd.Flags().IntVar(&cfg.limit, "limit", 20, "maximum number of runs to show")
	cmd.Flags().BoolVar(&cfg.yamlOutput, "yaml", false, "output records as YAML")

	return cmd
}

func runJournal(cmd *cobra.Command, cfg *journalConfig) error {
	c, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	url, err := databaseURL(c)
	if err != nil {
		return err
	}

	pool, err := store.Open(cmd.Context(), url)
	if err != nil {
		return err
	}
	defer pool.Close()

	records, err := store.NewPostgresJournal(pool).List(cmd.Context(), cfg.command, cfg.limit)
	if err != nil {
		return err
	}
	if cfg.yamlOutput {
		return writeYAML(cmd.OutOrStdout(), records)
	}
	return writeRecords(cmd.OutOrStdout(), records)
}

func writeRecords(w io.Writer, records []journal.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No recorded runs.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tSTARTED\tCOMMAND\tCALLER\tOUTCOME\tDURATION\tREASON")
	for _, r := range records {
		caller := r.Caller
		if caller == "" {
			caller = "-"
		}
		reason := r.Reason
		if reason == "" {
			reason = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.StartedAt.UTC().Format(time.RFC3339), r.Command, caller, r.Outcome,
			r.Duration.Round(time.Microsecond), reason)
	}
	return tw.Flush()
}
