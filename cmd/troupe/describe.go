// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/troupe-dev/troupe/internal/command"
)

// describeConfig holds flags for the describe command.
type describeConfig struct {
	yamlOutput bool
}

// NewDescribeCmd creates the describe subcommand.
func NewDescribeCmd() *cobra.Command {
	cfg := &describeConfig{}

	cmd := &cobra.Command{
		Use:   "describe [command]",
		Short: "Describe registered commands",
		Long: `Without arguments, list every registered command. With a command name,
show its contract: each declared property with its presence, whether it
has a default and whether it has a violation handler.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDescribe(cmd, cfg, args)
		},
	}

	cmd.Flags().BoolVar(&cfg.yamlOutput, "yaml", false, "output descriptions as YAML")

	return cmd
}

func runDescribe(cmd *cobra.Command, cfg *describeConfig, args []string) error {
	a, err := newApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		all := a.registry.DescribeAll()
		if cfg.yamlOutput {
			return writeYAML(out, all)
		}
		return writeCommandList(out, all)
	}

	entry, ok := a.registry.Get(args[0])
	if !ok {
		return command.ErrUnknownCommand(args[0])
	}
	d := command.Describe(entry)
	if cfg.yamlOutput {
		return writeYAML(out, d)
	}
	return writeDescription(out, d)
}

func writeCommandList(w io.Writer, all []command.Description) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tSOURCE\tHELP")
	for _, d := range all {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Name, d.Source, d.Help)
	}
	return tw.Flush()
}

func writeDescription(w io.Writer, d command.Description) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Name:\t%s\n", d.Name)
	if d.Source != "" {
		_, _ = fmt.Fprintf(tw, "Source:\t%s\n", d.Source)
	}
	if d.Help != "" {
		_, _ = fmt.Fprintf(tw, "Help:\t%s\n", d.Help)
	}
	if d.Usage != "" {
		_, _ = fmt.Fprintf(tw, "Usage:\t%s\n", d.Usage)
	}
	_, _ = fmt.Fprintf(tw, "Handler:\t%s\n", yesNo(d.HasHandler))
	if len(d.AllowUndeclared) > 0 {
		_, _ = fmt.Fprintf(tw, "Undeclared:\t%s\n", strings.Join(d.AllowUndeclared, ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(d.Properties) == 0 {
		_, err := fmt.Fprintln(w, "\nNo declared properties.")
		return err
	}

	_, _ = fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PROPERTY\tPRESENCE\tDEFAULT\tHANDLER")
	for _, p := range d.Properties {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, p.Presence, defaultLabel(p), yesNo(p.HasHandler))
	}
	return tw.Flush()
}

func defaultLabel(p command.PropertyDescription) string {
	switch {
	case p.DefaultMethod != "":
		return "method(" + p.DefaultMethod + ")"
	case p.HasDefault:
		return "yes"
	default:
		return "-"
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
