// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package command

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status values for command execution metrics.
const (
	StatusSuccess     = "success"
	StatusFailure     = "failure"
	StatusError       = "error"
	StatusNotFound    = "not_found"
	StatusRateLimited = "rate_limited"
	StatusRejected    = "rejected"
)

// CommandExecutions counts dispatches by command, source and status.
var CommandExecutions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "troupe_command_executions_total",
		Help: "Total number of command executions",
	},
	[]string{"command", "source", "status"},
)

// CommandDuration observes dispatch latency.
var CommandDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "troupe_command_duration_seconds",
		Help:    "Command execution duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"command", "source"},
)

// AliasExpansions counts alias expansions by alias.
var AliasExpansions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "troupe_alias_expansions_total",
		Help: "Total number of alias expansions",
	},
	[]string{"alias"},
)

// ContractViolations counts violations detected before a command body ran.
var ContractViolations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "troupe_contract_violations_total",
		Help: "Total number of contract violations by command and property",
	},
	[]string{"command", "property"},
)

// RegisterMetrics registers the package metrics with reg.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(CommandExecutions, CommandDuration, AliasExpansions, ContractViolations)
}

// RecordCommandExecution increments the execution counter.
func RecordCommandExecution(command, source, status string) {
	CommandExecutions.WithLabelValues(command, source, status).Inc()
}

// RecordCommandDuration observes how long a dispatch took.
func RecordCommandDuration(command, source string, duration time.Duration) {
	CommandDuration.WithLabelValues(command, source).Observe(duration.Seconds())
}

// RecordAliasExpansion increments the alias expansion counter.
func RecordAliasExpansion(alias string) {
	AliasExpansions.WithLabelValues(alias).Inc()
}

// RecordViolations increments the violation counter once per property.
func RecordViolations(command string, properties []string) {
	for _, p := range properties {
		ContractViolations.WithLabelValues(command, p).Inc()
	}
}
