// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package journal

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// Instrumented counts appends on an underlying journal.
type Instrumented struct {
	Journal
	backend string
	appends *prometheus.CounterVec
}

// Instrument wraps j so every Append increments appends with labels
// backend and status ("ok" or "error"). A nil counter returns j unchanged.
func Instrument(j Journal, backend string, appends *prometheus.CounterVec) Journal {
	if appends == nil {
		return j
	}
	return &Instrumented{Journal: j, backend: backend, appends: appends}
}

// Append implements Journal.
func (i *Instrumented) Append(ctx context.Context, r Record) error {
	err := i.Journal.Append(ctx, r)
	status := "ok"
	if err != nil {
		status = "error"
	}
	i.appends.WithLabelValues(i.backend, status).Inc()
	return err
}
