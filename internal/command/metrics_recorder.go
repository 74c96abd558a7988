// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package command

import "time"

// MetricsRecorder collects the labels of a single dispatch and records them
// once when the dispatch ends.
type MetricsRecorder struct {
	startTime     time.Time
	commandName   string
	commandSource string
	status        string
}

// NewMetricsRecorder starts timing a dispatch.
func NewMetricsRecorder() *MetricsRecorder {
	return &MetricsRecorder{startTime: time.Now(), status: StatusError}
}

func (m *MetricsRecorder) SetCommandName(name string) {
	m.commandName = name
}

func (m *MetricsRecorder) SetCommandSource(source string) {
	m.commandSource = source
}

func (m *MetricsRecorder) SetStatus(status string) {
	m.status = status
}

// Elapsed returns the time since the recorder was created.
func (m *MetricsRecorder) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// Record writes the collected metrics. Nothing is recorded without a
// command name.
func (m *MetricsRecorder) Record() {
	if m.commandName == "" {
		return
	}

	RecordCommandExecution(m.commandName, m.commandSource, m.status)
	RecordCommandDuration(m.commandName, m.commandSource, m.Elapsed())
}
