// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

// Package contract validates the properties a command reads from and writes to
// its shared execution context.
//
// A Contract is built once per command type. It records which properties the
// command expects (must be present before the command runs), permits (optional,
// with a lazily computed default) and provides (written by the command body).
// Each run creates a fresh Invocation that detects missing expected properties,
// routes every violation to a handler, runs the body through the host's hook
// runner and finally materializes every declared property.
//
// The execution context and the hook runner are supplied by the caller through
// the Store and HookRunner interfaces; package interactor ships reference
// implementations of both.
package contract
