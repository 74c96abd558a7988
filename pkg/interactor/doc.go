// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

// Package interactor provides the execution context and hook composition
// consumed by package contract.
package interactor
