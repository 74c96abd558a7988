// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

// Package troupe is the command surface over package contract.
//
// A Command declares a contract and a Call body. Call runs it against a
// fresh context built from caller input:
//
//	var chargeContract = contract.MustDefine("charge", func(c *contract.Contract) {
//		c.Expects("amount")
//		c.Permits("currency").DefaultValue("USD")
//		c.Provides("receipt")
//	})
//
//	res, err := troupe.Call(ctx, charge, map[string]any{"amount": 100})
//
// Failures signalled through Invocation.Fail produce a failed Result; every
// other error, contract violations included, is returned.
package troupe
