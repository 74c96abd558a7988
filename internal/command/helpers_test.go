// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package command

import (
	"context"

	"github.com/troupe-dev/troupe/pkg/contract"
	"github.com/troupe-dev/troupe/pkg/troupe"
)

// chargeContract expects an amount, permits a currency and provides a receipt.
var chargeContract = contract.MustDefine("charge", func(c *contract.Contract) {
	c.Expects("amount")
	c.Permits("currency").DefaultValue("USD")
	c.Provides("receipt")
})

func chargeBody(_ context.Context, inv *contract.Invocation) error {
	amount, err := inv.Get("amount")
	if err != nil {
		return err
	}
	currency, err := inv.Get("currency")
	if err != nil {
		return err
	}
	if n, ok := amount.(int); ok && n < 0 {
		return inv.Fail("amount must not be negative")
	}
	return inv.Set("receipt", map[string]any{"amount": amount, "currency": currency})
}

// testEntry registers name with the charge contract. A nil body uses chargeBody.
func testEntry(name string, body troupe.CallFunc) Entry {
	if body == nil {
		body = chargeBody
	}
	return Entry{
		Name:   name,
		Source: "test",
		Help:   "Charge an account",
		Usage:  "charge amount=<int> [currency=<code>]",
		New: func() troupe.Command {
			return troupe.NewCommand(chargeContract, body)
		},
	}
}
