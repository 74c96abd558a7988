// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package builtin

import (
	"context"

	"github.com/troupe-dev/troupe/internal/command"
	"github.com/troupe-dev/troupe/pkg/contract"
)

var listContract = contract.MustDefine("list", func(c *contract.Contract) {
	c.Permits("source").DefaultValue("")
	c.Provides("commands")
})

type listCommand struct {
	registry *command.Registry
}

func (*listCommand) Contract() *contract.Contract { return listContract }

func (l *listCommand) Call(_ context.Context, inv *contract.Invocation) error {
	source, err := contract.Value[string](inv, "source")
	if err != nil {
		return err
	}

	names := []string{}
	for _, e := range l.registry.All() {
		if source == "" || e.Source == source {
			names = append(names, e.Name)
		}
	}
	return inv.Set("commands", names)
}

var describeContract = contract.MustDefine("describe", func(c *contract.Contract) {
	c.Expects("name")
	c.Provides("description")
})

type describeCommand struct {
	registry *command.Registry
}

func (*describeCommand) Contract() *contract.Contract { return describeContract }

func (d *describeCommand) Call(_ context.Context, inv *contract.Invocation) error {
	name, err := contract.Value[string](inv, "name")
	if err != nil {
		return err
	}
	entry, ok := d.registry.Get(name)
	if !ok {
		return inv.Fail("unknown command: " + name)
	}
	return inv.Set("description", command.Describe(entry))
}
