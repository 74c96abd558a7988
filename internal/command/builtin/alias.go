// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package builtin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/oops"

	"github.com/troupe-dev/troupe/internal/command"
	"github.com/troupe-dev/troupe/internal/store"
	"github.com/troupe-dev/troupe/pkg/contract"
)

var aliasContract = contract.MustDefine("alias", func(c *contract.Contract) {
	c.Expects("alias", "line")
	c.Permits("global").DefaultValue(false)
	c.Provides("warnings")
})

// scope is the owner of an alias: "" for global aliases.
func scope(ctx context.Context, inv *contract.Invocation) (string, error) {
	global, err := contract.Value[bool](inv, "global")
	if err != nil {
		return "", err
	}
	if global {
		return "", nil
	}
	caller := command.CallerFrom(ctx)
	if caller == "" {
		return "", inv.Fail("anonymous callers can only manage global aliases")
	}
	return caller, nil
}

// aliasCommand persists an alias before adding it to the table. When the
// table rejects it, Rollback removes the persisted row.
type aliasCommand struct {
	registry *command.Registry
	aliases  *command.AliasTable
	repo     store.AliasRepository

	persisted bool
	owner     string
	alias     string
	previous  string
	replaced  bool
}

func (*aliasCommand) Contract() *contract.Contract { return aliasContract }

func (a *aliasCommand) Call(ctx context.Context, inv *contract.Invocation) error {
	owner, err := scope(ctx, inv)
	if err != nil || inv.Store().Failed() {
		return err
	}
	alias, err := contract.Value[string](inv, "alias")
	if err != nil {
		return err
	}
	line, err := contract.Value[string](inv, "line")
	if err != nil {
		return err
	}
	if err := command.ValidateAliasName(alias); err != nil {
		return err
	}
	a.owner, a.alias = owner, alias

	warnings := []string{}
	if _, ok := a.registry.Get(alias); ok {
		warnings = append(warnings, fmt.Sprintf("'%s' is a registered command; the command takes precedence.", alias))
	}
	if owner != "" {
		if global, ok := a.aliases.Global()[alias]; ok {
			warnings = append(warnings, fmt.Sprintf("'%s' shadows the global alias for '%s'.", alias, global))
		}
		a.previous, a.replaced = a.aliases.ForCaller(owner)[alias]
	} else {
		a.previous, a.replaced = a.aliases.Global()[alias]
	}
	if a.replaced {
		warnings = append(warnings, fmt.Sprintf("Replacing alias '%s' (was: '%s').", alias, a.previous))
	}

	if a.repo != nil {
		if err := a.persist(ctx, owner, alias, line); err != nil {
			return err
		}
		a.persisted = true
	}

	if owner == "" {
		err = a.aliases.SetGlobal(alias, line)
	} else {
		err = a.aliases.SetForCaller(owner, alias, line)
	}
	if err != nil {
		return err
	}
	return inv.Set("warnings", warnings)
}

func (a *aliasCommand) persist(ctx context.Context, owner, alias, line string) error {
	var err error
	if owner == "" {
		err = a.repo.SetGlobalAlias(ctx, alias, line, command.CallerFrom(ctx))
	} else {
		err = a.repo.SetCallerAlias(ctx, owner, alias, line)
	}
	if err != nil {
		return oops.With("operation", "persist alias").With("alias", alias).Wrap(err)
	}
	return nil
}

// Rollback restores the persisted state of the alias.
func (a *aliasCommand) Rollback(ctx context.Context, _ *contract.Invocation) error {
	if !a.persisted {
		return nil
	}
	a.persisted = false

	var err error
	switch {
	case a.replaced:
		err = a.persist(ctx, a.owner, a.alias, a.previous)
	case a.owner == "":
		err = a.repo.DeleteGlobalAlias(ctx, a.alias)
	default:
		err = a.repo.DeleteCallerAlias(ctx, a.owner, a.alias)
	}
	if err != nil {
		slog.ErrorContext(ctx, "alias rollback failed: repository and table disagree",
			"alias", a.alias,
			"caller", a.owner,
			"error", err)
		return oops.With("operation", "rollback alias").With("alias", a.alias).Wrap(err)
	}
	return nil
}

var unaliasContract = contract.MustDefine("unalias", func(c *contract.Contract) {
	c.Expects("alias")
	c.Permits("global").DefaultValue(false)
	c.Provides("removed")
})

type unaliasCommand struct {
	aliases *command.AliasTable
	repo    store.AliasRepository
}

func (*unaliasCommand) Contract() *contract.Contract { return unaliasContract }

func (u *unaliasCommand) Call(ctx context.Context, inv *contract.Invocation) error {
	owner, err := scope(ctx, inv)
	if err != nil || inv.Store().Failed() {
		return err
	}
	alias, err := contract.Value[string](inv, "alias")
	if err != nil {
		return err
	}

	existing := u.aliases.Global()
	if owner != "" {
		existing = u.aliases.ForCaller(owner)
	}
	if _, ok := existing[alias]; !ok {
		return inv.Set("removed", false)
	}

	if u.repo != nil {
		if owner == "" {
			err = u.repo.DeleteGlobalAlias(ctx, alias)
		} else {
			err = u.repo.DeleteCallerAlias(ctx, owner, alias)
		}
		if err != nil {
			return oops.With("operation", "delete alias").With("alias", alias).Wrap(err)
		}
	}

	if owner == "" {
		u.aliases.RemoveGlobal(alias)
	} else {
		u.aliases.RemoveForCaller(owner, alias)
	}
	return inv.Set("removed", true)
}

var aliasesContract = contract.MustDefine("aliases", func(c *contract.Contract) {
	c.Provides("global", "own")
})

type aliasesCommand struct {
	aliases *command.AliasTable
}

func (*aliasesCommand) Contract() *contract.Contract { return aliasesContract }

func (a *aliasesCommand) Call(ctx context.Context, inv *contract.Invocation) error {
	if err := inv.Set("global", a.aliases.Global()); err != nil {
		return err
	}
	own := a.aliases.ForCaller(command.CallerFrom(ctx))
	if own == nil {
		own = map[string]string{}
	}
	return inv.Set("own", own)
}
