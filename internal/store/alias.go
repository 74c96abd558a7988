// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package store

import (
	"context"

	"github.com/samber/oops"
)

// AliasRepository persists global and per-caller aliases.
type AliasRepository interface {
	GlobalAliases(ctx context.Context) (map[string]string, error)
	SetGlobalAlias(ctx context.Context, alias, line, createdBy string) error
	DeleteGlobalAlias(ctx context.Context, alias string) error

	CallerAliases(ctx context.Context, caller string) (map[string]string, error)
	SetCallerAlias(ctx context.Context, caller, alias, line string) error
	DeleteCallerAlias(ctx context.Context, caller, alias string) error
}

// PostgresAliasRepository implements AliasRepository using PostgreSQL.
type PostgresAliasRepository struct {
	pool poolIface
}

// NewPostgresAliasRepository creates a new PostgreSQL alias repository.
func NewPostgresAliasRepository(pool poolIface) *PostgresAliasRepository {
	return &PostgresAliasRepository{pool: pool}
}

// GlobalAliases returns every global alias.
func (r *PostgresAliasRepository) GlobalAliases(ctx context.Context) (map[string]string, error) {
	return r.collect(ctx, "get global aliases", `SELECT alias, line FROM global_aliases`)
}

// SetGlobalAlias creates or replaces a global alias. An empty createdBy is
// stored as NULL.
func (r *PostgresAliasRepository) SetGlobalAlias(ctx context.Context, alias, line, createdBy string) error {
	var createdByArg any
	if createdBy != "" {
		createdByArg = createdBy
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO global_aliases (alias, line, created_by)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (alias) DO UPDATE SET line = $2, created_by = $3`,
		alias, line, createdByArg)
	if err != nil {
		return oops.With("operation", "set global alias").With("alias", alias).Wrap(err)
	}
	return nil
}

// DeleteGlobalAlias removes a global alias. Removing a missing alias is not
// an error.
func (r *PostgresAliasRepository) DeleteGlobalAlias(ctx context.Context, alias string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM global_aliases WHERE alias = $1`, alias); err != nil {
		return oops.With("operation", "delete global alias").With("alias", alias).Wrap(err)
	}
	return nil
}

// CallerAliases returns the aliases of caller.
func (r *PostgresAliasRepository) CallerAliases(ctx context.Context, caller string) (map[string]string, error) {
	aliases, err := r.collect(ctx, "get caller aliases",
		`SELECT alias, line FROM caller_aliases WHERE caller = $1`, caller)
	if err != nil {
		return nil, oops.With("caller", caller).Wrap(err)
	}
	return aliases, nil
}

// SetCallerAlias creates or replaces an alias of caller.
func (r *PostgresAliasRepository) SetCallerAlias(ctx context.Context, caller, alias, line string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO caller_aliases (caller, alias, line)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (caller, alias) DO UPDATE SET line = $3`,
		caller, alias, line)
	if err != nil {
		return oops.With("operation", "set caller alias").
			With("caller", caller).
			With("alias", alias).
			Wrap(err)
	}
	return nil
}

// DeleteCallerAlias removes an alias of caller.
func (r *PostgresAliasRepository) DeleteCallerAlias(ctx context.Context, caller, alias string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM caller_aliases WHERE caller = $1 AND alias = $2`, caller, alias)
	if err != nil {
		return oops.With("operation", "delete caller alias").
			With("caller", caller).
			With("alias", alias).
			Wrap(err)
	}
	return nil
}

func (r *PostgresAliasRepository) collect(ctx context.Context, operation, sql string, args ...any) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, oops.With("operation", operation).Wrap(err)
	}
	defer rows.Close()

	aliases := make(map[string]string)
	for rows.Next() {
		var alias, line string
		if err := rows.Scan(&alias, &line); err != nil {
			return nil, oops.With("operation", operation).Wrap(err)
		}
		aliases[alias] = line
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", operation).Wrap(err)
	}
	return aliases, nil
}
