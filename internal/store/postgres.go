// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

// Package store provides the PostgreSQL journal, alias repository and
// schema migrations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/troupe-dev/troupe/internal/journal"
)

// poolIface is the subset of *pgxpool.Pool used by the store. It is
// satisfied by pgxmock in tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close()
}

// Open connects to databaseURL and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}
	return pool, nil
}

// Default retry policy for transient append failures.
const (
	DefaultRetryBase = 50 * time.Millisecond
	DefaultRetries   = 3
)

// PostgresJournal implements journal.Journal using PostgreSQL.
type PostgresJournal struct {
	pool    poolIface
	base    time.Duration
	retries uint64
}

// JournalOption configures a PostgresJournal.
type JournalOption func(*PostgresJournal)

// WithRetry sets the exponential backoff base and the retry count for
// transient append failures.
func WithRetry(base time.Duration, retries uint64) JournalOption {
	return func(j *PostgresJournal) {
		j.base = base
		j.retries = retries
	}
}

// NewPostgresJournal creates a journal backed by pool.
func NewPostgresJournal(pool poolIface, opts ...JournalOption) *PostgresJournal {
	j := &PostgresJournal{pool: pool, base: DefaultRetryBase, retries: DefaultRetries}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Ping reports whether the database is reachable.
func (j *PostgresJournal) Ping(ctx context.Context) error {
	return j.pool.Ping(ctx)
}

// Close closes the pool.
func (j *PostgresJournal) Close() {
	j.pool.Close()
}

// Append implements journal.Journal. Connection and transaction rollback
// errors are retried with exponential backoff.
func (j *PostgresJournal) Append(ctx context.Context, r journal.Record) error {
	if err := r.Validate(); err != nil {
		return err
	}

	violations := r.Violations
	if violations == nil {
		violations = []string{}
	}

	backoff := retry.WithMaxRetries(j.retries, retry.NewExponential(j.base))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := j.pool.Exec(ctx,
			`INSERT INTO journal (id, command, caller, outcome, reason, violations, started_at, duration_us)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			r.ID.String(), r.Command, r.Caller, string(r.Outcome), r.Reason,
			violations, r.StartedAt, r.Duration.Microseconds())
		if err != nil && transient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return oops.Code(journal.CodeDuplicateRecord).With("id", r.ID.String()).Wrap(err)
	}
	return oops.Code(journal.CodeAppendFailed).
		With("id", r.ID.String()).
		With("command", r.Command).
		Wrap(err)
}

// List implements journal.Journal.
func (j *PostgresJournal) List(ctx context.Context, command string, limit int) ([]journal.Record, error) {
	if limit <= 0 {
		limit = journal.DefaultListLimit
	}

	rows, err := j.pool.Query(ctx,
		`SELECT id, command, caller, outcome, reason, violations, started_at, duration_us
		 FROM journal WHERE ($1 = '' OR command = $1) ORDER BY id DESC LIMIT $2`,
		command, limit)
	if err != nil {
		return nil, oops.Code(journal.CodeListFailed).With("command", command).Wrap(err)
	}
	defer rows.Close()

	var records []journal.Record
	for rows.Next() {
		var (
			id, outcome string
			durationUs  int64
			rec         journal.Record
		)
		if err := rows.Scan(&id, &rec.Command, &rec.Caller, &outcome, &rec.Reason,
			&rec.Violations, &rec.StartedAt, &durationUs); err != nil {
			return nil, oops.Code(journal.CodeListFailed).With("operation", "scan journal row").Wrap(err)
		}
		rec.ID, err = ulid.Parse(id)
		if err != nil {
			return nil, oops.Code(journal.CodeListFailed).With("id", id).Wrap(err)
		}
		rec.Outcome = journal.Outcome(outcome)
		rec.Duration = time.Duration(durationUs) * time.Microsecond
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code(journal.CodeListFailed).With("operation", "iterate journal").Wrap(err)
	}
	return records, nil
}

func transient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgerrcode.IsConnectionException(pgErr.Code) || pgerrcode.IsTransactionRollback(pgErr.Code)
	}
	return pgconn.SafeToRetry(err)
}
