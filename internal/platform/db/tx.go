package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	sqlStateSerialization = "40001"
	sqlStateDeadlock      = "40P01"
)

// TxOptions controls isolation and how often a transaction is replayed after
// a serialization failure or deadlock.
type TxOptions struct {
	IsoLevel    pgx.TxIsoLevel
	ReadOnly    bool
	MaxAttempts int
}

// DefaultTxOptions is what WithTx uses.
var DefaultTxOptions = TxOptions{IsoLevel: pgx.RepeatableRead, MaxAttempts: 3}

// Beginner is satisfied by *pgxpool.Pool and pgx.Tx.
type Beginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

var _ Beginner = (*pgxpool.Pool)(nil)

// WithTx runs fn under RepeatableRead. fn may run more than once, so it must
// only touch state it also resets.
func WithTx(ctx context.Context, pool Beginner, fn func(pgx.Tx) error) error {
	return WithTxOptions(ctx, pool, DefaultTxOptions, fn)
}

// WithTxOptions is WithTx with explicit options.
func WithTxOptions(ctx context.Context, pool Beginner, opts TxOptions, fn func(pgx.Tx) error) error {
	attempts := opts.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	txOpts := pgx.TxOptions{IsoLevel: opts.IsoLevel}
	if opts.ReadOnly {
		txOpts.AccessMode = pgx.ReadOnly
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = runTx(ctx, pool, txOpts, fn)
		if err == nil || !Retryable(err) || ctx.Err() != nil {
			return err
		}
	}
	return fmt.Errorf("platform/db: gave up after %d attempts: %w", attempts, err)
}

func runTx(ctx context.Context, pool Beginner, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}
	return nil
}

// Retryable reports whether err is a conflict PostgreSQL expects the client
// to retry.
func Retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == sqlStateSerialization || pgErr.Code == sqlStateDeadlock
}

// IsUniqueViolation reports whether err comes from a unique constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
