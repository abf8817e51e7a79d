package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (t *fakeTx) Commit(context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeBeginner struct {
	opts []pgx.TxOptions
	txs  []*fakeTx
}

func (b *fakeBeginner) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	b.opts = append(b.opts, opts)
	tx := &fakeTx{}
	b.txs = append(b.txs, tx)
	return tx, nil
}

func TestWithTxCommitsUnderRepeatableRead(t *testing.T) {
	b := &fakeBeginner{}
	require.NoError(t, WithTx(context.Background(), b, func(pgx.Tx) error { return nil }))
	require.Len(t, b.txs, 1)
	require.True(t, b.txs[0].committed)
	require.Equal(t, pgx.RepeatableRead, b.opts[0].IsoLevel)
}

func TestWithTxRetriesSerializationFailures(t *testing.T) {
	b := &fakeBeginner{}
	calls := 0
	err := WithTx(context.Background(), b, func(pgx.Tx) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("update offer: %w", &pgconn.PgError{Code: "40001"})
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.True(t, b.txs[0].rolledBack)
	require.True(t, b.txs[2].committed)
}

func TestWithTxGivesUpAndKeepsCause(t *testing.T) {
	b := &fakeBeginner{}
	cause := &pgconn.PgError{Code: "40P01"}
	err := WithTxOptions(context.Background(), b, TxOptions{IsoLevel: pgx.Serializable, MaxAttempts: 2}, func(pgx.Tx) error {
		return cause
	})
	require.Error(t, err)
	require.ErrorIs(t, err, cause)
	require.Len(t, b.txs, 2)
	require.Equal(t, pgx.Serializable, b.opts[1].IsoLevel)
}

func TestWithTxDoesNotRetryOtherErrors(t *testing.T) {
	b := &fakeBeginner{}
	boom := errors.New("boom")
	err := WithTxOptions(context.Background(), b, TxOptions{ReadOnly: true, MaxAttempts: 5}, func(pgx.Tx) error { return boom })
	require.ErrorIs(t, err, boom)
	require.Len(t, b.txs, 1)
	require.Equal(t, pgx.ReadOnly, b.opts[0].AccessMode)
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "vendor_offers_vendor_id_product_id_key"})
	require.True(t, IsUniqueViolation(err, ""))
	require.True(t, IsUniqueViolation(err, "vendor_offers_vendor_id_product_id_key"))
	require.False(t, IsUniqueViolation(err, "catalog_products_sku_key"))
	require.False(t, IsUniqueViolation(errors.New("plain"), ""))
	require.False(t, Retryable(err))
}

func TestNewRejectsEmptyDSN(t *testing.T) {
	_, err := New(context.Background(), Options{})
	require.Error(t, err)
}
