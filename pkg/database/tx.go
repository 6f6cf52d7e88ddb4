package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// TxRunner runs fn inside a transaction on db.
type TxRunner struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewTxRunner constructs a TxRunner. A nil logger discards rollback failures.
func NewTxRunner(db *sqlx.DB, logger *zap.Logger) *TxRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TxRunner{db: db, logger: logger}
}

// DB exposes the underlying pool.
func (r *TxRunner) DB() *sqlx.DB {
	return r.db
}

// WithTx commits when fn returns nil and rolls back otherwise. A panic in fn
// rolls back and is re-raised. Rollback failures are logged and never replace
// the error returned by fn.
func (r *TxRunner) WithTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			r.rollback(tx)
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		r.rollback(tx)
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ReadOnly runs fn in a read-only transaction.
func (r *TxRunner) ReadOnly(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return r.WithTx(ctx, &sql.TxOptions{ReadOnly: true}, fn)
}

func (r *TxRunner) rollback(tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
		r.logger.Sugar().Warnw("rollback failed", "error", err)
	}
}
