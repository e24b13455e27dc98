// Package sqlite carries the transaction scope shared by the repositories.
//
// A transaction started by TxManager travels in the context; repositories call
// ExecutorFrom so an engine action and its history, ledger and notification
// rows commit or roll back together.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/garyjia/assignment-fulfillment/internal/application/port"
)

type txCtxKey struct{}

// Executor covers both *sql.DB and *sql.Tx
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// TxManager runs units of work inside one SQLite transaction
type TxManager struct {
	DB *sql.DB

	logger      *zap.Logger
	busyRetries int
	busyBackoff time.Duration
	sleep       func(time.Duration)
}

// TxOption customizes a TxManager
type TxOption func(*TxManager)

// WithBusyRetry retries BEGIN up to n extra times while the writer lock is held elsewhere.
func WithBusyRetry(n int, backoff time.Duration) TxOption {
	return func(m *TxManager) {
		m.busyRetries = n
		m.busyBackoff = backoff
	}
}

// NewTxManager wraps an open connection pool
func NewTxManager(db *sql.DB, logger *zap.Logger, opts ...TxOption) *TxManager {
	m := &TxManager{
		DB:          db,
		logger:      logger,
		busyRetries: 3,
		busyBackoff: 50 * time.Millisecond,
		sleep:       time.Sleep,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithTransaction implements port.TransactionManager.
// A call made while ctx already carries a transaction joins it.
func (m *TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if TxFrom(ctx) != nil {
		return fn(ctx)
	}

	tx, err := m.begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			m.logger.Error("Rolled back after panic", zap.Any("panic", p))
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txCtxKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			m.logger.Warn("Rollback failed", zap.Error(rbErr))
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		m.logger.Error("Commit failed", zap.Error(err))
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (m *TxManager) begin(ctx context.Context) (*sql.Tx, error) {
	backoff := m.busyBackoff
	for attempt := 0; ; attempt++ {
		tx, err := m.DB.BeginTx(ctx, nil)
		if err == nil {
			return tx, nil
		}
		if !IsBusy(err) || attempt >= m.busyRetries || ctx.Err() != nil {
			m.logger.Error("Begin transaction failed",
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			return nil, fmt.Errorf("begin transaction: %w", err)
		}
		m.logger.Debug("Database busy, retrying begin",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff))
		m.sleep(backoff)
		backoff *= 2
	}
}

// IsBusy reports whether err is SQLite refusing the writer lock
func IsBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// TxFrom returns the transaction carried by ctx, or nil
func TxFrom(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txCtxKey{}).(*sql.Tx)
	return tx
}

// ExecutorFrom picks the ambient transaction when there is one
func ExecutorFrom(ctx context.Context, db *sql.DB) Executor {
	if tx := TxFrom(ctx); tx != nil {
		return tx
	}
	return db
}

var _ port.TransactionManager = (*TxManager)(nil)
