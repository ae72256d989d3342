package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	apperrors "branch-ledger/pkg/errors"
)

const (
	pgLockNotAvailable = "55P03"
	pgDeadlockDetected = "40P01"
	pgUniqueViolation  = "23505"
)

type TxManagerInterface interface {
	RunInTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error
}

type TxManager struct {
	pool        *pgxpool.Pool
	lockTimeout string
	logger      *zap.Logger
}

// NewTxManager returns a manager whose transactions bound every row-lock wait by
// lockTimeoutMs milliseconds. Zero leaves the server default in place.
func NewTxManager(pool *pgxpool.Pool, lockTimeoutMs int64, logger *zap.Logger) TxManagerInterface {
	m := &TxManager{pool: pool, logger: logger}
	if lockTimeoutMs > 0 {
		m.lockTimeout = fmt.Sprintf("%dms", lockTimeoutMs)
	}
	return m
}

// RunInTransaction runs fn in one transaction. Any error from fn rolls back the
// whole unit of work; lock waits that time out or deadlock surface as
// ErrLockConflict.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
			err = translatePgError(err)
		} else {
			err = tx.Commit(ctx)
			if err != nil {
				err = translatePgError(fmt.Errorf("commit transaction: %w", err))
			}
		}
	}()

	if m.lockTimeout != "" {
		if _, err = tx.Exec(ctx, "SELECT set_config('lock_timeout', $1, true)", m.lockTimeout); err != nil {
			return fmt.Errorf("set lock_timeout: %w", err)
		}
	}

	err = fn(tx)
	return err
}

func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgLockNotAvailable, pgDeadlockDetected:
		return &apperrors.LedgerError{
			Kind:    apperrors.KindLockConflict,
			Message: fmt.Sprintf("row lock conflict: %s", pgErr.Message),
		}
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
