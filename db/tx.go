package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"issuesync/logger"
)

type txKey struct{}

// querier returns the transaction bound to ctx by WithTx, or the pool.
func (db *DB) querier(ctx context.Context) (sqlx.ExtContext, bool) {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx, true
	}
	return db.conn, false
}

// WithTx runs fn in a single transaction. Store calls made with the context
// handed to fn join the transaction; a nested WithTx reuses it. The
// transaction commits only when fn returns nil.
func (db *DB) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		logger.Warn("Rolling back transaction", zap.Error(err))
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %v", ErrTransactionFailed, err)
	}
	return nil
}

const insertSavepoint = "upsert_insert"

// insert executes an INSERT and reports whether it lost a race against a
// concurrent insert of the same key. Inside a Postgres transaction the insert
// runs under a savepoint, since a failed statement there aborts the whole
// transaction.
func insert(ctx context.Context, q sqlx.ExtContext, inTx bool, query string, args ...interface{}) (bool, error) {
	savepoint := inTx && q.DriverName() == "postgres"
	if savepoint {
		if _, err := q.ExecContext(ctx, "SAVEPOINT "+insertSavepoint); err != nil {
			return false, err
		}
	}

	_, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err == nil {
		if savepoint {
			if _, err := q.ExecContext(ctx, "RELEASE SAVEPOINT "+insertSavepoint); err != nil {
				return false, err
			}
		}
		return false, nil
	}

	if !isUniqueViolation(err) {
		return false, err
	}
	if savepoint {
		if _, err := q.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+insertSavepoint); err != nil {
			return false, err
		}
	}
	return true, nil
}

// exists reports whether table has a row whose key column equals key.
func exists(ctx context.Context, q sqlx.ExtContext, table, column, key string) (bool, error) {
	var found bool
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE %s = ?)", table, column)
	if err := sqlx.GetContext(ctx, q, &found, q.Rebind(query), key); err != nil {
		return false, fmt.Errorf("failed to check %s %s: %w", table, key, err)
	}
	return found, nil
}
