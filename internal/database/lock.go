package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const lockRetryDelay = 100 * time.Millisecond

// withLock runs fn while holding the store lock. The wait is bounded by
// the lock timeout.
func (db *DB) withLock(fn func() error) error {
	ctx, cancel := context.WithTimeout(context.Background(), db.lockTimeout)
	defer cancel()

	locked, err := db.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrLockTimeout, db.lock.Path())
		}
		return fmt.Errorf("acquiring store lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w: %s", ErrLockTimeout, db.lock.Path())
	}
	defer db.lock.Unlock()

	return fn()
}

// withTx runs fn in a transaction under the store lock.
func (db *DB) withTx(fn func(tx *sql.Tx) error) error {
	return db.withLock(func() error {
		tx, err := db.conn.Begin()
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}
