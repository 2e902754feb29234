// ABOUTME: Advisory cross-process lock around full syncs.
// ABOUTME: A lock row expires so a crashed process cannot wedge future runs.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const syncLockName = "full_sync"

// lockTimeLayout is fixed width so stored times compare as text.
const lockTimeLayout = "2006-01-02T15:04:05.000000000Z"

// LockInfo describes the current holder of the sync lock.
type LockInfo struct {
	Owner      string
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

// AcquireSyncLock takes the sync lock for owner. It succeeds when the lock is
// free, expired, or already held by the same owner, and returns ErrLockHeld
// otherwise.
func (d *DB) AcquireSyncLock(ctx context.Context, owner string, ttl time.Duration) error {
	now := d.now().UTC()
	query := `
		INSERT INTO sync_lock (name, owner, acquired_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			owner = excluded.owner,
			acquired_at = excluded.acquired_at,
			expires_at = excluded.expires_at
		WHERE sync_lock.expires_at <= excluded.acquired_at OR sync_lock.owner = excluded.owner
	`
	res, err := d.db.ExecContext(ctx, query, syncLockName, owner,
		now.Format(lockTimeLayout), now.Add(ttl).Format(lockTimeLayout))
	if err != nil {
		return &StorageError{Op: "acquire lock", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &StorageError{Op: "acquire lock", Err: err}
	}
	if n == 0 {
		return ErrLockHeld
	}
	return nil
}

// ReleaseSyncLock drops the lock if owner still holds it.
func (d *DB) ReleaseSyncLock(ctx context.Context, owner string) error {
	_, err := d.db.ExecContext(ctx, "DELETE FROM sync_lock WHERE name = ? AND owner = ?", syncLockName, owner)
	if err != nil {
		return &StorageError{Op: "release lock", Err: err}
	}
	return nil
}

// SyncLockHolder reports who holds the sync lock. It returns nil when the
// lock is free or has expired.
func (d *DB) SyncLockHolder(ctx context.Context) (*LockInfo, error) {
	var info LockInfo
	var acquired, expires string
	err := d.db.QueryRowContext(ctx,
		"SELECT owner, acquired_at, expires_at FROM sync_lock WHERE name = ?", syncLockName,
	).Scan(&info.Owner, &acquired, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sync lock: %w", err)
	}
	info.AcquiredAt, _ = time.Parse(time.RFC3339Nano, acquired)
	info.ExpiresAt, _ = time.Parse(time.RFC3339Nano, expires)
	if !info.ExpiresAt.After(d.now()) {
		return nil, nil
	}
	return &info, nil
}
