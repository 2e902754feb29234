// ABOUTME: Per-stream sync checkpoints and retry flags.
// ABOUTME: Checkpoints only move forward; retry flags mark streams that came back empty.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/ringhealth/internal/models"
)

// RecordCheckpoint notes that a stream is synced through the given day.
// The stored date never moves backwards, but the timestamp always advances.
func (d *DB) RecordCheckpoint(ctx context.Context, kind models.StreamKind, throughDate string) error {
	if !models.IsValidStream(string(kind)) {
		return fmt.Errorf("record checkpoint: unknown stream %q", kind)
	}
	if !models.IsValidDay(throughDate) {
		return fmt.Errorf("record checkpoint: invalid date %q", throughDate)
	}

	query := `
		INSERT INTO sync_status (stream_type, last_sync_date, last_sync_timestamp)
		VALUES (?, ?, ?)
		ON CONFLICT(stream_type) DO UPDATE SET
			last_sync_date = MAX(sync_status.last_sync_date, excluded.last_sync_date),
			last_sync_timestamp = excluded.last_sync_timestamp
	`
	_, err := d.db.ExecContext(ctx, query, string(kind), throughDate, d.now().UTC().Format(time.RFC3339))
	if err != nil {
		return &StorageError{Op: "checkpoint", Stream: kind, Err: err}
	}
	return nil
}

// GetCheckpoint returns the checkpoint for a stream, or ErrNoCheckpoint.
func (d *DB) GetCheckpoint(ctx context.Context, kind models.StreamKind) (*models.Checkpoint, error) {
	query := `
		SELECT stream_type, last_sync_date, last_sync_timestamp
		FROM sync_status
		WHERE stream_type = ?
	`
	cp, err := scanCheckpoint(d.db.QueryRowContext(ctx, query, string(kind)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", kind, ErrNoCheckpoint)
	}
	if err != nil {
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	return cp, nil
}

// ListCheckpoints returns every recorded checkpoint ordered by stream name.
func (d *DB) ListCheckpoints(ctx context.Context) ([]*models.Checkpoint, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT stream_type, last_sync_date, last_sync_timestamp
		FROM sync_status
		ORDER BY stream_type
	`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []*models.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row rowScanner) (*models.Checkpoint, error) {
	var cp models.Checkpoint
	var stream, ts string
	if err := row.Scan(&stream, &cp.LastSyncDate, &ts); err != nil {
		return nil, err
	}
	cp.Stream = models.StreamKind(stream)
	cp.LastSyncTimestamp, _ = time.Parse(time.RFC3339, ts)
	return &cp, nil
}

// FlagRetry marks a stream for another look on the next run.
func (d *DB) FlagRetry(ctx context.Context, kind models.StreamKind, windowEnd, reason string) error {
	query := `
		INSERT INTO sync_retry (stream_type, flagged_at, window_end, reason)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(stream_type) DO UPDATE SET
			flagged_at = excluded.flagged_at,
			window_end = excluded.window_end,
			reason = excluded.reason
	`
	_, err := d.db.ExecContext(ctx, query, string(kind), d.now().UTC().Format(time.RFC3339), windowEnd, reason)
	if err != nil {
		return &StorageError{Op: "flag retry", Stream: kind, Err: err}
	}
	return nil
}

// ClearRetry removes any retry flag for a stream.
func (d *DB) ClearRetry(ctx context.Context, kind models.StreamKind) error {
	if _, err := d.db.ExecContext(ctx, "DELETE FROM sync_retry WHERE stream_type = ?", string(kind)); err != nil {
		return &StorageError{Op: "clear retry", Stream: kind, Err: err}
	}
	return nil
}

// ListRetryFlags returns streams currently flagged for retry.
func (d *DB) ListRetryFlags(ctx context.Context) ([]*models.RetryFlag, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT stream_type, flagged_at, window_end, COALESCE(reason, '')
		FROM sync_retry
		ORDER BY stream_type
	`)
	if err != nil {
		return nil, fmt.Errorf("list retry flags: %w", err)
	}
	defer rows.Close()

	var out []*models.RetryFlag
	for rows.Next() {
		var f models.RetryFlag
		var stream, flaggedAt string
		if err := rows.Scan(&stream, &flaggedAt, &f.WindowEnd, &f.Reason); err != nil {
			return nil, fmt.Errorf("scan retry flag: %w", err)
		}
		f.Stream = models.StreamKind(stream)
		f.FlaggedAt, _ = time.Parse(time.RFC3339, flaggedAt)
		out = append(out, &f)
	}
	return out, rows.Err()
}
