// ABOUTME: Error values returned by the storage layer.
// ABOUTME: StorageError marks a batch that was rolled back as a whole.
package storage

import (
	"errors"
	"fmt"

	"github.com/harperreed/ringhealth/internal/models"
)

var (
	// ErrEmptyBatch is returned when UpsertBatch is called with no rows.
	ErrEmptyBatch = errors.New("empty batch")

	// ErrNoCheckpoint is returned when a stream has never been synced.
	ErrNoCheckpoint = errors.New("no checkpoint")

	// ErrLockHeld is returned when another owner holds an unexpired sync lock.
	ErrLockHeld = errors.New("sync lock held")

	// ErrNotFound is returned when a journal entry does not exist.
	ErrNotFound = errors.New("not found")
)

// StorageError reports a failed write. No part of the batch was committed.
type StorageError struct {
	Op     string
	Stream models.StreamKind
	Err    error
}

func (e *StorageError) Error() string {
	if e.Stream != "" {
		return fmt.Sprintf("storage %s %s: %v", e.Op, e.Stream, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
