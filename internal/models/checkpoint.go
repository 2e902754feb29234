// ABOUTME: Sync checkpoint and retry-flag models.
// ABOUTME: One checkpoint per stream records how far that stream has been synced.
package models

import "time"

// Checkpoint records the last date through which a stream was synced.
type Checkpoint struct {
	Stream            StreamKind `json:"stream_type"`
	LastSyncDate      string     `json:"last_sync_date"`
	LastSyncTimestamp time.Time  `json:"last_sync_timestamp"`
}

// RetryFlag marks a stream whose last fetch came back empty under the flag policy.
type RetryFlag struct {
	Stream    StreamKind `json:"stream_type"`
	FlaggedAt time.Time  `json:"flagged_at"`
	WindowEnd string     `json:"window_end"`
	Reason    string     `json:"reason"`
}
