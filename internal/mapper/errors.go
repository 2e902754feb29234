// ABOUTME: Error type for vendor records that cannot be mapped.
// ABOUTME: Callers skip the offending record and keep the rest of the batch.
package mapper

import (
	"fmt"

	"github.com/harperreed/ringhealth/internal/models"
)

// MalformedRecordError reports a single record that failed mapping.
type MalformedRecordError struct {
	Stream models.StreamKind
	Reason string
	Err    error
}

func (e *MalformedRecordError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed %s record: %s: %v", e.Stream, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed %s record: %s", e.Stream, e.Reason)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

func malformed(kind models.StreamKind, reason string, err error) error {
	return &MalformedRecordError{Stream: kind, Reason: reason, Err: err}
}
