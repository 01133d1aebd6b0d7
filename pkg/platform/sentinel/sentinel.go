// Package sentinel holds the infrastructure facts stores, lockers and caches
// report. Services translate them into pkg/domain-errors codes at the edge.
package sentinel

import "errors"

var (
	// ErrNotFound means the submission, progress, score, asset or cache entry
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a write-once record (consensus score, eligible asset)
	// is already stored.
	ErrConflict = errors.New("conflict")

	// ErrLockHeld means another owner holds the run lock.
	ErrLockHeld = errors.New("lock held")

	// ErrInvalidState means the write would move a submission backwards or out
	// of a terminal status.
	ErrInvalidState = errors.New("invalid state")
)
