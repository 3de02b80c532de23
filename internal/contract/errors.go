package contract

import "errors"

// ErrSnapshotNotFound is returned when no snapshot exists for a period.
var ErrSnapshotNotFound = errors.New("snapshot not found")
