// internal/errors/errors.go
package errors

import "errors"

// ErrNotConnected is returned when a sync is requested for an owner with no
// GitHub credential on file. No partial work is attempted.
var ErrNotConnected = errors.New("github account not connected")

// ErrSyncInProgress is returned when a sync is already running for the same
// owner. The later request is rejected rather than racing the first.
var ErrSyncInProgress = errors.New("sync already in progress for owner")

// ErrOwnerNotFound is returned when the referenced owner does not exist.
var ErrOwnerNotFound = errors.New("owner not found")
