package replication

import (
	"errors"
	"fmt"
)

// Sync phases reported in SyncError.Phase.
const (
	PhaseWrite   = "write"   // push: merge write rejected by the replica
	PhaseFetch   = "fetch"   // pull: listing remote documents failed
	PhaseClear   = "clear"   // pull: deleting local entries failed, local state intact
	PhaseReplace = "replace" // pull: inserting failed after the local store was cleared
)

// SyncError is a replica or store failure during push or pull. It is never
// retried.
type SyncError struct {
	// Op is "push" or "pull".
	Op string

	// Phase is one of the Phase constants.
	Phase string

	// Key is the remote document key, when one is involved.
	Key string

	Err error
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("sync %s (%s, key=%s): %v", e.Op, e.Phase, e.Key, e.Err)
	}
	return fmt.Sprintf("sync %s (%s): %v", e.Op, e.Phase, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// IsSyncError returns true if err is or wraps a SyncError.
func IsSyncError(err error) bool {
	var se *SyncError
	return errors.As(err, &se)
}

// IsPartialRestore returns true if err is a pull failure that happened after
// local entries were deleted.
func IsPartialRestore(err error) bool {
	var se *SyncError
	return errors.As(err, &se) && se.Op == "pull" && se.Phase == PhaseReplace
}

// DecodeError describes a remote document that could not be turned into an
// entry. Pull skips such documents rather than failing.
type DecodeError struct {
	Key    string
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode document %q: field %q %s", e.Key, e.Field, e.Reason)
}

// IsDecodeError returns true if err is or wraps a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
