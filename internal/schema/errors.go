package schema

import (
	"errors"
	"fmt"
)

// ErrUnsupportedVersion is returned when a payload or store was written by a
// newer, incompatible schema version.
var ErrUnsupportedVersion = errors.New("unsupported schema version")

// ValidationError reports a missing, empty or malformed field. It is raised
// before any store mutation and is never retried.
type ValidationError struct {
	Entity string // customer, product, invoice, expense, setting
	Field  string // json field path, e.g. "name" or "items[1].price"
	Rule   string // failed rule, e.g. "required"
}

func (e *ValidationError) Error() string {
	if e.Rule == "required" {
		return fmt.Sprintf("invalid %s: %s is required", e.Entity, e.Field)
	}
	return fmt.Sprintf("invalid %s: %s failed %q", e.Entity, e.Field, e.Rule)
}

// StoreError reports a failed local persistence operation.
type StoreError struct {
	Op         string
	Collection Collection
	Err        error
}

func (e *StoreError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NetworkError reports that the sync transport was unreachable or timed out.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SyncError reports that the authoritative store rejected a sync. The whole
// batch was rolled back.
type SyncError struct {
	Message string
	Err     error
}

func (e *SyncError) Error() string {
	switch {
	case e.Err == nil:
		return "sync failed: " + e.Message
	case e.Message == "":
		return "sync failed: " + e.Err.Error()
	}
	return fmt.Sprintf("sync failed: %s: %v", e.Message, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNetwork reports whether err carries a *NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsRetryable reports whether the next timer tick or user action may succeed
// where err failed. Validation and store errors need a change first.
func IsRetryable(err error) bool {
	if err == nil || IsValidation(err) {
		return false
	}
	var ne *NetworkError
	var se *SyncError
	return errors.As(err, &ne) || errors.As(err, &se)
}
