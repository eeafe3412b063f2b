package simulation

import (
	"fmt"
	"sort"
	"strings"
)

// constError is an immutable error type for sentinel errors.
type constError string

func (e constError) Error() string { return string(e) }

var (
	// ErrUpstreamUnavailable indicates the prediction service could not be
	// reached or timed out. Recovery is the caller's choice: either surface
	// the failure or explicitly request the mock generator. The core never
	// retries.
	ErrUpstreamUnavailable = constError("prediction service unavailable")

	// ErrUnknownShape indicates an upstream response matched none of the
	// known formats. The normalizer fails closed rather than guessing.
	ErrUnknownShape = constError("unrecognized prediction response shape")

	// ErrConfirmationRequired indicates a clear-all was requested without
	// explicit confirmed intent.
	ErrConfirmationRequired = constError("clear-all requires explicit confirmation")
)

// ValidationError reports malformed or missing PolicyInputs fields. It is
// surfaced to the caller before any network call happens.
type ValidationError struct {
	Fields map[string]string
}

func (v *ValidationError) Error() string {
	names := make([]string, 0, len(v.Fields))
	for name := range v.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, v.Fields[name])
	}
	return "invalid inputs: " + strings.Join(parts, "; ")
}

// StorageError wraps a persistence read/write failure. The store is left
// in its last-known-good state when one of these is returned.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
