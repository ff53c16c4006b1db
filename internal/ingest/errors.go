package ingest

import (
	"errors"
	"fmt"
)

// ErrMalformedJSON marks a ValidationError raised because the body was not
// valid JSON at all.
var ErrMalformedJSON = errors.New("malformed JSON")

// ValidationError rejects a request before anything is written.
type ValidationError struct {
	Path   string // e.g. "data.metrics[0].data[2].qty"
	Reason string // e.g. "expected number, got string"
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// StorageError reports a failed write. The batch transaction has been rolled
// back when it is returned.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string {
	return "storing records: " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
