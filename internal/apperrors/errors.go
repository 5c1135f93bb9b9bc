// Package apperrors holds the error kinds shared by the workflow components
// and the HTTP layer.
package apperrors

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports the expected absence of a record.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput reports a caller-supplied value that fails a precondition.
	ErrInvalidInput = errors.New("invalid input")
	// ErrTransport reports a network or malformed-response failure talking to a collaborator.
	ErrTransport = errors.New("transport failure")
	// ErrTimeout reports a collaborator that did not answer within its deadline.
	ErrTimeout = errors.New("timeout")
	// ErrConflict reports a post creation already running for the same user.
	ErrConflict = errors.New("conflict")
	// ErrPartialUpload reports a run where at least one image upload failed.
	ErrPartialUpload = errors.New("partial upload")
)

// FromContext classifies err against the collaborator taxonomy. Deadline
// errors become ErrTimeout, cancellation is kept as is, errors already carrying
// a kind are returned untouched and everything else becomes ErrTransport.
func FromContext(op string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %v", op, ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	case IsKnown(err):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %v", op, ErrTransport, err)
	}
}

// IsKnown reports whether err already wraps one of the taxonomy errors.
func IsKnown(err error) bool {
	for _, kind := range []error{ErrNotFound, ErrInvalidInput, ErrTransport, ErrTimeout, ErrConflict, ErrPartialUpload} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// InvalidInput builds an ErrInvalidInput with a readable reason.
func InvalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
