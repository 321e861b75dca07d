package booking

import (
	"errors"
	"fmt"
)

var (
	// ErrSlotUnavailable means the slot is already held, does not exist, or
	// was lost to a concurrent claim. Callers should pick another slot.
	ErrSlotUnavailable = errors.New("slot is not available")

	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrAlreadyCancelled is returned when cancelling an appointment that is
	// already in the cancelled state. The appointment is left untouched.
	ErrAlreadyCancelled = errors.New("appointment is already cancelled")
)

// ValidationError marks a request the engine refused before touching
// storage. Nothing was mutated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalidField(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StorageError wraps a storage-layer failure surfaced from a booking or
// cancellation attempt. The transaction it happened in was rolled back, so
// retrying with the same arguments is safe.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageFailure(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}
