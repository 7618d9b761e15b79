package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a statement or transaction does not exist
	// for the owner.
	ErrNotFound = errors.New("store: not found")

	// ErrAlreadyConsumed is returned by MarkConsumed when another run
	// consumed the transaction first.
	ErrAlreadyConsumed = errors.New("store: transaction already consumed")
)

// PersistenceError wraps a backend read or write failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Wrap returns err wrapped in a PersistenceError for op. Sentinel errors
// and existing PersistenceErrors pass through unchanged; nil stays nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyConsumed) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsPersistence reports whether err is a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
