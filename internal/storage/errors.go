package storage

import (
	"errors"
	"fmt"
)

// ErrPersistence matches every failure reported by a storage backend.
var ErrPersistence = errors.New("persistence failure")

// Error describes a failed storage operation.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrPersistence) true for any *Error.
func (e *Error) Is(target error) bool {
	return target == ErrPersistence
}

func opError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}
