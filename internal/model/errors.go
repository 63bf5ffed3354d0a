package model

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

// StorageError wraps any failure coming from the backing store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("db error: %v", e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Fault wraps err as a StorageError for op. A nil err stays nil.
func Fault(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsStorageFault reports whether err came from the backing store.
func IsStorageFault(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
