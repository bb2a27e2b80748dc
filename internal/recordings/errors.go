package recordings

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyUpload = errors.New("no recording data received")
	ErrMissingName = errors.New("filename is required")
	ErrInvalidName = errors.New("invalid recording filename")
	ErrNotFound    = errors.New("recording not found")
)

// StorageError is a failure of the underlying backend (disk full, permission
// denied). It is never retried.
type StorageError struct {
	Op   string
	Name string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("recordings: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("recordings: %s %s: %v", e.Op, e.Name, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err was caused by bad input rather than by
// storage.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyUpload) || errors.Is(err, ErrMissingName) || errors.Is(err, ErrInvalidName)
}
