package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrAccessDenied = errors.New("access denied")
	ErrTransient    = errors.New("transient storage failure")
	ErrStorage      = errors.New("storage failure")
)

// StorageError wraps a failure from the storage client with the operation
// context and one of the Err* kinds above.
type StorageError struct {
	Op     string
	Bucket string
	Key    string
	Kind   error
	Err    error
}

func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s/%s: %v: %v", e.Op, e.Bucket, e.Key, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Bucket, e.Kind, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return e.Kind == target
}

// ValidationError is a caller mistake detected before any storage call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
