package store

import (
	"errors"
	"fmt"
)

// ErrStorage is matched by every *StorageError.
var ErrStorage = errors.New("storage error")

// StorageError reports a failed read or write of a collection document.
type StorageError struct {
	Op       string
	Resource Resource
	Path     string
	Err      error
}

func (e *StorageError) Error() string {
	msg := fmt.Sprintf("%s: %s %s (%s)", ErrStorage.Error(), e.Op, e.Resource, e.Path)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both ErrStorage and the underlying cause to errors.Is/As.
func (e *StorageError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrStorage}
	}
	return []error{ErrStorage, e.Err}
}

func storageErr(op string, res Resource, path string, err error) error {
	return &StorageError{Op: op, Resource: res, Path: path, Err: err}
}
