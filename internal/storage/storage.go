// Package storage reads objects from the manifest store: an S3 bucket in
// production or a directory tree for development and tests.
package storage

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrGetFailed      = errors.New("get failed")
	ErrListFailed     = errors.New("list failed")
)

// ObjectStorage is read access to an object store.
type ObjectStorage interface {
	// Get returns the object's contents, or ErrObjectNotFound.
	Get(ctx context.Context, objectPath string) ([]byte, error)

	// Exists reports whether the object exists.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// ListObjects returns every object path under prefix in lexical order.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}
