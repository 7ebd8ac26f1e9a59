package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store reads input blobs and writes result blobs.
type Store interface {
	// Open opens a blob for sequential reading.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Put replaces the blob atomically.
	Put(ctx context.Context, name string, data []byte) error
	// List returns the names of all blobs with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}
