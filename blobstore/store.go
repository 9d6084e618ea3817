package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store opens term sources by name.
type Store interface {
	// Open opens the named blob for sequential reading.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}
