package blobstore

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/hupe1980/segbloom/internal/mmap"
)

// LocalStore implements Store using the local file system.
type LocalStore struct {
	root   string
	logger *slog.Logger
}

// LocalOption configures a LocalStore.
type LocalOption func(*LocalStore)

// WithLocalLogger sets the logger for mapping diagnostics.
func WithLocalLogger(l *slog.Logger) LocalOption {
	return func(s *LocalStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewLocalStore creates a new LocalStore rooted at the given directory.
// With an empty root, names are used as file paths unchanged.
func NewLocalStore(root string, optFns ...LocalOption) *LocalStore {
	s := &LocalStore{
		root:   root,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, fn := range optFns {
		fn(s)
	}
	return s
}

// Open maps the named file and returns a reader over its contents.
func (s *LocalStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := name
	if s.root != "" {
		path = filepath.Join(s.root, filepath.Clean("/"+name))
	}

	m, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "mapped term source", "path", path, "bytes", m.Size())

	// Term sources are consumed front to back exactly once.
	if err := m.Advise(mmap.AccessSequential); err != nil {
		s.logger.DebugContext(ctx, "madvise failed", "path", path, "error", err)
	}

	return &localBlob{m: m, Reader: bytes.NewReader(m.Bytes())}, nil
}

type localBlob struct {
	*bytes.Reader
	m *mmap.Mapping
}

func (b *localBlob) Close() error {
	return b.m.Close()
}
