package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/segbloom/blobstore"
	minioblob "github.com/hupe1980/segbloom/blobstore/minio"
	"github.com/hupe1980/segbloom/config"
)

func TestNewStore_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "2011.csv")
	require.NoError(t, os.WriteFile(path, []byte("apple\n"), 0o600))

	store, err := newStore(context.Background(), config.SourceConfig{Kind: config.SourceFile, Name: path}, slog.Default())
	require.NoError(t, err)
	assert.IsType(t, &blobstore.LocalStore{}, store)

	rc, err := store.Open(context.Background(), path)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "apple\n", string(data))
}

func TestNewStore_MinIO(t *testing.T) {
	store, err := newStore(context.Background(), config.SourceConfig{
		Kind:     config.SourceMinIO,
		Name:     "terms.txt",
		Bucket:   "dumps",
		Endpoint: "localhost:9000",
	}, slog.Default())
	require.NoError(t, err)
	assert.IsType(t, &minioblob.Store{}, store)
}

func TestNewLogger(t *testing.T) {
	l, err := newLogger(config.LogConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	assert.True(t, l.Enabled(context.Background(), slog.LevelDebug))

	l, err = newLogger(config.LogConfig{Level: "warn", Format: "text"})
	require.NoError(t, err)
	assert.False(t, l.Enabled(context.Background(), slog.LevelInfo))

	_, err = newLogger(config.LogConfig{Level: "nope"})
	assert.Error(t, err)
}
