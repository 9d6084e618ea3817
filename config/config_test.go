package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/segbloom"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "segbloomd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "127.0.0.1:7878", cfg.Listen)
	assert.Equal(t, SourceFile, cfg.Source.Kind)
	assert.Equal(t, uint64(16_918_463), cfg.Bloom.ExpectedItems)
	assert.InDelta(t, 0.001, cfg.Bloom.FalsePositiveRate, 1e-12)
	assert.Zero(t, cfg.ResourceLimits().MemoryLimitBytes)

	comp, err := cfg.Bloom.ParseCompression()
	require.NoError(t, err)
	assert.Equal(t, segbloom.CompressionAuto, comp)
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
shutdown_timeout: 5s
source:
  kind: s3
  name: terms/2011.csv.zst
  bucket: dumps
  region: eu-west-1
  part_size_mb: 16
  concurrency: 8
bloom:
  expected_items: 1000000
  false_positive_rate: 0.01
  compression: zstd
resources:
  memory_limit_mb: 512
  max_concurrent_builds: 2
log:
  level: debug
  format: json
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, SourceS3, cfg.Source.Kind)
	assert.Equal(t, "dumps", cfg.Source.Bucket)
	assert.Equal(t, int64(16<<20), cfg.Source.PartSizeBytes())
	assert.Equal(t, uint64(1_000_000), cfg.Bloom.ExpectedItems)
	// Unset keys keep their defaults.
	assert.Equal(t, 1<<20, cfg.Bloom.MaxLineBytes)

	comp, err := cfg.Bloom.ParseCompression()
	require.NoError(t, err)
	assert.Equal(t, segbloom.CompressionZstd, comp)

	limits := cfg.ResourceLimits()
	assert.Equal(t, int64(512<<20), limits.MemoryLimitBytes)
	assert.Equal(t, int64(2), limits.MaxConcurrentBuilds)

	level, err := cfg.Log.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfig(writeConfig(t, "listen: [\n"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "source:\n  kind: ftp\n"))
	assert.ErrorContains(t, err, "source.kind")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty listen", func(c *Config) { c.Listen = "" }, "listen"},
		{"empty source", func(c *Config) { c.Source.Name = "" }, "source.name"},
		{"s3 without bucket", func(c *Config) { c.Source.Kind = SourceS3 }, "source.bucket"},
		{"minio without endpoint", func(c *Config) {
			c.Source.Kind = SourceMinIO
			c.Source.Bucket = "b"
		}, "source.endpoint"},
		{"zero items", func(c *Config) { c.Bloom.ExpectedItems = 0 }, "expected_items"},
		{"fp rate", func(c *Config) { c.Bloom.FalsePositiveRate = 1 }, "false_positive_rate"},
		{"compression", func(c *Config) { c.Bloom.Compression = "brotli" }, "bloom.compression"},
		{"negative memory", func(c *Config) { c.Resources.MemoryLimitMB = -1 }, "resources"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
