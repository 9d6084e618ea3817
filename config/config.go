// Package config loads the segbloomd configuration file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/segbloom"
)

// Source kinds.
const (
	SourceFile  = "file"
	SourceS3    = "s3"
	SourceMinIO = "minio"
)

// Config holds the full segbloomd configuration.
type Config struct {
	Listen          string         `yaml:"listen"`
	ShutdownTimeout time.Duration  `yaml:"shutdown_timeout"`
	Source          SourceConfig   `yaml:"source"`
	Bloom           BloomConfig    `yaml:"bloom"`
	Resources       ResourceConfig `yaml:"resources"`
	Log             LogConfig      `yaml:"log"`
}

// SourceConfig names the term source every segment is built from.
type SourceConfig struct {
	Kind string `yaml:"kind"` // file | s3 | minio
	Name string `yaml:"name"` // file path or object key

	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"` // minio only

	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl"`

	// PartSizeMB > 0 switches S3 sources to a parallel ranged download
	// spooled to SpoolDir before the build reads it.
	PartSizeMB  int    `yaml:"part_size_mb"`
	Concurrency int    `yaml:"concurrency"`
	SpoolDir    string `yaml:"spool_dir"`
}

// BloomConfig fixes the sizing of every segment filter.
type BloomConfig struct {
	ExpectedItems     uint64  `yaml:"expected_items"`
	FalsePositiveRate float64 `yaml:"false_positive_rate"`
	MaxLineBytes      int     `yaml:"max_line_bytes"`
	// Compression is auto | none | zstd | gzip | lz4. Plain sources whose
	// terms may start with compression magic bytes should use none.
	Compression string `yaml:"compression"`
}

// ResourceConfig bounds build resources.
type ResourceConfig struct {
	MemoryLimitMB       int64 `yaml:"memory_limit_mb"` // 0 = track only
	MaxConcurrentBuilds int64 `yaml:"max_concurrent_builds"`
	SourceBytesPerSec   int64 `yaml:"source_bytes_per_sec"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:          "127.0.0.1:7878",
		ShutdownTimeout: 30 * time.Second,
		Source: SourceConfig{
			Kind: SourceFile,
			Name: "2011.csv",
		},
		Bloom: BloomConfig{
			ExpectedItems:     segbloom.DefaultExpectedItems,
			FalsePositiveRate: segbloom.DefaultFalsePositiveRate,
			MaxLineBytes:      1 << 20,
			Compression:       string(segbloom.CompressionAuto),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads and parses a YAML config file. Returns DefaultConfig merged with the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout must be >= 0")
	}

	if c.Source.Name == "" {
		return fmt.Errorf("source.name is required")
	}
	switch c.Source.Kind {
	case SourceFile:
	case SourceS3:
		if c.Source.Bucket == "" {
			return fmt.Errorf("source.bucket is required for kind %q", c.Source.Kind)
		}
		if c.Source.PartSizeMB < 0 || c.Source.Concurrency < 0 {
			return fmt.Errorf("source.part_size_mb and source.concurrency must be >= 0")
		}
	case SourceMinIO:
		if c.Source.Bucket == "" {
			return fmt.Errorf("source.bucket is required for kind %q", c.Source.Kind)
		}
		if c.Source.Endpoint == "" {
			return fmt.Errorf("source.endpoint is required for kind %q", c.Source.Kind)
		}
	default:
		return fmt.Errorf("unsupported source.kind %q (use file, s3 or minio)", c.Source.Kind)
	}

	if c.Bloom.ExpectedItems == 0 {
		return fmt.Errorf("bloom.expected_items must be > 0")
	}
	if !(c.Bloom.FalsePositiveRate > 0 && c.Bloom.FalsePositiveRate < 1) {
		return fmt.Errorf("bloom.false_positive_rate must be in (0, 1)")
	}
	if c.Bloom.MaxLineBytes < 0 {
		return fmt.Errorf("bloom.max_line_bytes must be >= 0")
	}
	if _, err := c.Bloom.ParseCompression(); err != nil {
		return fmt.Errorf("bloom.compression: %w", err)
	}

	if c.Resources.MemoryLimitMB < 0 || c.Resources.MaxConcurrentBuilds < 0 || c.Resources.SourceBytesPerSec < 0 {
		return fmt.Errorf("resources must be >= 0")
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log.format %q (use text or json)", c.Log.Format)
	}

	return nil
}

// ParseCompression parses Compression.
func (b BloomConfig) ParseCompression() (segbloom.Compression, error) {
	return segbloom.ParseCompression(b.Compression)
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// ResourceLimits converts the resource section for segbloom.WithResourceLimits.
func (c *Config) ResourceLimits() segbloom.ResourceLimits {
	return segbloom.ResourceLimits{
		MemoryLimitBytes:    c.Resources.MemoryLimitMB * 1024 * 1024,
		MaxConcurrentBuilds: c.Resources.MaxConcurrentBuilds,
		SourceBytesPerSec:   c.Resources.SourceBytesPerSec,
	}
}

// PartSizeBytes returns the S3 download part size in bytes.
func (s SourceConfig) PartSizeBytes() int64 { return int64(s.PartSizeMB) * 1024 * 1024 }
