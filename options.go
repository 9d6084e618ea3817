package segbloom

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hupe1980/segbloom/internal/builder"
)

const (
	// DefaultExpectedItems sizes filters for one daily term dump.
	DefaultExpectedItems = 16_918_463

	// DefaultFalsePositiveRate is the default target false positive rate.
	DefaultFalsePositiveRate = 0.001
)

// Compression selects how the term source is decoded.
type Compression = builder.Compression

const (
	// CompressionAuto detects zstd, gzip or LZ4 framing from the stream.
	CompressionAuto = builder.CompressionAuto
	// CompressionNone reads the source as plain text.
	CompressionNone = builder.CompressionNone
	CompressionZstd = builder.CompressionZstd
	CompressionGzip = builder.CompressionGzip
	CompressionLZ4  = builder.CompressionLZ4
)

// ParseCompression parses "auto", "none", "zstd", "gzip" or "lz4".
// The empty string means CompressionAuto.
func ParseCompression(s string) (Compression, error) {
	return builder.ParseCompression(s)
}

// ResourceLimits bounds the resources consumed by segment builds.
// The zero value tracks filter memory without enforcing a limit.
type ResourceLimits struct {
	// MemoryLimitBytes rejects new builds with ErrResourceExhausted once the
	// filters held by the registry would exceed it. 0 disables the limit.
	MemoryLimitBytes int64 `json:"memory_limit_bytes"`

	// MaxConcurrentBuilds bounds the filters populated at once (default GOMAXPROCS).
	// Further builds wait for a slot after reserving their identifier.
	MaxConcurrentBuilds int64 `json:"max_concurrent_builds"`

	// SourceBytesPerSec throttles reads from the term source. 0 is unlimited.
	SourceBytesPerSec int64 `json:"source_bytes_per_sec"`
}

type options struct {
	expectedItems     uint64
	falsePositiveRate float64
	maxLineBytes      int
	compression       Compression
	progressEvery     uint64
	limits            ResourceLimits
	metricsCollector  MetricsCollector
	logger            *Logger
	now               func() time.Time
}

// Option configures a Service.
type Option func(*options)

// WithExpectedItems sets the item count new filters are sized for.
// The count is fixed; it is never derived from the source.
func WithExpectedItems(n uint64) Option {
	return func(o *options) {
		o.expectedItems = n
	}
}

// WithFalsePositiveRate sets the target false positive rate (0 < p < 1).
func WithFalsePositiveRate(p float64) Option {
	return func(o *options) {
		o.falsePositiveRate = p
	}
}

// WithMaxLineBytes bounds a single term. Longer lines fail the build with
// ErrSourceRead.
func WithMaxLineBytes(n int) Option {
	return func(o *options) {
		o.maxLineBytes = n
	}
}

// WithCompression sets the framing of the term source (default CompressionAuto).
// Use CompressionNone when plain-text terms may start with compression magic bytes.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithProgressEvery sets how many terms pass between debug progress logs.
func WithProgressEvery(n uint64) Option {
	return func(o *options) {
		o.progressEvery = n
	}
}

// WithResourceLimits configures build concurrency, source throttling and
// optional filter memory admission.
func WithResourceLimits(limits ResourceLimits) Option {
	return func(o *options) {
		o.limits = limits
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &segbloom.BasicMetricsCollector{}
//	svc, _ := segbloom.New(store, "terms.txt", segbloom.WithMetricsCollector(metrics))
//	// ... use svc ...
//	stats := metrics.GetStats()
//	fmt.Printf("Segments: %d, Avg build: %dns\n", stats.CreateCount, stats.CreateAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := segbloom.NewJSONLogger(slog.LevelInfo)
//	svc, _ := segbloom.New(store, "terms.txt", segbloom.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithClock overrides the source of segment timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func applyOptions(optFns []Option) (options, error) {
	o := options{
		expectedItems:     DefaultExpectedItems,
		falsePositiveRate: DefaultFalsePositiveRate,
		compression:       CompressionAuto,
		metricsCollector:  NoopMetricsCollector{},
		logger:            NoopLogger(),
		now:               time.Now,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}

	if o.expectedItems == 0 {
		return o, fmt.Errorf("%w: expected items must be positive", ErrInvalidConfig)
	}
	if !(o.falsePositiveRate > 0 && o.falsePositiveRate < 1) {
		return o, fmt.Errorf("%w: false positive rate %g not in (0, 1)", ErrInvalidConfig, o.falsePositiveRate)
	}
	if o.maxLineBytes < 0 {
		return o, fmt.Errorf("%w: max line bytes must not be negative", ErrInvalidConfig)
	}
	if _, err := builder.ParseCompression(string(o.compression)); err != nil {
		return o, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if o.now == nil {
		o.now = time.Now
	}

	return o, nil
}
