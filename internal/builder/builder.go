package builder

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/hupe1980/segbloom/internal/bloom"
)

const (
	// DefaultMaxLineBytes bounds a single term.
	DefaultMaxLineBytes = 1 << 20

	// DefaultProgressEvery is the term interval between progress logs.
	DefaultProgressEvery = 1_000_000

	ctxCheckEvery = 1 << 16
	readBufSize   = 256 << 10
)

// Params fixes the sizing of every filter a Builder produces.
type Params struct {
	ExpectedItems     uint64
	FalsePositiveRate float64
	MaxLineBytes      int         // 0 means DefaultMaxLineBytes
	Compression       Compression // "" means CompressionAuto
}

// Stats describes a completed build.
type Stats struct {
	Terms       uint64        // lines inserted, duplicates included
	Bytes       int64         // bytes read from the source before decoding
	Compression Compression   // framing used to decode the source
	Duration    time.Duration // wall time of Build
}

// Builder populates Bloom filters from term streams.
type Builder struct {
	params        Params
	logger        *slog.Logger
	progressEvery uint64
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger for progress and completion messages.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// WithProgressEvery sets the term interval between debug progress logs.
// 0 disables progress logging.
func WithProgressEvery(n uint64) Option {
	return func(b *Builder) {
		b.progressEvery = n
	}
}

// New validates params and returns a Builder.
func New(params Params, optFns ...Option) (*Builder, error) {
	if params.ExpectedItems == 0 || !(params.FalsePositiveRate > 0 && params.FalsePositiveRate < 1) {
		return nil, bloom.ErrInvalidParams
	}
	if params.MaxLineBytes <= 0 {
		params.MaxLineBytes = DefaultMaxLineBytes
	}
	comp, err := ParseCompression(string(params.Compression))
	if err != nil {
		return nil, err
	}
	params.Compression = comp

	b := &Builder{
		params:        params,
		progressEvery: DefaultProgressEvery,
	}
	for _, fn := range optFns {
		fn(b)
	}

	return b, nil
}

// Params returns the sizing parameters.
func (b *Builder) Params() Params { return b.params }

// FilterBytes returns the bit-array size of every filter this Builder makes.
func (b *Builder) FilterBytes() int64 {
	numBits, _ := bloom.Size(b.params.ExpectedItems, b.params.FalsePositiveRate)
	return int64(numBits / 8)
}

// Build reads r to EOF, inserting every line into a new filter.
//
// On error the partially populated filter is dropped and nil is returned.
// Read and decode failures match ErrSourceRead.
func (b *Builder) Build(ctx context.Context, r io.Reader) (*bloom.Filter, Stats, error) {
	start := time.Now()
	stats := Stats{Compression: CompressionNone}

	f, err := bloom.New(b.params.ExpectedItems, b.params.FalsePositiveRate)
	if err != nil {
		return nil, stats, err
	}

	cr := &countingReader{r: r}
	dec, comp, closeDec, err := decoder(bufio.NewReaderSize(cr, readBufSize), b.params.Compression)
	stats.Compression = comp
	if err != nil {
		return nil, stats, &LineError{Err: err}
	}
	defer closeDec()

	// The scanner buffer also holds the "\r\n" terminator.
	maxToken := b.params.MaxLineBytes + 2
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, min(64<<10, maxToken)), maxToken)

	var line uint64
	for sc.Scan() {
		line++

		// ScanLines already drops a trailing "\r".
		term := sc.Bytes()
		if len(term) > b.params.MaxLineBytes {
			return nil, stats, &LineError{Line: line, Err: ErrLineTooLong}
		}
		if !utf8.Valid(term) {
			return nil, stats, &LineError{Line: line, Err: ErrInvalidUTF8}
		}

		f.Add(term)

		if line%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, stats, err
			}
		}
		if b.progressEvery > 0 && line%b.progressEvery == 0 && b.logger != nil {
			b.logger.DebugContext(ctx, "building bloom filter", "terms", line, "elapsed", time.Since(start))
		}
	}

	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			err = ErrLineTooLong
		}
		// Context errors from a throttled reader are not source faults.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, stats, err
		}
		return nil, stats, &LineError{Line: line + 1, Err: err}
	}

	stats.Terms = line
	stats.Bytes = cr.n
	stats.Duration = time.Since(start)

	if b.logger != nil {
		b.logger.InfoContext(ctx, "built bloom filter",
			"terms", stats.Terms,
			"bytes", stats.Bytes,
			"compression", stats.Compression,
			"duration", stats.Duration,
			"estimated_fp_rate", f.EstimatedFalsePositiveRate(),
		)
	}

	return f, stats, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
