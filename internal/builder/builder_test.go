package builder

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/segbloom/internal/bloom"
	"github.com/hupe1980/segbloom/testutil"
)

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := New(Params{ExpectedItems: 1000, FalsePositiveRate: 0.01})
	require.NoError(t, err)
	return b
}

func TestNew_InvalidParams(t *testing.T) {
	_, err := New(Params{ExpectedItems: 0, FalsePositiveRate: 0.01})
	assert.ErrorIs(t, err, bloom.ErrInvalidParams)

	_, err = New(Params{ExpectedItems: 10, FalsePositiveRate: 1})
	assert.ErrorIs(t, err, bloom.ErrInvalidParams)
}

func TestBuilder_FilterBytes(t *testing.T) {
	b := newTestBuilder(t)
	assert.Equal(t, int64(9600/8), b.FilterBytes())
	assert.Equal(t, DefaultMaxLineBytes, b.Params().MaxLineBytes)
	assert.Equal(t, CompressionAuto, b.Params().Compression)
}

func TestNew_UnknownCompression(t *testing.T) {
	_, err := New(Params{ExpectedItems: 10, FalsePositiveRate: 0.01, Compression: "brotli"})
	assert.ErrorIs(t, err, ErrUnknownCompression)
}

func TestBuilder_Build(t *testing.T) {
	b := newTestBuilder(t)

	f, stats, err := b.Build(context.Background(), strings.NewReader("apple\nbanana\ncherry\n"))
	require.NoError(t, err)

	assert.Equal(t, uint64(3), stats.Terms)
	assert.Equal(t, int64(20), stats.Bytes)
	assert.Equal(t, CompressionNone, stats.Compression)

	for _, term := range []string{"apple", "banana", "cherry"} {
		assert.True(t, f.Contains([]byte(term)), term)
	}
	assert.False(t, f.Contains([]byte("apple\n")))
}

func TestBuilder_LineHandling(t *testing.T) {
	b := newTestBuilder(t)

	// CRLF endings, an empty line and a final line without newline.
	f, stats, err := b.Build(context.Background(), strings.NewReader("alpha\r\n\r\nbeta\ngamma"))
	require.NoError(t, err)

	assert.Equal(t, uint64(4), stats.Terms)
	assert.True(t, f.Contains([]byte("alpha")))
	assert.True(t, f.Contains([]byte("")))
	assert.True(t, f.Contains([]byte("beta")))
	assert.True(t, f.Contains([]byte("gamma")))
}

func TestBuilder_EmptySource(t *testing.T) {
	b := newTestBuilder(t)

	f, stats, err := b.Build(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Zero(t, stats.Terms)
	assert.Zero(t, f.Count())
}

func TestBuilder_Compressed(t *testing.T) {
	const content = "apple\nbanana\ncherry\n"

	encode := map[Compression]func(w io.Writer) io.WriteCloser{
		CompressionZstd: func(w io.Writer) io.WriteCloser {
			enc, err := zstd.NewWriter(w)
			require.NoError(t, err)
			return enc
		},
		CompressionGzip: func(w io.Writer) io.WriteCloser { return gzip.NewWriter(w) },
		CompressionLZ4:  func(w io.Writer) io.WriteCloser { return lz4.NewWriter(w) },
	}

	for comp, newWriter := range encode {
		t.Run(string(comp), func(t *testing.T) {
			var buf bytes.Buffer
			w := newWriter(&buf)
			_, err := io.WriteString(w, content)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			f, stats, err := newTestBuilder(t).Build(context.Background(), &buf)
			require.NoError(t, err)

			assert.Equal(t, comp, stats.Compression)
			assert.Equal(t, uint64(3), stats.Terms)
			assert.True(t, f.Contains([]byte("banana")))
		})
	}
}

func TestBuilder_CompressedMatchesPlain(t *testing.T) {
	rng := testutil.NewRNG(4711)
	data := testutil.Lines(rng.Terms(5000, 12))
	probes := rng.Terms(5000, 11)

	var zbuf bytes.Buffer
	enc, err := zstd.NewWriter(&zbuf)
	require.NoError(t, err)
	_, err = enc.Write(data)
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	b, err := New(Params{ExpectedItems: 5000, FalsePositiveRate: 0.01})
	require.NoError(t, err)

	plain, _, err := b.Build(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)
	packed, stats, err := b.Build(context.Background(), &zbuf)
	require.NoError(t, err)

	assert.Equal(t, CompressionZstd, stats.Compression)
	assert.Equal(t, plain.Count(), packed.Count())
	assert.Equal(t, plain.FillRatio(), packed.FillRatio())
	for _, p := range probes {
		require.Equal(t, plain.Contains(p), packed.Contains(p), string(p))
	}
}

func TestBuilder_InvalidUTF8(t *testing.T) {
	b := newTestBuilder(t)

	f, _, err := b.Build(context.Background(), strings.NewReader("ok\nfine\nbad\xff\xfe\nnever\n"))
	require.Error(t, err)
	assert.Nil(t, f)

	assert.ErrorIs(t, err, ErrSourceRead)
	assert.ErrorIs(t, err, ErrInvalidUTF8)

	var le *LineError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, uint64(3), le.Line)
	assert.Contains(t, err.Error(), "line 3")
}

func TestBuilder_LineTooLong(t *testing.T) {
	b, err := New(Params{ExpectedItems: 10, FalsePositiveRate: 0.01, MaxLineBytes: 8})
	require.NoError(t, err)

	_, _, err = b.Build(context.Background(), strings.NewReader("short\n"+strings.Repeat("x", 64)+"\n"))
	assert.ErrorIs(t, err, ErrSourceRead)
	assert.ErrorIs(t, err, ErrLineTooLong)

	var le *LineError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, uint64(2), le.Line)
}

func TestBuilder_LineLengthBoundary(t *testing.T) {
	const limit = 16

	b, err := New(Params{ExpectedItems: 10, FalsePositiveRate: 0.01, MaxLineBytes: limit})
	require.NoError(t, err)

	atLimit := strings.Repeat("x", limit)
	overLimit := strings.Repeat("x", limit+1)

	tests := []struct {
		name     string
		src      string
		wantLine uint64 // 0 means the build succeeds
	}{
		{name: "at limit", src: atLimit + "\n"},
		{name: "at limit crlf", src: atLimit + "\r\n"},
		{name: "at limit unterminated", src: "ok\n" + atLimit},
		{name: "one over", src: overLimit + "\n", wantLine: 1},
		{name: "one over crlf", src: "ok\n" + overLimit + "\r\n", wantLine: 2},
		{name: "one over unterminated", src: "ok\n" + overLimit, wantLine: 2},
		{name: "two over", src: strings.Repeat("x", limit+2) + "\n", wantLine: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _, err := b.Build(context.Background(), strings.NewReader(tt.src))
			if tt.wantLine == 0 {
				require.NoError(t, err)
				assert.True(t, f.Contains([]byte(atLimit)))
				return
			}

			assert.Nil(t, f)
			assert.ErrorIs(t, err, ErrSourceRead)
			assert.ErrorIs(t, err, ErrLineTooLong)

			var le *LineError
			require.True(t, errors.As(err, &le))
			assert.Equal(t, tt.wantLine, le.Line)
		})
	}
}

func TestBuilder_PlainSourceStartingWithLZ4Magic(t *testing.T) {
	// "\x04\"M\x18" is the LZ4 frame magic and also valid UTF-8.
	first := "\x04\"M\x18abc"
	src := first + "\nother\n"

	for _, comp := range []Compression{CompressionAuto, CompressionNone} {
		t.Run(string(comp), func(t *testing.T) {
			b, err := New(Params{ExpectedItems: 1000, FalsePositiveRate: 0.01, Compression: comp})
			require.NoError(t, err)

			f, stats, err := b.Build(context.Background(), strings.NewReader(src))
			require.NoError(t, err)

			assert.Equal(t, CompressionNone, stats.Compression)
			assert.Equal(t, uint64(2), stats.Terms)
			assert.True(t, f.Contains([]byte(first)))
			assert.True(t, f.Contains([]byte("other")))
		})
	}
}

func TestBuilder_ShortLZ4Magic(t *testing.T) {
	f, stats, err := newTestBuilder(t).Build(context.Background(), strings.NewReader("\x04\"M\x18"))
	require.NoError(t, err)

	assert.Equal(t, CompressionNone, stats.Compression)
	assert.True(t, f.Contains([]byte("\x04\"M\x18")))
}

func TestBuilder_ExplicitCompression(t *testing.T) {
	var zbuf bytes.Buffer
	enc, err := zstd.NewWriter(&zbuf)
	require.NoError(t, err)
	_, err = io.WriteString(enc, "apple\nbanana\n")
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	zb, err := New(Params{ExpectedItems: 1000, FalsePositiveRate: 0.01, Compression: CompressionZstd})
	require.NoError(t, err)

	f, stats, err := zb.Build(context.Background(), &zbuf)
	require.NoError(t, err)
	assert.Equal(t, CompressionZstd, stats.Compression)
	assert.True(t, f.Contains([]byte("banana")))

	gb, err := New(Params{ExpectedItems: 1000, FalsePositiveRate: 0.01, Compression: CompressionGzip})
	require.NoError(t, err)

	_, stats, err = gb.Build(context.Background(), strings.NewReader("apple\n"))
	assert.ErrorIs(t, err, ErrSourceRead)
	assert.Equal(t, CompressionGzip, stats.Compression)
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, CompressionAuto, c)

	c, err = ParseCompression("lz4")
	require.NoError(t, err)
	assert.Equal(t, CompressionLZ4, c)

	_, err = ParseCompression("LZ4")
	assert.ErrorIs(t, err, ErrUnknownCompression)
}

func TestBuilder_ReadError(t *testing.T) {
	boom := errors.New("connection reset")
	r := io.MultiReader(strings.NewReader("a\nb\n"), &failingReader{err: boom})

	_, _, err := newTestBuilder(t).Build(context.Background(), r)
	assert.ErrorIs(t, err, ErrSourceRead)
	assert.ErrorIs(t, err, boom)
}

func TestBuilder_CorruptCompressedStream(t *testing.T) {
	corrupt := append([]byte{0x1f, 0x8b}, []byte("definitely not deflate")...)

	_, stats, err := newTestBuilder(t).Build(context.Background(), bytes.NewReader(corrupt))
	assert.ErrorIs(t, err, ErrSourceRead)
	assert.Equal(t, CompressionGzip, stats.Compression)
}

func TestBuilder_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := strings.Repeat("t\n", ctxCheckEvery+1)
	_, _, err := newTestBuilder(t).Build(ctx, strings.NewReader(src))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrSourceRead)
}

type failingReader struct {
	err error
}

func (r *failingReader) Read([]byte) (int, error) { return 0, r.err }
