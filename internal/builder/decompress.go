package builder

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the framing of a term source.
type Compression string

const (
	// CompressionAuto detects the framing from the magic bytes of the stream.
	CompressionAuto Compression = "auto"
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionGzip Compression = "gzip"
	CompressionLZ4  Compression = "lz4"
)

// ParseCompression maps a configuration value to a Compression.
// The empty string means CompressionAuto.
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(s); c {
	case "":
		return CompressionAuto, nil
	case CompressionAuto, CompressionNone, CompressionZstd, CompressionGzip, CompressionLZ4:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCompression, s)
	}
}

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	gzipMagic = []byte{0x1f, 0x8b}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

const (
	// magic, FLG, BD, optional content size, HC
	lz4MinHeader = 4 + 2 + 1
	lz4MaxHeader = lz4MinHeader + 8
)

// decoder returns the decoded stream for the requested framing.
// The returned close func releases decoder resources and never fails.
func decoder(br *bufio.Reader, c Compression) (io.Reader, Compression, func(), error) {
	if c == CompressionAuto {
		c = sniff(br)
	}

	switch c {
	case CompressionZstd:
		dec, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, c, nil, err
		}
		return dec, c, dec.Close, nil
	case CompressionGzip:
		dec, err := gzip.NewReader(br)
		if err != nil {
			return nil, c, nil, err
		}
		return dec, c, func() { _ = dec.Close() }, nil
	case CompressionLZ4:
		return lz4.NewReader(br), c, func() {}, nil
	default:
		return br, CompressionNone, func() {}, nil
	}
}

// sniff peeks at the first bytes of br and guesses its framing.
func sniff(br *bufio.Reader) Compression {
	head, _ := br.Peek(lz4MaxHeader)

	switch {
	case bytes.HasPrefix(head, zstdMagic):
		return CompressionZstd
	case bytes.HasPrefix(head, gzipMagic):
		return CompressionGzip
	case bytes.HasPrefix(head, lz4Magic) && lz4FrameHeader(head):
		return CompressionLZ4
	default:
		return CompressionNone
	}
}

// lz4FrameHeader reports whether head holds a complete LZ4 frame descriptor
// with a matching header checksum. The LZ4 magic is printable text, so the
// magic alone does not identify a frame.
func lz4FrameHeader(head []byte) bool {
	if len(head) < lz4MinHeader {
		return false
	}

	flg := head[4]
	if flg>>6 != 1 {
		return false
	}

	n := lz4MinHeader
	if flg&0x08 != 0 {
		n += 8
	}
	if len(head) < n {
		return false
	}

	// The descriptor alone decodes up to the first block, where it runs dry.
	_, err := lz4.NewReader(bytes.NewReader(head[:n])).Read(make([]byte, 1))
	return !errors.Is(err, lz4.ErrInvalidHeaderChecksum) &&
		!errors.Is(err, lz4.ErrOptionInvalidBlockSize)
}
