// Package builder populates a Bloom filter from a newline-delimited term
// stream.
//
// Params.Compression selects the framing of the stream. CompressionAuto sniffs
// the magic bytes for zstd, gzip or LZ4 and decodes transparently; an LZ4
// frame must also carry a valid descriptor checksum. CompressionNone reads the
// bytes as they are. Every line is one term: a trailing "\r" is dropped, an empty
// line is the empty term and a final line without "\n" still counts. Lines
// must be valid UTF-8.
//
// A Builder is safe for concurrent use; each Build call populates its own
// filter on the calling goroutine and hands it off only on success.
package builder
