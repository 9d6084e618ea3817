// Package blobstore provides the term sources segments are built from.
//
// A term source is an opaque, newline-delimited byte stream identified by a
// name. Store.Open returns a forward-only reader over it; the segment
// builder never seeks.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem, memory-mapped with sequential read-ahead
//   - MemoryStore: in-memory blobs for tests and embedding
//   - s3.Store: Amazon S3 (streaming GetObject or parallel ranged download)
//   - minio.Store: MinIO and other S3-compatible object stores
//
// Implementations must be safe for concurrent use and must return an error
// satisfying errors.Is(err, ErrNotFound) for missing sources.
package blobstore
