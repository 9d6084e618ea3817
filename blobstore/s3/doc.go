// Package s3 provides an S3 implementation of the blobstore.Store interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("ingest/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	svc, err := segbloom.New(store, "2011.csv")
//
// # Features
//
//   - Streaming GetObject for sequential term reads (default)
//   - Parallel ranged download into a spool file for large sources (WithPartSize)
//   - Configurable prefix for multi-tenant isolation
package s3
