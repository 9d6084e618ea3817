// Package segbloom keeps an in-memory, append-only index of immutable
// segments. Each segment summarizes the terms of one ingestion batch in a
// Bloom filter.
//
// # Quick Start
//
//	store := blobstore.NewLocalStore("/data")
//	svc, _ := segbloom.New(store, "2011.csv",
//	    segbloom.WithExpectedItems(16_918_463),
//	    segbloom.WithFalsePositiveRate(0.001),
//	)
//
//	id, err := svc.CreateSegment(ctx)          // builds and commits a segment
//	res, err := svc.QuerySegment(id, []byte("apple"))
//	if errors.Is(err, segbloom.ErrSegmentNotFound) { ... }
//	fmt.Println(res.Exists)
//
// # Creation Protocol
//
// CreateSegment reserves the next identifier, builds the filter on its own
// goroutine without holding any registry lock, and commits the summary.
// Identifiers are strictly increasing and never reused; a failed build leaves
// its identifier unfulfilled forever.
//
// The build is detached from the caller: canceling ctx makes CreateSegment
// return early but the segment is still committed when the build succeeds.
//
// # Queries
//
// QuerySegment never waits for in-flight builds. Segments that are still
// building, failed, or were never reserved all report ErrSegmentNotFound.
// Membership answers may be false positives at roughly the configured rate
// and are never false negatives.
//
// # Ordering
//
// Segments() lists summaries in completion order. Concurrent builds can
// finish out of identifier order; use QuerySegment or Segment for lookups
// by identifier.
package segbloom
