package segbloom

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// The promcollector package provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordCreate is called after each segment build.
	// terms is the number of inserted lines, err is nil if the segment was committed.
	RecordCreate(duration time.Duration, terms uint64, err error)

	// RecordQuery is called after each point query.
	// found is false when the segment does not exist.
	RecordQuery(duration time.Duration, found, exists bool)

	// RecordFilterMemory is called with the tracked filter memory after each commit.
	RecordFilterMemory(bytes int64)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordCreate(time.Duration, uint64, error) {}
func (NoopMetricsCollector) RecordQuery(time.Duration, bool, bool)     {}
func (NoopMetricsCollector) RecordFilterMemory(int64)                  {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	CreateCount      atomic.Int64
	CreateErrors     atomic.Int64
	CreateTotalNanos atomic.Int64
	TermsInserted    atomic.Int64
	QueryCount       atomic.Int64
	QueryNotFound    atomic.Int64
	QueryHits        atomic.Int64
	QueryTotalNanos  atomic.Int64
	FilterBytes      atomic.Int64
}

// RecordCreate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCreate(duration time.Duration, terms uint64, err error) {
	b.CreateCount.Add(1)
	b.CreateTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.CreateErrors.Add(1)
		return
	}
	b.TermsInserted.Add(int64(terms))
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(duration time.Duration, found, exists bool) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	switch {
	case !found:
		b.QueryNotFound.Add(1)
	case exists:
		b.QueryHits.Add(1)
	}
}

// RecordFilterMemory implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFilterMemory(bytes int64) {
	b.FilterBytes.Store(bytes)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		CreateCount:    b.CreateCount.Load(),
		CreateErrors:   b.CreateErrors.Load(),
		CreateAvgNanos: avg(b.CreateTotalNanos.Load(), b.CreateCount.Load()),
		TermsInserted:  b.TermsInserted.Load(),
		QueryCount:     b.QueryCount.Load(),
		QueryNotFound:  b.QueryNotFound.Load(),
		QueryHits:      b.QueryHits.Load(),
		QueryAvgNanos:  avg(b.QueryTotalNanos.Load(), b.QueryCount.Load()),
		FilterBytes:    b.FilterBytes.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	CreateCount    int64
	CreateErrors   int64
	CreateAvgNanos int64
	TermsInserted  int64
	QueryCount     int64
	QueryNotFound  int64
	QueryHits      int64
	QueryAvgNanos  int64
	FilterBytes    int64
}
