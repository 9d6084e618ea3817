package segbloom

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/segbloom/blobstore"
	"github.com/hupe1980/segbloom/internal/builder"
	"github.com/hupe1980/segbloom/internal/resource"
	"github.com/hupe1980/segbloom/internal/segment"
)

// SegmentID identifies a segment. Identifiers start at 1.
type SegmentID = segment.ID

// QueryResult is the answer to a point query.
type QueryResult struct {
	Exists        bool      `json:"exists"`
	SegmentNumber SegmentID `json:"segment_number"`
}

// SegmentState is the lifecycle position of an identifier.
type SegmentState string

const (
	StateUnknown   SegmentState = "unknown"
	StateBuilding  SegmentState = "building"
	StateCommitted SegmentState = "committed"
	StateFailed    SegmentState = "failed"
)

// SegmentStatus reports the state of one identifier.
type SegmentStatus struct {
	SegmentNumber SegmentID    `json:"segment_number"`
	State         SegmentState `json:"state"`
}

// SegmentInfo describes a committed segment.
type SegmentInfo struct {
	SegmentNumber              SegmentID `json:"segment_number"`
	CreatedAt                  time.Time `json:"created_at"`
	CompletedAt                time.Time `json:"completed_at"`
	Terms                      uint64    `json:"terms"`
	NumBits                    uint64    `json:"num_bits"`
	HashFunctions              uint32    `json:"hash_functions"`
	ExpectedItems              uint64    `json:"expected_items"`
	TargetFalsePositiveRate    float64   `json:"target_false_positive_rate"`
	EstimatedFalsePositiveRate float64   `json:"estimated_false_positive_rate"`
	SizeBytes                  int64     `json:"size_bytes"`
}

// Settings is the effective configuration of a Service after defaults.
type Settings struct {
	ExpectedItems     uint64         `json:"expected_items"`
	FalsePositiveRate float64        `json:"false_positive_rate"`
	MaxLineBytes      int            `json:"max_line_bytes"`
	Compression       Compression    `json:"compression"`
	Limits            ResourceLimits `json:"limits"`
}

// Stats is a point-in-time view of the service.
type Stats struct {
	Reserved          SegmentID `json:"reserved"`
	Building          uint64    `json:"building"`
	Committed         uint64    `json:"committed"`
	Failed            uint64    `json:"failed"`
	ActiveBuilds      int64     `json:"active_builds"`
	BuildSlots        int64     `json:"build_slots"`
	FilterMemoryBytes int64     `json:"filter_memory_bytes"`
	MemoryLimitBytes  int64     `json:"memory_limit_bytes"`
	PeakRSSBytes      int64     `json:"peak_rss_bytes"`
}

// Service creates segments from one term source and answers membership
// queries against them.
type Service struct {
	store  blobstore.Store
	source string

	registry  *segment.Registry
	builder   *builder.Builder
	resources *resource.Controller

	metrics MetricsCollector
	logger  *Logger
	now     func() time.Time

	inflight sync.WaitGroup
}

// New creates a Service that builds every segment from the named source in store.
func New(store blobstore.Store, source string, optFns ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if source == "" {
		return nil, fmt.Errorf("%w: source is required", ErrInvalidConfig)
	}

	o, err := applyOptions(optFns)
	if err != nil {
		return nil, err
	}

	bopts := []builder.Option{builder.WithLogger(o.logger.Logger)}
	if o.progressEvery > 0 {
		bopts = append(bopts, builder.WithProgressEvery(o.progressEvery))
	}

	b, err := builder.New(builder.Params{
		ExpectedItems:     o.expectedItems,
		FalsePositiveRate: o.falsePositiveRate,
		MaxLineBytes:      o.maxLineBytes,
		Compression:       o.compression,
	}, bopts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return &Service{
		store:    store,
		source:   source,
		registry: segment.NewRegistry(),
		builder:  b,
		resources: resource.NewController(resource.Config{
			MemoryLimitBytes:    o.limits.MemoryLimitBytes,
			MaxConcurrentBuilds: o.limits.MaxConcurrentBuilds,
			SourceBytesPerSec:   o.limits.SourceBytesPerSec,
		}),
		metrics: o.metricsCollector,
		logger:  o.logger,
		now:     o.now,
	}, nil
}

// CreateSegment builds a segment from the term source and commits it.
//
// If ctx is canceled first, CreateSegment returns the reserved identifier
// with ctx.Err(); the build keeps running and commits on success.
func (s *Service) CreateSegment(ctx context.Context) (SegmentID, error) {
	id, done, err := s.CreateSegmentAsync(ctx)
	if err != nil {
		return 0, err
	}

	select {
	case err := <-done:
		return id, err
	case <-ctx.Done():
		return id, ctx.Err()
	}
}

// CreateSegmentAsync reserves an identifier and starts the build.
// The channel receives the build outcome once and is then closed.
func (s *Service) CreateSegmentAsync(ctx context.Context) (SegmentID, <-chan error, error) {
	id, err := s.registry.Reserve()
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to reserve segment number", "error", err)
		return 0, nil, err
	}

	// The build outlives the request that triggered it.
	bctx := context.WithoutCancel(ctx)
	done := make(chan error, 1)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer close(done)
		done <- s.build(bctx, id)
	}()

	return id, done, nil
}

func (s *Service) build(ctx context.Context, id SegmentID) error {
	start := s.now()
	logger := s.logger.WithSegment(id)

	terms, err := s.buildAndCommit(ctx, id, start)
	duration := s.now().Sub(start)

	s.metrics.RecordCreate(duration, terms, err)
	logger.LogCreate(ctx, id, terms, duration, err)

	if err != nil {
		if ferr := s.registry.Fail(id); ferr != nil {
			logger.ErrorContext(ctx, "failed to release segment number", "error", ferr)
		}
		return err
	}

	return nil
}

func (s *Service) buildAndCommit(ctx context.Context, id SegmentID, start time.Time) (uint64, error) {
	if !s.resources.TryAcquireBuild() {
		s.logger.DebugContext(ctx, "waiting for build slot", "segment_number", id, "active_builds", s.resources.ActiveBuilds())
		if err := s.resources.AcquireBuild(ctx); err != nil {
			return 0, err
		}
	}
	defer s.resources.ReleaseBuild()

	filterBytes := s.builder.FilterBytes()
	if err := s.resources.AcquireMemory(filterBytes); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrResourceExhausted, err)
	}
	committed := false
	defer func() {
		if !committed {
			s.resources.ReleaseMemory(filterBytes)
		}
	}()

	rc, err := s.store.Open(ctx, s.source)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, s.source, err)
	}
	defer func() { _ = rc.Close() }()

	f, stats, err := s.builder.Build(ctx, s.resources.LimitReader(ctx, rc))
	if err != nil {
		return 0, err
	}

	summary := segment.NewSummary(id, start, s.now(), stats.Terms, f)
	if err := s.registry.Append(summary); err != nil {
		return 0, err
	}
	committed = true

	tracked := s.resources.MemoryUsage()
	s.metrics.RecordFilterMemory(tracked)
	s.logger.LogCommit(ctx, id, s.registry.Len(), f.SizeBytes(), tracked, resource.PeakRSS())

	return stats.Terms, nil
}

// QuerySegment tests term against the committed segment id.
// It returns ErrSegmentNotFound if the segment was never created, is still
// building or failed to build.
func (s *Service) QuerySegment(id SegmentID, term []byte) (QueryResult, error) {
	start := time.Now()

	summary, ok := s.registry.Find(id)
	if !ok {
		s.metrics.RecordQuery(time.Since(start), false, false)
		s.logger.LogQuery(context.Background(), id, term, false, false)
		return QueryResult{}, fmt.Errorf("%w: %d", ErrSegmentNotFound, id)
	}

	exists := summary.Contains(term)

	s.metrics.RecordQuery(time.Since(start), true, exists)
	s.logger.LogQuery(context.Background(), id, term, true, exists)

	return QueryResult{Exists: exists, SegmentNumber: id}, nil
}

// Status reports the lifecycle state of id.
func (s *Service) Status(id SegmentID) SegmentStatus {
	var state SegmentState
	switch s.registry.State(id) {
	case segment.StateBuilding:
		state = StateBuilding
	case segment.StateCommitted:
		state = StateCommitted
	case segment.StateFailed:
		state = StateFailed
	default:
		state = StateUnknown
	}
	return SegmentStatus{SegmentNumber: id, State: state}
}

// Segment returns the description of a committed segment.
func (s *Service) Segment(id SegmentID) (SegmentInfo, bool) {
	summary, ok := s.registry.Find(id)
	if !ok {
		return SegmentInfo{}, false
	}
	return newSegmentInfo(summary), true
}

// Segments lists committed segments in completion order, which can differ
// from identifier order.
func (s *Service) Segments() []SegmentInfo {
	snap := s.registry.Snapshot()

	out := make([]SegmentInfo, len(snap))
	for i, summary := range snap {
		out[i] = newSegmentInfo(summary)
	}
	return out
}

// Stats returns counters and memory diagnostics.
func (s *Service) Stats() Stats {
	c := s.registry.Counts()
	return Stats{
		Reserved:          c.Reserved,
		Building:          c.Building,
		Committed:         c.Committed,
		Failed:            c.Failed,
		ActiveBuilds:      s.resources.ActiveBuilds(),
		BuildSlots:        s.resources.Config().MaxConcurrentBuilds,
		FilterMemoryBytes: s.resources.MemoryUsage(),
		MemoryLimitBytes:  s.resources.MemoryLimit(),
		PeakRSSBytes:      resource.PeakRSS(),
	}
}

// Settings returns the effective configuration.
func (s *Service) Settings() Settings {
	p := s.builder.Params()
	c := s.resources.Config()
	return Settings{
		ExpectedItems:     p.ExpectedItems,
		FalsePositiveRate: p.FalsePositiveRate,
		MaxLineBytes:      p.MaxLineBytes,
		Compression:       p.Compression,
		Limits: ResourceLimits{
			MemoryLimitBytes:    c.MemoryLimitBytes,
			MaxConcurrentBuilds: c.MaxConcurrentBuilds,
			SourceBytesPerSec:   c.SourceBytesPerSec,
		},
	}
}

// Wait blocks until every started build has finished or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newSegmentInfo(s *segment.Summary) SegmentInfo {
	f := s.Filter()
	return SegmentInfo{
		SegmentNumber:              s.ID(),
		CreatedAt:                  s.CreatedAt(),
		CompletedAt:                s.CompletedAt(),
		Terms:                      s.Terms(),
		NumBits:                    f.NumBits,
		HashFunctions:              f.HashFunctions,
		ExpectedItems:              f.ExpectedItems,
		TargetFalsePositiveRate:    f.TargetFalsePositiveRate,
		EstimatedFalsePositiveRate: f.EstimatedFalsePositiveRate,
		SizeBytes:                  f.SizeBytes,
	}
}

// IsNotFound reports whether err means the segment has no committed summary.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSegmentNotFound)
}
