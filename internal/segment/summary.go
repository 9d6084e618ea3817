package segment

import (
	"time"

	"github.com/hupe1980/segbloom/internal/bloom"
)

// ID identifies a segment. Identifiers start at 1.
type ID = uint32

// Summary is the immutable record of one committed segment.
type Summary struct {
	id          ID
	createdAt   time.Time
	completedAt time.Time
	terms       uint64
	filter      *bloom.Filter
}

// NewSummary takes ownership of filter; the caller must not touch it again.
func NewSummary(id ID, createdAt, completedAt time.Time, terms uint64, filter *bloom.Filter) *Summary {
	return &Summary{
		id:          id,
		createdAt:   createdAt,
		completedAt: completedAt,
		terms:       terms,
		filter:      filter,
	}
}

// ID returns the segment identifier.
func (s *Summary) ID() ID { return s.id }

// CreatedAt returns when the build started.
func (s *Summary) CreatedAt() time.Time { return s.createdAt }

// CompletedAt returns when the build finished.
func (s *Summary) CompletedAt() time.Time { return s.completedAt }

// Terms returns the number of lines inserted.
func (s *Summary) Terms() uint64 { return s.terms }

// Contains reports whether term may be in the segment.
func (s *Summary) Contains(term []byte) bool {
	return s.filter.Contains(term)
}

// FilterInfo describes the summary's filter.
type FilterInfo struct {
	NumBits                    uint64
	HashFunctions              uint32
	ExpectedItems              uint64
	TargetFalsePositiveRate    float64
	EstimatedFalsePositiveRate float64
	SizeBytes                  int64
}

// Filter returns a description of the filter. The filter itself is never
// exposed.
func (s *Summary) Filter() FilterInfo {
	f := s.filter
	return FilterInfo{
		NumBits:                    f.NumBits(),
		HashFunctions:              f.K(),
		ExpectedItems:              f.ExpectedItems(),
		TargetFalsePositiveRate:    f.TargetFalsePositiveRate(),
		EstimatedFalsePositiveRate: f.EstimatedFalsePositiveRate(),
		SizeBytes:                  f.SizeBytes(),
	}
}
