package segbloom

import (
	"errors"

	"github.com/hupe1980/segbloom/internal/builder"
	"github.com/hupe1980/segbloom/internal/segment"
)

var (
	// ErrSourceUnavailable is returned when the term source cannot be opened.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrSourceRead is returned when a line of the term source cannot be read
	// or decoded. The error message carries the failing line number.
	ErrSourceRead = builder.ErrSourceRead

	// ErrSegmentNotFound is returned when a query names an identifier with no
	// committed segment.
	ErrSegmentNotFound = errors.New("segment not found")

	// ErrIDSpaceExhausted is returned when every 32-bit identifier has been used.
	ErrIDSpaceExhausted = segment.ErrIDSpaceExhausted

	// ErrResourceExhausted is returned when a configured memory limit rejects
	// a new filter.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrInvalidConfig is returned by New for invalid options.
	ErrInvalidConfig = errors.New("invalid configuration")
)
