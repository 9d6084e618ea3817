package builder

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceRead is returned when the term stream cannot be read or decoded.
	ErrSourceRead = errors.New("source read error")

	// ErrInvalidUTF8 marks a line that is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("line is not valid UTF-8")

	// ErrLineTooLong marks a line longer than Params.MaxLineBytes.
	ErrLineTooLong = errors.New("line too long")

	// ErrUnknownCompression is returned for an unsupported Params.Compression.
	ErrUnknownCompression = errors.New("unknown compression")
)

// LineError reports the line at which a build failed.
// It matches both ErrSourceRead and its cause with errors.Is.
type LineError struct {
	Line uint64 // 1-based; 0 if the stream failed before the first line
	Err  error
}

func (e *LineError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%v: %v", ErrSourceRead, e.Err)
	}
	return fmt.Sprintf("%v at line %d: %v", ErrSourceRead, e.Line, e.Err)
}

func (e *LineError) Unwrap() []error { return []error{ErrSourceRead, e.Err} }
