package buffer

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// LineRange represents an inclusive range of 1-based line numbers.
// A single line is represented as Start == End.
type LineRange struct {
	Start int // Inclusive first line
	End   int // Inclusive last line
}

// NewLineRange creates a normalized LineRange spanning both lines
// regardless of argument order.
func NewLineRange(a, b int) LineRange {
	if a > b {
		a, b = b, a
	}
	return LineRange{Start: a, End: b}
}

// String returns a human-readable representation of the range.
func (r LineRange) String() string {
	return fmt.Sprintf("[%d:%d]", r.Start, r.End)
}

// Normalize returns the range with Start <= End.
func (r LineRange) Normalize() LineRange {
	if r.Start > r.End {
		return LineRange{Start: r.End, End: r.Start}
	}
	return r
}

// Clamp restricts the range to [1, lineCount]. Both ends are pulled
// into bounds, so a range that starts past the last line collapses to
// the last line rather than surviving out of range.
func (r LineRange) Clamp(lineCount int) LineRange {
	if lineCount < 1 {
		return LineRange{Start: 1, End: 1}
	}
	if r.Start < 1 {
		r.Start = 1
	}
	if r.Start > lineCount {
		r.Start = lineCount
	}
	if r.End > lineCount {
		r.End = lineCount
	}
	if r.End < r.Start {
		r.End = r.Start
	}
	return r
}

// Lines returns the number of lines covered by the range.
func (r LineRange) Lines() int {
	return r.End - r.Start + 1
}

// Contains returns true if the given line falls inside the range.
func (r LineRange) Contains(line int) bool {
	return line >= r.Start && line <= r.End
}

// IsSingleLine returns true if the range covers exactly one line.
func (r LineRange) IsSingleLine() bool {
	return r.Start == r.End
}

// CountLines returns the number of lines in a text fragment, with a
// minimum of one for non-fragmented text. The empty string counts as
// a single empty line for splice accounting.
func CountLines(s string) int {
	return strings.Count(s, "\n") + 1
}

// RevisionID uniquely identifies a buffer revision.
// IDs are comparable and strictly increasing within a process.
type RevisionID uint64

var revisionCounter uint64

// NewRevisionID generates a new unique revision ID.
func NewRevisionID() RevisionID {
	return RevisionID(atomic.AddUint64(&revisionCounter, 1))
}
