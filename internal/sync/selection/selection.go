// Package selection tracks the active line and active line range in
// the source text, independent of which rendered region was clicked.
package selection

import (
	"strings"
	"sync"

	"github.com/dshills/texmirror/internal/engine/buffer"
)

// Model holds the current selection state. All methods are thread-safe.
//
// The model distinguishes a single active line from a multi-line
// range: a selection confined to one line is an active line, not a
// range, so highlighting stays per-line in the common case.
type Model struct {
	mu        sync.RWMutex
	lineCount int
	active    int
	rng       buffer.LineRange
	hasRange  bool
}

// New creates an empty selection model.
func New() *Model {
	return &Model{}
}

// SetLineCount updates the number of valid lines. Called after every
// buffer mutation; the current selection is re-clamped against it.
func (m *Model) SetLineCount(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n < 0 {
		n = 0
	}
	m.lineCount = n
	if n == 0 {
		m.active = 0
		m.hasRange = false
		return
	}
	if m.active > n {
		m.active = n
	}
	if m.hasRange {
		m.rng = m.rng.Clamp(n)
	}
}

// clampLocked restricts a line to [1, lineCount]. Caller holds the lock.
func (m *Model) clampLocked(line int) int {
	if line < 1 {
		return 1
	}
	if line > m.lineCount {
		return m.lineCount
	}
	return line
}

// SetActiveLine sets a single active line, clearing any range.
// A no-op when the buffer has no lines.
func (m *Model) SetActiveLine(line int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lineCount == 0 {
		return
	}
	m.active = m.clampLocked(line)
	m.hasRange = false
}

// SetRange sets a normalized multi-line range directly. A single-line
// range collapses to an active line.
func (m *Model) SetRange(r buffer.LineRange) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lineCount == 0 {
		return
	}
	r = r.Normalize().Clamp(m.lineCount)
	if r.IsSingleLine() {
		m.active = r.Start
		m.hasRange = false
		return
	}
	m.rng = r
	m.active = r.Start
	m.hasRange = true
}

// SetRangeFromText converts a character-offset selection in the given
// source text into a line selection. Offsets resolving to the same
// line set an active line only; a same-line selection is not a range
// for highlighting purposes.
func (m *Model) SetRangeFromText(text string, startOffset, endOffset int) {
	if startOffset > endOffset {
		startOffset, endOffset = endOffset, startOffset
	}
	startLine := lineAtOffset(text, startOffset)
	endLine := lineAtOffset(text, endOffset)

	if startLine == endLine {
		m.SetActiveLine(startLine)
		return
	}
	m.SetRange(buffer.LineRange{Start: startLine, End: endLine})
}

// ExtendTo produces a normalized range spanning anchor and target,
// regardless of click order. Used for shift-modified clicks on
// rendered regions.
func (m *Model) ExtendTo(anchorLine, targetLine int) {
	m.SetRange(buffer.NewLineRange(anchorLine, targetLine))
}

// ActiveLine returns the active line, or 0 when nothing is selected.
func (m *Model) ActiveLine() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Range returns the current multi-line range, if one is set.
func (m *Model) Range() (buffer.LineRange, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rng, m.hasRange
}

// IsHighlighted returns true if the line falls inside the current
// range, or equals the active line when no range is set.
func (m *Model) IsHighlighted(line int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.hasRange {
		return m.rng.Contains(line)
	}
	return m.active != 0 && line == m.active
}

// Clear resets the selection.
func (m *Model) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = 0
	m.hasRange = false
}

// lineAtOffset returns the 1-based line containing the byte offset.
// Offsets are clamped to the text.
func lineAtOffset(text string, offset int) int {
	if offset < 0 {
		offset = 0
	}
	if offset > len(text) {
		offset = len(text)
	}
	return strings.Count(text[:offset], "\n") + 1
}
