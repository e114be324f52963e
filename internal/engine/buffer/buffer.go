package buffer

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// Errors returned by buffer operations.
var (
	ErrOffsetOutOfRange = errors.New("offset out of range")
	ErrSpanInvalid      = errors.New("invalid span")
)

// Buffer holds the editable source text with a line index.
// Lines are 1-based. All methods are thread-safe.
type Buffer struct {
	mu         sync.RWMutex
	text       string
	lineStarts []int // byte offset of the start of each line
	revisionID RevisionID
}

// New creates a new empty buffer.
func New() *Buffer {
	b := &Buffer{revisionID: NewRevisionID()}
	b.reindex()
	return b
}

// NewFromString creates a buffer with initial content.
// Line endings are normalized to LF.
func NewFromString(s string) *Buffer {
	b := New()
	b.text = normalizeLineEndings(s)
	b.reindex()
	return b
}

// normalizeLineEndings converts CRLF and CR line endings to LF.
func normalizeLineEndings(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return s
}

// reindex rebuilds the line-start index. Caller must hold the write lock.
func (b *Buffer) reindex() {
	b.lineStarts = b.lineStarts[:0]
	if len(b.text) == 0 {
		return
	}
	b.lineStarts = append(b.lineStarts, 0)
	for i := 0; i < len(b.text); i++ {
		if b.text[i] == '\n' {
			b.lineStarts = append(b.lineStarts, i+1)
		}
	}
}

// Read Operations

// Text returns the full buffer content as a string.
func (b *Buffer) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text
}

// Len returns the total byte length of the buffer.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.text)
}

// IsEmpty returns true if the buffer holds no text.
func (b *Buffer) IsEmpty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.text) == 0
}

// LineCount returns the number of lines. An empty buffer has zero lines.
func (b *Buffer) LineCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lineStarts)
}

// LineText returns the text of a specific line (without newline).
// Returns the empty string for out-of-range lines.
func (b *Buffer) LineText(line int) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if line < 1 || line > len(b.lineStarts) {
		return ""
	}
	start := b.lineStarts[line-1]
	end := b.lineEndLocked(line)
	return b.text[start:end]
}

// lineEndLocked returns the byte offset of the end of a line, before its
// newline. Caller must hold a lock and pass a valid line.
func (b *Buffer) lineEndLocked(line int) int {
	if line < len(b.lineStarts) {
		return b.lineStarts[line] - 1
	}
	return len(b.text)
}

// LineSpan returns the byte span covered by the given line range: the
// start of the range's first line through the end of its last line.
// Interior line separators are included, the trailing one is not.
// The range is clamped to the buffer's lines. ok is false when the
// buffer is empty.
func (b *Buffer) LineSpan(r LineRange) (start, end int, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.lineStarts) == 0 {
		return 0, 0, false
	}
	r = r.Normalize().Clamp(len(b.lineStarts))
	start = b.lineStarts[r.Start-1]
	end = b.lineEndLocked(r.End)
	return start, end, true
}

// OffsetToLine converts a byte offset to a 1-based line number.
// Offsets are clamped to the buffer; an empty buffer yields line 0.
func (b *Buffer) OffsetToLine(offset int) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.lineStarts) == 0 {
		return 0
	}
	if offset < 0 {
		offset = 0
	}
	if offset > len(b.text) {
		offset = len(b.text)
	}
	// First line whose start is beyond the offset; the offset belongs
	// to the line before it.
	i := sort.Search(len(b.lineStarts), func(i int) bool {
		return b.lineStarts[i] > offset
	})
	return i
}

// Write Operations

// SetText replaces the entire buffer content.
func (b *Buffer) SetText(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = normalizeLineEndings(s)
	b.reindex()
	b.revisionID = NewRevisionID()
}

// Insert inserts text at the given byte offset.
func (b *Buffer) Insert(offset int, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if offset < 0 || offset > len(b.text) {
		return ErrOffsetOutOfRange
	}
	text = normalizeLineEndings(text)
	b.text = b.text[:offset] + text + b.text[offset:]
	b.reindex()
	b.revisionID = NewRevisionID()
	return nil
}

// Delete removes text in the given byte span.
func (b *Buffer) Delete(start, end int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if start < 0 || start > end || end > len(b.text) {
		return ErrSpanInvalid
	}
	b.text = b.text[:start] + b.text[end:]
	b.reindex()
	b.revisionID = NewRevisionID()
	return nil
}

// Replace replaces text in the given byte span with new text.
func (b *Buffer) Replace(start, end int, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if start < 0 || start > end || end > len(b.text) {
		return ErrSpanInvalid
	}
	text = normalizeLineEndings(text)
	b.text = b.text[:start] + text + b.text[end:]
	b.reindex()
	b.revisionID = NewRevisionID()
	return nil
}

// RevisionID returns the current revision ID.
func (b *Buffer) RevisionID() RevisionID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.revisionID
}
