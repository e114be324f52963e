package selection

import (
	"testing"

	"github.com/dshills/texmirror/internal/engine/buffer"
)

func newModel(lineCount int) *Model {
	m := New()
	m.SetLineCount(lineCount)
	return m
}

func TestSetActiveLine(t *testing.T) {
	m := newModel(5)

	m.SetActiveLine(3)
	if got := m.ActiveLine(); got != 3 {
		t.Errorf("ActiveLine() = %d, want 3", got)
	}
	if _, has := m.Range(); has {
		t.Error("SetActiveLine should clear any range")
	}
}

func TestSetActiveLineClamps(t *testing.T) {
	tests := []struct {
		line int
		want int
	}{
		{0, 1},
		{-3, 1},
		{99, 5},
		{5, 5},
	}

	for _, tt := range tests {
		m := newModel(5)
		m.SetActiveLine(tt.line)
		if got := m.ActiveLine(); got != tt.want {
			t.Errorf("SetActiveLine(%d): ActiveLine() = %d, want %d", tt.line, got, tt.want)
		}
	}
}

func TestEmptyBufferNoValidLines(t *testing.T) {
	m := newModel(0)

	m.SetActiveLine(1)
	if got := m.ActiveLine(); got != 0 {
		t.Errorf("ActiveLine() on empty buffer = %d, want 0", got)
	}
	if m.IsHighlighted(1) {
		t.Error("IsHighlighted should never be true with no lines")
	}
}

func TestSetRangeFromTextSameLine(t *testing.T) {
	// A selection confined to one line is an active line, not a range.
	text := "alpha\nbeta\ngamma"
	m := newModel(3)

	m.SetRangeFromText(text, 6, 9) // inside "beta"
	if _, has := m.Range(); has {
		t.Error("same-line selection should not record a range")
	}
	if got := m.ActiveLine(); got != 2 {
		t.Errorf("ActiveLine() = %d, want 2", got)
	}

	for line := 1; line <= 3; line++ {
		want := line == 2
		if got := m.IsHighlighted(line); got != want {
			t.Errorf("IsHighlighted(%d) = %v, want %v", line, got, want)
		}
	}
}

func TestSetRangeFromTextMultiLine(t *testing.T) {
	text := "alpha\nbeta\ngamma"
	m := newModel(3)

	m.SetRangeFromText(text, 2, 12) // "pha\nbeta\nga"
	r, has := m.Range()
	if !has {
		t.Fatal("expected a range")
	}
	if r.Start != 1 || r.End != 3 {
		t.Errorf("Range() = %v, want [1:3]", r)
	}
}

func TestSetRangeFromTextReversedOffsets(t *testing.T) {
	text := "alpha\nbeta\ngamma"
	m := newModel(3)

	m.SetRangeFromText(text, 12, 2)
	r, has := m.Range()
	if !has || r.Start != 1 || r.End != 3 {
		t.Errorf("Range() = %v, %v, want [1:3], true", r, has)
	}
}

func TestExtendTo(t *testing.T) {
	tests := []struct {
		name           string
		anchor, target int
		wantStart      int
		wantEnd        int
	}{
		{"forward", 2, 4, 2, 4},
		{"backward", 4, 2, 2, 4},
		{"clamped", 3, 99, 3, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newModel(5)
			m.ExtendTo(tt.anchor, tt.target)
			r, has := m.Range()
			if !has {
				t.Fatal("expected a range")
			}
			if r.Start != tt.wantStart || r.End != tt.wantEnd {
				t.Errorf("Range() = %v, want [%d:%d]", r, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestExtendToSameLineCollapses(t *testing.T) {
	m := newModel(5)
	m.ExtendTo(3, 3)
	if _, has := m.Range(); has {
		t.Error("extending to the anchor line should collapse to an active line")
	}
	if got := m.ActiveLine(); got != 3 {
		t.Errorf("ActiveLine() = %d, want 3", got)
	}
}

func TestIsHighlightedRange(t *testing.T) {
	m := newModel(6)
	m.SetRange(buffer.LineRange{Start: 2, End: 4})

	for line := 1; line <= 6; line++ {
		want := line >= 2 && line <= 4
		if got := m.IsHighlighted(line); got != want {
			t.Errorf("IsHighlighted(%d) = %v, want %v", line, got, want)
		}
	}
}

func TestSetLineCountReclamps(t *testing.T) {
	m := newModel(10)
	m.SetRange(buffer.LineRange{Start: 4, End: 9})

	m.SetLineCount(5)
	r, has := m.Range()
	if !has || r.End != 5 {
		t.Errorf("Range() after shrink = %v, %v, want end 5", r, has)
	}

	m.SetLineCount(0)
	if m.IsHighlighted(1) {
		t.Error("no line should be highlighted after line count drops to zero")
	}
}

func TestSetLineCountShrinkBelowRangeStart(t *testing.T) {
	m := newModel(10)
	m.SetRange(buffer.LineRange{Start: 6, End: 9})

	// Shrinking past the whole range must not leave it referencing
	// nonexistent lines.
	m.SetLineCount(3)
	r, has := m.Range()
	if has && (r.Start > 3 || r.End > 3) {
		t.Errorf("Range() after shrink = %v, refers past line 3", r)
	}
	for line := 4; line <= 9; line++ {
		if m.IsHighlighted(line) {
			t.Errorf("line %d highlighted after shrink to 3 lines", line)
		}
	}
}

func TestClear(t *testing.T) {
	m := newModel(5)
	m.SetRange(buffer.LineRange{Start: 1, End: 3})
	m.Clear()

	if m.ActiveLine() != 0 {
		t.Error("Clear should reset the active line")
	}
	if _, has := m.Range(); has {
		t.Error("Clear should reset the range")
	}
}
