// Package animator applies externally generated replacement text over
// a line range as a cancellable, time-sliced delete-then-type
// animation.
//
// A full-buffer replace during an LLM rewrite is disorienting; a
// bounded, proportionally stepped animation keeps the change legible
// while finishing in roughly constant wall-clock time regardless of
// content length. Cancellation is cooperative: there is no cancel
// call, only "a newer session now owns the buffer" — each step checks
// a generation counter and an in-flight session aborts silently the
// moment it is superseded.
package animator

import (
	"context"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/dshills/texmirror/internal/engine/buffer"
	"github.com/dshills/texmirror/internal/logging"
	"github.com/dshills/texmirror/internal/sync/selection"
	"github.com/dshills/texmirror/internal/sync/status"
)

// Saver persists committed document content.
type Saver interface {
	Save(content string) error
}

// Animator runs edit sessions against the shared buffer. At most one
// session is current at any instant; older sessions abandon their
// remaining steps in place.
type Animator struct {
	buf    *buffer.Buffer
	sel    *selection.Model
	status *status.Machine
	saver  Saver
	log    *logging.Logger

	gen    atomic.Uint64
	active atomic.Int32

	steps    int
	delay    time.Duration
	onRender func(text string)
}

// Option configures an Animator.
type Option func(*Animator)

// WithSteps sets the step count per phase. Longer spans take larger
// steps, not more steps, so a phase always finishes within the same
// bounded number of renders.
func WithSteps(n int) Option {
	return func(a *Animator) {
		if n > 0 {
			a.steps = n
		}
	}
}

// WithStepDelay sets the suspension between steps.
func WithStepDelay(d time.Duration) Option {
	return func(a *Animator) {
		if d >= 0 {
			a.delay = d
		}
	}
}

// WithOnRender sets a callback invoked with the buffer text after
// every animation step and after the final commit.
func WithOnRender(fn func(text string)) Option {
	return func(a *Animator) { a.onRender = fn }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(a *Animator) { a.log = l }
}

// New creates an Animator over the shared buffer and models.
func New(buf *buffer.Buffer, sel *selection.Model, st *status.Machine, saver Saver, opts ...Option) *Animator {
	a := &Animator{
		buf:    buf,
		sel:    sel,
		status: st,
		saver:  saver,
		log:    logging.Null,
		steps:  12,
		delay:  24 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Active returns true while any edit session is running. The text
// surface should be treated as read-only for the session's duration;
// interleaving manual edits with animated splicing is avoided by
// policy, not by algorithm.
func (a *Animator) Active() bool {
	return a.active.Load() > 0
}

// Generation returns the id of the most recently started session.
func (a *Animator) Generation() uint64 {
	return a.gen.Load()
}

// Apply runs one edit session: delete the character span covered by
// the range in fixed-size steps, type the replacement in fixed-size
// steps, then commit. It blocks until the session finishes or is
// superseded, so callers animate from their own goroutine.
//
// Committing writes the final spliced text, persists it, recomputes
// the sync status, and sets the selection range over the inserted
// lines. A superseded session returns before its commit; the newer
// session always wins the final buffer value.
func (a *Animator) Apply(ctx context.Context, rng buffer.LineRange, replacement string) {
	id := a.gen.Add(1)
	a.active.Add(1)
	defer a.active.Add(-1)

	rng = rng.Normalize()
	original := a.buf.Text()

	start, end, ok := a.buf.LineSpan(rng)
	if !ok {
		// Empty buffer: the session degenerates to typing the
		// replacement from offset zero.
		start, end = 0, 0
		rng = buffer.LineRange{Start: 1, End: 1}
	} else {
		rng = rng.Clamp(a.buf.LineCount())
	}

	a.log.Debug("edit session %d: lines %v, span [%d:%d], %d replacement bytes",
		id, rng, start, end, len(replacement))

	if !a.deletePhase(ctx, id, start, original[start:end]) {
		return
	}
	if !a.typePhase(ctx, id, start, replacement) {
		return
	}
	if !a.alive(id) {
		return
	}

	final := original[:start] + replacement + original[end:]
	a.commit(id, final, rng.Start, replacement)
}

// deletePhase shrinks the span from its end in rune steps. Reports
// false when the session was superseded or cancelled.
func (a *Animator) deletePhase(ctx context.Context, id uint64, start int, span string) bool {
	if len(span) == 0 {
		return true
	}

	runes := []rune(span)
	step := stepSize(len(runes), a.steps)
	curEnd := start + len(span)

	for len(runes) > 0 {
		if !a.alive(id) {
			return false
		}
		cut := step
		if cut > len(runes) {
			cut = len(runes)
		}
		removed := byteLen(runes[len(runes)-cut:])
		runes = runes[:len(runes)-cut]

		if err := a.buf.Delete(curEnd-removed, curEnd); err != nil {
			a.log.Warn("edit session %d: delete step failed: %v", id, err)
			return false
		}
		curEnd -= removed
		a.render()

		if !a.pause(ctx, id) {
			return false
		}
	}
	return true
}

// typePhase grows the inserted prefix of the replacement in rune
// steps, symmetrically to the delete phase.
func (a *Animator) typePhase(ctx context.Context, id uint64, start int, replacement string) bool {
	if len(replacement) == 0 {
		return true
	}

	runes := []rune(replacement)
	step := stepSize(len(runes), a.steps)
	inserted := 0 // bytes inserted so far
	typed := 0    // runes inserted so far

	for typed < len(runes) {
		if !a.alive(id) {
			return false
		}
		next := typed + step
		if next > len(runes) {
			next = len(runes)
		}
		chunk := string(runes[typed:next])
		typed = next

		if err := a.buf.Insert(start+inserted, chunk); err != nil {
			a.log.Warn("edit session %d: type step failed: %v", id, err)
			return false
		}
		inserted += len(chunk)
		a.render()

		if !a.pause(ctx, id) {
			return false
		}
	}
	return true
}

// commit writes the final spliced text, persists it, recomputes the
// sync status, and selects the inserted lines.
func (a *Animator) commit(id uint64, final string, startLine int, replacement string) {
	a.buf.SetText(final)
	a.sel.SetLineCount(a.buf.LineCount())

	endLine := startLine + buffer.CountLines(replacement) - 1
	if endLine < startLine {
		endLine = startLine
	}
	a.sel.SetRange(buffer.LineRange{Start: startLine, End: endLine})

	if a.saver != nil {
		if err := a.saver.Save(final); err != nil {
			a.log.Warn("edit session %d: save failed: %v", id, err)
		}
	}
	a.status.Recompute(final)
	a.render()

	a.log.Debug("edit session %d: committed, selection [%d:%d]", id, startLine, endLine)
}

// alive reports whether this session still owns the buffer.
func (a *Animator) alive(id uint64) bool {
	return a.gen.Load() == id
}

// pause suspends between steps. This is the animator's only
// suspension point. Reports false when cancelled or superseded.
func (a *Animator) pause(ctx context.Context, id uint64) bool {
	if a.delay <= 0 {
		return a.alive(id) && ctx.Err() == nil
	}
	select {
	case <-time.After(a.delay):
		return a.alive(id)
	case <-ctx.Done():
		return false
	}
}

// render invokes the re-render callback with the current buffer text.
func (a *Animator) render() {
	if a.onRender != nil {
		a.onRender(a.buf.Text())
	}
}

// stepSize returns the per-step unit count so that total units are
// consumed in at most maxSteps steps.
func stepSize(total, maxSteps int) int {
	step := (total + maxSteps - 1) / maxSteps
	if step < 1 {
		step = 1
	}
	return step
}

// byteLen returns the UTF-8 byte length of a rune slice.
func byteLen(runes []rune) int {
	n := 0
	for _, r := range runes {
		n += utf8.RuneLen(r)
	}
	return n
}
