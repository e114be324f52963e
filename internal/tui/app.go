// Package tui is the terminal front end: a source view with a line
// gutter, selection highlighting, a sync status bar, and a prompt line
// for rewrite requests.
//
// The view owns no engine state. It reads everything through the
// orchestrator's accessors and redraws when the bus reports a change;
// background goroutines wake the event loop with an interrupt event
// instead of touching the screen themselves.
package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/texmirror/internal/event"
	"github.com/dshills/texmirror/internal/logging"
	"github.com/dshills/texmirror/internal/sync/orchestrator"
	"github.com/dshills/texmirror/internal/sync/status"
)

type mode int

const (
	modeEdit mode = iota
	modePrompt
)

// App runs the terminal interface around an orchestrator.
type App struct {
	screen tcell.Screen
	orch   *orchestrator.Orchestrator
	bus    *event.Bus
	log    *logging.Logger
	theme  Theme

	mode    mode
	topLine int
	cursor  position
	prompt  []rune

	// message is written by background goroutines and read by the
	// draw loop.
	msgMu   sync.Mutex
	message string

	compileTimeout time.Duration
	previewScale   float64
}

type position struct {
	line int // 1-based
	col  int // 0-based rune column
}

// Option configures the App.
type Option func(*App)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(a *App) { a.log = l }
}

// WithTheme sets the theme.
func WithTheme(t Theme) Option {
	return func(a *App) { a.theme = t }
}

// WithScreen injects a screen, used by tests with tcell's simulation
// screen.
func WithScreen(s tcell.Screen) Option {
	return func(a *App) { a.screen = s }
}

// WithCompileTimeout bounds background compile requests.
func WithCompileTimeout(d time.Duration) Option {
	return func(a *App) { a.compileTimeout = d }
}

// WithPreviewScale sets the display scale pages are rasterized at
// after each successful compile.
func WithPreviewScale(scale float64) Option {
	return func(a *App) {
		if scale > 0 {
			a.previewScale = scale
		}
	}
}

// New creates the App and subscribes it to engine events.
func New(orch *orchestrator.Orchestrator, bus *event.Bus, opts ...Option) (*App, error) {
	a := &App{
		orch:           orch,
		bus:            bus,
		log:            logging.Null,
		theme:          DefaultTheme(),
		cursor:         position{line: 1},
		compileTimeout: 60 * time.Second,
		previewScale:   1.5,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.screen == nil {
		s, err := tcell.NewScreen()
		if err != nil {
			return nil, fmt.Errorf("tui: %w", err)
		}
		a.screen = s
	}

	// Engine events arrive on arbitrary goroutines. Wake the event
	// loop; the redraw itself happens there.
	wake := func(any) { _ = a.screen.PostEvent(tcell.NewEventInterrupt(nil)) }
	bus.Subscribe(event.TopicStatusChanged, wake)
	bus.Subscribe(event.TopicSelectionChanged, wake)
	bus.Subscribe(event.TopicAnimationStep, wake)
	bus.Subscribe(event.TopicStoreDegraded, wake)
	bus.Subscribe(event.TopicCompileFailed, func(payload any) {
		if err, ok := payload.(error); ok {
			a.setMessage("compile failed: " + firstLine(err.Error()))
		}
		wake(payload)
	})
	bus.Subscribe(event.TopicArtifactReplaced, func(payload any) {
		a.setMessage("compiled")
		wake(payload)
	})

	return a, nil
}

// Run initializes the screen and processes events until quit.
func (a *App) Run(ctx context.Context) error {
	if err := a.screen.Init(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	defer a.screen.Fini()

	a.draw()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch ev := a.screen.PollEvent().(type) {
		case *tcell.EventResize:
			a.screen.Sync()
			a.draw()
		case *tcell.EventInterrupt:
			a.draw()
		case *tcell.EventKey:
			if quit := a.handleKey(ev); quit {
				return nil
			}
			a.draw()
		case nil:
			return nil
		}
	}
}

// handleKey dispatches one key event. Reports true on quit.
func (a *App) handleKey(ev *tcell.EventKey) bool {
	if ev.Key() == tcell.KeyCtrlQ {
		return true
	}

	if a.mode == modePrompt {
		a.handlePromptKey(ev)
		return false
	}

	switch ev.Key() {
	case tcell.KeyCtrlB:
		a.startCompile()
	case tcell.KeyCtrlR:
		a.mode = modePrompt
		a.prompt = a.prompt[:0]
	case tcell.KeyEscape:
		a.orch.ClearSelection()
		a.setMessage("")
	case tcell.KeyUp:
		a.moveCursor(-1, ev.Modifiers()&tcell.ModShift != 0)
	case tcell.KeyDown:
		a.moveCursor(1, ev.Modifiers()&tcell.ModShift != 0)
	case tcell.KeyLeft:
		if a.cursor.col > 0 {
			a.cursor.col--
		}
	case tcell.KeyRight:
		if a.cursor.col < len([]rune(a.orch.LineText(a.cursor.line))) {
			a.cursor.col++
		}
	case tcell.KeyPgUp:
		a.moveCursor(-a.viewHeight(), false)
	case tcell.KeyPgDn:
		a.moveCursor(a.viewHeight(), false)
	case tcell.KeyEnter:
		a.edit(func(lines []string) []string {
			return splitLineAt(lines, a.cursor.line, a.cursor.col, &a.cursor)
		})
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		a.edit(func(lines []string) []string {
			return deleteBefore(lines, &a.cursor)
		})
	case tcell.KeyRune:
		r := ev.Rune()
		if a.edit(func(lines []string) []string {
			return insertRune(lines, a.cursor.line, a.cursor.col, r)
		}) {
			a.cursor.col++
		}
	}
	return false
}

// handlePromptKey edits the rewrite prompt line.
func (a *App) handlePromptKey(ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyEscape:
		a.mode = modeEdit
		a.prompt = a.prompt[:0]
	case tcell.KeyEnter:
		text := strings.TrimSpace(string(a.prompt))
		a.mode = modeEdit
		a.prompt = a.prompt[:0]
		if text != "" {
			a.startRewrite(text)
		}
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if len(a.prompt) > 0 {
			a.prompt = a.prompt[:len(a.prompt)-1]
		}
	case tcell.KeyRune:
		a.prompt = append(a.prompt, ev.Rune())
	}
}

// edit applies a line-level mutation unless an animation owns the
// buffer. Reports whether the edit was applied.
func (a *App) edit(fn func(lines []string) []string) bool {
	if a.orch.Animating() {
		return false
	}
	lines := strings.Split(a.orch.Text(), "\n")
	a.orch.ApplyEdit(strings.Join(fn(lines), "\n"))
	a.clampCursor()
	return true
}

// moveCursor moves the active line by delta. With extend set the
// selection grows over the traversed lines.
func (a *App) moveCursor(delta int, extend bool) {
	anchor := a.orch.Selection().ActiveLine()
	a.cursor.line += delta
	a.clampCursor()

	if extend && anchor != 0 {
		a.orch.Selection().ExtendTo(anchor, a.cursor.line)
	} else {
		a.orch.SetActiveLine(a.cursor.line)
	}
}

func (a *App) clampCursor() {
	n := a.orch.LineCount()
	if n < 1 {
		n = 1
	}
	if a.cursor.line < 1 {
		a.cursor.line = 1
	}
	if a.cursor.line > n {
		a.cursor.line = n
	}
	if cols := len([]rune(a.orch.LineText(a.cursor.line))); a.cursor.col > cols {
		a.cursor.col = cols
	}
	if a.cursor.col < 0 {
		a.cursor.col = 0
	}
}

// startCompile runs a compile in the background; the bus wakes the
// view when it finishes. A fresh artifact is rasterized right away at
// the configured preview scale so region lookups have page transforms.
func (a *App) startCompile() {
	a.setMessage("compiling...")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.compileTimeout)
		defer cancel()
		if err := a.orch.Compile(ctx); err != nil {
			return
		}
		if _, err := a.orch.Rasterize(ctx, a.previewScale); err != nil {
			a.setMessage("render failed: " + firstLine(err.Error()))
			_ = a.screen.PostEvent(tcell.NewEventInterrupt(nil))
		}
	}()
}

// startRewrite sends the prompt in the background. The reply lands in
// the message line; a replacement animates in on its own.
func (a *App) startRewrite(prompt string) {
	a.setMessage("asking...")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.compileTimeout)
		defer cancel()
		resp, err := a.orch.RequestRewrite(ctx, prompt)
		if err != nil {
			a.setMessage("rewrite failed: " + firstLine(err.Error()))
		} else {
			a.setMessage(firstLine(resp.Reply))
		}
		_ = a.screen.PostEvent(tcell.NewEventInterrupt(nil))
	}()
}

func (a *App) setMessage(s string) {
	a.msgMu.Lock()
	a.message = s
	a.msgMu.Unlock()
}

func (a *App) messageText() string {
	a.msgMu.Lock()
	defer a.msgMu.Unlock()
	return a.message
}

func (a *App) viewHeight() int {
	_, h := a.screen.Size()
	h -= 2 // status bar and message/prompt line
	if h < 1 {
		h = 1
	}
	return h
}

// draw renders the whole view.
func (a *App) draw() {
	a.screen.Clear()
	w, h := a.screen.Size()
	viewH := a.viewHeight()

	a.scrollTo(viewH)

	lineCount := a.orch.LineCount()
	gutterW := len(fmt.Sprintf("%d", lineCount)) + 1
	sel := a.orch.Selection()

	for row := 0; row < viewH; row++ {
		line := a.topLine + row
		if line > lineCount {
			break
		}

		style := a.theme.Base
		if sel.IsHighlighted(line) {
			style = a.theme.Highlight
		}

		drawText(a.screen, 0, row, gutterW, a.theme.Gutter,
			fmt.Sprintf("%*d", gutterW-1, line))
		drawText(a.screen, gutterW+1, row, w-gutterW-1, style,
			a.orch.LineText(line))
	}

	a.drawMessageLine(w, h)
	a.drawStatusBar(w, h)

	if a.mode == modeEdit {
		col := a.cursor.col
		if cols := len([]rune(a.orch.LineText(a.cursor.line))); col > cols {
			col = cols
		}
		a.screen.ShowCursor(gutterW+1+col, a.cursor.line-a.topLine)
	} else {
		a.screen.ShowCursor(len("rewrite> ")+len(a.prompt), h-2)
	}

	a.screen.Show()
}

func (a *App) drawMessageLine(w, h int) {
	if a.mode == modePrompt {
		drawText(a.screen, 0, h-2, w, a.theme.Prompt, "rewrite> "+string(a.prompt))
		return
	}
	if msg := a.messageText(); msg != "" {
		drawText(a.screen, 0, h-2, w, a.theme.Base, msg)
	}
}

func (a *App) drawStatusBar(w, h int) {
	left := fmt.Sprintf(" %s  line %d/%d", statusLabel(a.orch.Status()),
		a.cursor.line, a.orch.LineCount())
	if a.orch.Animating() {
		left += "  applying edit"
	}

	style := a.theme.StatusBar
	if a.orch.Degraded() {
		style = a.theme.Degraded
		left += "  UNSAVED (store unavailable)"
	}

	bar := left + strings.Repeat(" ", max(0, w-len(left)-len(keyHints)-1)) + keyHints
	drawText(a.screen, 0, h-1, w, style, bar)
}

const keyHints = "^B compile  ^R rewrite  ^Q quit "

func statusLabel(s status.Status) string {
	switch s {
	case status.Pending:
		return "PENDING"
	case status.Loading:
		return "LOADING"
	case status.Ready:
		return "READY"
	default:
		return "DIRTY"
	}
}

// scrollTo keeps the cursor line inside the viewport.
func (a *App) scrollTo(viewH int) {
	if a.topLine < 1 {
		a.topLine = 1
	}
	if a.cursor.line < a.topLine {
		a.topLine = a.cursor.line
	}
	if a.cursor.line >= a.topLine+viewH {
		a.topLine = a.cursor.line - viewH + 1
	}
}

func drawText(s tcell.Screen, x, y, maxW int, style tcell.Style, text string) {
	col := x
	for _, r := range text {
		if col >= x+maxW {
			break
		}
		s.SetContent(col, y, r, nil, style)
		col++
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// insertRune inserts r at the rune column of the given line.
func insertRune(lines []string, line, col int, r rune) []string {
	if line < 1 || line > len(lines) {
		return lines
	}
	runes := []rune(lines[line-1])
	if col > len(runes) {
		col = len(runes)
	}
	lines[line-1] = string(runes[:col]) + string(r) + string(runes[col:])
	return lines
}

// splitLineAt breaks a line in two at the cursor and advances the
// cursor to the new line's start.
func splitLineAt(lines []string, line, col int, cur *position) []string {
	if line < 1 || line > len(lines) {
		return lines
	}
	runes := []rune(lines[line-1])
	if col > len(runes) {
		col = len(runes)
	}

	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:line-1]...)
	out = append(out, string(runes[:col]), string(runes[col:]))
	out = append(out, lines[line:]...)

	cur.line = line + 1
	cur.col = 0
	return out
}

// deleteBefore removes the rune before the cursor, joining with the
// previous line at column zero.
func deleteBefore(lines []string, cur *position) []string {
	if cur.line < 1 || cur.line > len(lines) {
		return lines
	}

	if cur.col > 0 {
		runes := []rune(lines[cur.line-1])
		if cur.col > len(runes) {
			cur.col = len(runes)
		}
		lines[cur.line-1] = string(runes[:cur.col-1]) + string(runes[cur.col:])
		cur.col--
		return lines
	}

	if cur.line == 1 {
		return lines
	}

	prev := lines[cur.line-2]
	cur.col = len([]rune(prev))
	lines[cur.line-2] = prev + lines[cur.line-1]
	out := append(lines[:cur.line-1], lines[cur.line:]...)
	cur.line--
	return out
}
