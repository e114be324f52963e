// Package orchestrator composes the sync engine: it owns the live
// buffer, the selection and status models, the compiled artifact, and
// the boundaries to the compile service, the rewrite service, the
// rasterizer, and the document store.
//
// All mutation flows through here so that every edit, compile, click,
// and rewrite leaves the models consistent and publishes the matching
// event. Views subscribe to the bus and re-render from accessor state;
// they never mutate engine state directly.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/dshills/texmirror/internal/compile"
	"github.com/dshills/texmirror/internal/engine/buffer"
	"github.com/dshills/texmirror/internal/event"
	"github.com/dshills/texmirror/internal/logging"
	"github.com/dshills/texmirror/internal/raster"
	"github.com/dshills/texmirror/internal/rewrite"
	"github.com/dshills/texmirror/internal/sync/animator"
	"github.com/dshills/texmirror/internal/sync/geometry"
	"github.com/dshills/texmirror/internal/sync/regionmap"
	"github.com/dshills/texmirror/internal/sync/selection"
	"github.com/dshills/texmirror/internal/sync/status"
)

// FallbackDocument seeds a brand-new document when the store has no
// saved content.
const FallbackDocument = `\documentclass{article}
\usepackage[margin=1in]{geometry}
\begin{document}

\section{Study Sheet}

Start typing here.

\end{document}
`

// Compiler produces a compiled artifact from source text.
type Compiler interface {
	Compile(ctx context.Context, source string) (*compile.Result, error)
}

// DocumentStore persists the document in a named slot.
type DocumentStore interface {
	Load(slot string) (content string, found bool, err error)
	Save(slot, content string) error
}

// Transformer post-processes a rewrite replacement before it is
// animated into the buffer.
type Transformer interface {
	Transform(ctx context.Context, latex string, startLine, endLine int) (string, error)
}

// Artifact is the current compiled document. It is replaced atomically:
// a failed or malformed compile never clears a previously good one.
type Artifact struct {
	Snapshot string
	PDF      []byte
	Map      *regionmap.Map
}

// LineRegion is one rendered region of a source line, in display
// coordinates of its page.
type LineRegion struct {
	Page int
	Rect geometry.Rect
}

// StatusEvent is the payload of event.TopicStatusChanged.
type StatusEvent struct {
	Status status.Status
}

// SelectionEvent is the payload of event.TopicSelectionChanged.
type SelectionEvent struct {
	ActiveLine int
	Range      buffer.LineRange
	HasRange   bool
}

// Orchestrator wires the sync engine together.
type Orchestrator struct {
	buf      *buffer.Buffer
	sel      *selection.Model
	status   *status.Machine
	anim     *animator.Animator
	compiler Compiler
	rewriter rewrite.Provider
	rast     raster.Rasterizer
	store    DocumentStore
	hook     Transformer
	bus      *event.Bus
	log      *logging.Logger

	slot     string
	animOpts []animator.Option

	mu       sync.RWMutex
	artifact *Artifact
	degraded bool

	// Page-render cache, keyed by artifact hash and scale.
	pageKey   string
	pageScale float64
	pages     []raster.PageRender
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRewriter sets the rewrite provider.
func WithRewriter(p rewrite.Provider) Option {
	return func(o *Orchestrator) { o.rewriter = p }
}

// WithStore sets the document store.
func WithStore(s DocumentStore, slot string) Option {
	return func(o *Orchestrator) {
		o.store = s
		if slot != "" {
			o.slot = slot
		}
	}
}

// WithHook sets the rewrite transform hook.
func WithHook(t Transformer) Option {
	return func(o *Orchestrator) { o.hook = t }
}

// WithRasterizer sets the page rasterizer.
func WithRasterizer(r raster.Rasterizer) Option {
	return func(o *Orchestrator) { o.rast = r }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithAnimatorOptions passes options through to the edit animator.
func WithAnimatorOptions(opts ...animator.Option) Option {
	return func(o *Orchestrator) { o.animOpts = append(o.animOpts, opts...) }
}

// New creates an orchestrator around a compile client and an event bus.
func New(compiler Compiler, bus *event.Bus, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		buf:      buffer.New(),
		sel:      selection.New(),
		status:   status.NewMachine(),
		compiler: compiler,
		rast:     raster.NewScaleRasterizer(),
		bus:      bus,
		log:      logging.Null,
		slot:     "document",
	}
	for _, opt := range opts {
		opt(o)
	}

	animOpts := append([]animator.Option{
		animator.WithLogger(o.log),
		animator.WithOnRender(func(text string) {
			o.bus.Publish(event.TopicAnimationStep, text)
		}),
	}, o.animOpts...)
	o.anim = animator.New(o.buf, o.sel, o.status, saverFunc(o.persist), animOpts...)

	return o
}

// saverFunc adapts a function to the animator's Saver interface.
type saverFunc func(content string) error

func (f saverFunc) Save(content string) error { return f(content) }

// LoadDocument restores the document from the store, falling back to
// the starter template when the slot is empty or the store is
// unavailable. A broken store degrades to in-memory mode; editing
// continues.
func (o *Orchestrator) LoadDocument() {
	text := FallbackDocument

	if o.store != nil {
		content, found, err := o.store.Load(o.slot)
		switch {
		case err != nil:
			o.setDegraded(err)
		case found:
			text = content
		}
	}

	o.buf.SetText(text)
	o.sel.SetLineCount(o.buf.LineCount())
	o.publishStatus(o.status.Recompute(o.buf.Text()))
	o.log.Info("document loaded: %d lines", o.buf.LineCount())
}

// Text returns the current source text.
func (o *Orchestrator) Text() string {
	return o.buf.Text()
}

// LineCount returns the current number of source lines.
func (o *Orchestrator) LineCount() int {
	return o.buf.LineCount()
}

// LineText returns the text of a single line without its separator.
func (o *Orchestrator) LineText(line int) string {
	return o.buf.LineText(line)
}

// Status returns the current sync status.
func (o *Orchestrator) Status() status.Status {
	return o.status.Status()
}

// Selection returns the selection model for read access.
func (o *Orchestrator) Selection() *selection.Model {
	return o.sel
}

// Animating reports whether an edit animation is in progress. The text
// surface is treated as read-only while it is.
func (o *Orchestrator) Animating() bool {
	return o.anim.Active()
}

// Degraded reports whether the store has failed and the session is
// running in memory only.
func (o *Orchestrator) Degraded() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.degraded
}

// Artifact returns the current compiled artifact, or nil before the
// first successful compile.
func (o *Orchestrator) Artifact() *Artifact {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.artifact
}

// ApplyEdit replaces the full source text with a manual edit, persists
// it, and recomputes status and selection bounds.
func (o *Orchestrator) ApplyEdit(text string) {
	o.buf.SetText(text)
	o.sel.SetLineCount(o.buf.LineCount())

	if err := o.persist(text); err != nil {
		o.log.Warn("persist after edit: %v", err)
	}
	o.publishStatus(o.status.Recompute(text))
}

// SetActiveLine moves the active line and publishes the selection.
func (o *Orchestrator) SetActiveLine(line int) {
	o.sel.SetActiveLine(line)
	o.publishSelection()
}

// SelectRange sets a multi-line selection and publishes it.
func (o *Orchestrator) SelectRange(r buffer.LineRange) {
	o.sel.SetRange(r)
	o.publishSelection()
}

// ClearSelection resets the selection and publishes it.
func (o *Orchestrator) ClearSelection() {
	o.sel.Clear()
	o.publishSelection()
}

// Compile sends the current source to the compile service and installs
// the resulting artifact.
//
// A malformed region map on an otherwise successful response keeps the
// prior artifact: stale highlighting beats no highlighting. Transport
// failures likewise leave the artifact untouched.
func (o *Orchestrator) Compile(ctx context.Context) error {
	source := o.buf.Text()
	o.publishStatus(o.status.BeginCompile(source))

	result, err := o.compiler.Compile(ctx, source)

	current := o.buf.Text()
	if err != nil {
		o.publishStatus(o.status.EndCompile(current))
		o.bus.Publish(event.TopicCompileFailed, err)

		switch {
		case errors.Is(err, compile.ErrEmptySource):
			o.log.Warn("compile skipped: empty source")
		case errors.Is(err, regionmap.ErrMalformedPayload):
			o.log.Warn("compile returned malformed region map, keeping prior artifact: %v", err)
		default:
			o.log.Error("compile failed: %v", err)
		}
		return err
	}

	art := &Artifact{Snapshot: result.Snapshot, PDF: result.PDF, Map: result.Map}
	o.mu.Lock()
	o.artifact = art
	o.pageKey = ""
	o.pages = nil
	o.mu.Unlock()

	o.status.SetSnapshot(result.Snapshot, current)
	o.publishStatus(o.status.EndCompile(current))
	o.bus.Publish(event.TopicArtifactReplaced, art)

	o.log.Info("artifact replaced: %d bytes, %d mappings",
		len(art.PDF), len(art.Map.Mappings))
	return nil
}

// Rasterize renders the current artifact's pages at the given display
// scale. Renders are cached per artifact and scale; replacing the
// artifact invalidates the cache.
func (o *Orchestrator) Rasterize(ctx context.Context, scale float64) ([]raster.PageRender, error) {
	o.mu.RLock()
	art := o.artifact
	if art != nil && o.pageKey == artifactKey(art) && o.pageScale == scale {
		pages := o.pages
		o.mu.RUnlock()
		return pages, nil
	}
	o.mu.RUnlock()

	if art == nil {
		return nil, fmt.Errorf("%w: no artifact", raster.ErrRasterization)
	}

	pages, err := o.rast.Render(ctx, art.PDF, art.Map, scale)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.pageKey = artifactKey(art)
	o.pageScale = scale
	o.pages = pages
	o.mu.Unlock()

	return pages, nil
}

// RegionsForLine returns every rendered region of the given source
// line in display coordinates, using the most recent rasterization.
// Empty when there is no artifact, no rasterization yet, or the line
// produced no output (a comment or blank line).
func (o *Orchestrator) RegionsForLine(line int) []LineRegion {
	o.mu.RLock()
	art := o.artifact
	pages := o.pages
	o.mu.RUnlock()

	if art == nil || len(pages) == 0 {
		return nil
	}

	transforms := make(map[int]geometry.Affine, len(pages))
	for _, p := range pages {
		transforms[p.Page] = p.Transform
	}

	var out []LineRegion
	for _, m := range art.Map.MappingsForLine(line) {
		t, ok := transforms[m.Page]
		if !ok {
			continue
		}
		out = append(out, LineRegion{
			Page: m.Page,
			Rect: geometry.TransformRect(m.X, m.Y, m.Width, m.Height, t),
		})
	}
	return out
}

// ClickAt resolves a click at display coordinates on a rendered page to
// a source line and updates the selection. With extend set, the
// selection grows from the current active line to the clicked line.
// A click that hits no mapped region is a no-op and reports false.
func (o *Orchestrator) ClickAt(page int, x, y float64, extend bool) (int, bool) {
	o.mu.RLock()
	art := o.artifact
	pages := o.pages
	o.mu.RUnlock()

	if art == nil {
		return 0, false
	}

	var transform geometry.Affine
	found := false
	for _, p := range pages {
		if p.Page == page {
			transform = p.Transform
			found = true
			break
		}
	}
	if !found {
		return 0, false
	}

	for _, m := range art.Map.Mappings {
		if m.Page != page {
			continue
		}
		rect := geometry.TransformRect(m.X, m.Y, m.Width, m.Height, transform)
		if !rect.Contains(x, y) {
			continue
		}

		if extend && o.sel.ActiveLine() != 0 {
			o.sel.ExtendTo(o.sel.ActiveLine(), m.SourceLine)
		} else {
			o.sel.SetActiveLine(m.SourceLine)
		}
		o.publishSelection()
		return m.SourceLine, true
	}

	return 0, false
}

// RequestRewrite sends the prompt plus current selection context to the
// rewrite provider. When the reply carries replacement text, an edit
// animation is started over the selected range in its own goroutine;
// the conversational reply is returned immediately either way.
func (o *Orchestrator) RequestRewrite(ctx context.Context, prompt string) (*rewrite.Response, error) {
	if o.rewriter == nil {
		return nil, errors.New("no rewrite provider configured")
	}

	req := rewrite.Request{Prompt: prompt}
	rng, hasRange := o.sel.Range()
	switch {
	case hasRange:
		for line := rng.Start; line <= rng.End; line++ {
			req.Lines = append(req.Lines, rewrite.LineContext{
				LineNumber: line,
				Text:       o.buf.LineText(line),
			})
		}
	case o.sel.ActiveLine() != 0:
		line := o.sel.ActiveLine()
		req.Line = &rewrite.LineContext{LineNumber: line, Text: o.buf.LineText(line)}
		rng = buffer.LineRange{Start: line, End: line}
	default:
		rng = buffer.LineRange{Start: 1, End: o.buf.LineCount()}
	}

	resp, err := o.rewriter.Rewrite(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.LaTeX != nil {
		replacement := *resp.LaTeX
		if o.hook != nil {
			transformed, err := o.hook.Transform(ctx, replacement, rng.Start, rng.End)
			if err != nil {
				o.log.Warn("rewrite hook failed, using raw replacement: %v", err)
			} else {
				replacement = transformed
			}
		}
		go o.anim.Apply(context.WithoutCancel(ctx), rng, replacement)
	}

	return resp, nil
}

// persist writes the document to the store. A failing store flips the
// session into degraded mode exactly once; editing continues in memory.
func (o *Orchestrator) persist(content string) error {
	if o.store == nil {
		return nil
	}
	if err := o.store.Save(o.slot, content); err != nil {
		o.setDegraded(err)
		return err
	}
	return nil
}

func (o *Orchestrator) setDegraded(err error) {
	o.mu.Lock()
	already := o.degraded
	o.degraded = true
	o.mu.Unlock()

	if !already {
		o.log.Error("store degraded, continuing in memory: %v", err)
		o.bus.Publish(event.TopicStoreDegraded, err)
	}
}

func (o *Orchestrator) publishStatus(s status.Status) {
	o.bus.Publish(event.TopicStatusChanged, StatusEvent{Status: s})
}

func (o *Orchestrator) publishSelection() {
	rng, hasRange := o.sel.Range()
	o.bus.Publish(event.TopicSelectionChanged, SelectionEvent{
		ActiveLine: o.sel.ActiveLine(),
		Range:      rng,
		HasRange:   hasRange,
	})
}

// artifactKey is the page-render cache key for an artifact.
func artifactKey(a *Artifact) string {
	sum := sha256.Sum256(a.PDF)
	return hex.EncodeToString(sum[:])
}
