// Package hook runs a user-supplied Lua script over rewrite
// replacements before they reach the buffer. The script defines
//
//	function transform_rewrite(latex, start_line, end_line)
//	    return latex
//	end
//
// and may normalize, reformat, or reject the replacement. Returning nil
// keeps the original text unchanged.
package hook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/texmirror/internal/logging"
)

// ErrHookFailed is returned when the script raises an error or returns
// a value of the wrong type.
var ErrHookFailed = errors.New("hook: script failed")

const transformFn = "transform_rewrite"

// Runner executes the rewrite hook. A single Lua state backs all calls;
// LState is not goroutine-safe so calls are serialized with a mutex.
type Runner struct {
	mu      sync.Mutex
	L       *lua.LState
	timeout time.Duration
	log     *logging.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithTimeout bounds each script invocation.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// New loads the script at path into a sandboxed Lua state. The script
// runs once at load time to define its functions.
func New(path string, opts ...Option) (*Runner, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("hook: read script: %w", err)
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.StringLibName, lua.OpenString},
		{lua.TabLibName, lua.OpenTable},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	// Base brings loaders along with it. Remove anything that reaches
	// the filesystem or compiles arbitrary chunks.
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}

	r := &Runner{
		L:       L,
		timeout: 2 * time.Second,
		log:     logging.Null,
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := L.DoString(string(src)); err != nil {
		L.Close()
		return nil, fmt.Errorf("%w: %v", ErrHookFailed, err)
	}
	if L.GetGlobal(transformFn).Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("%w: script does not define %s", ErrHookFailed, transformFn)
	}

	r.log.Debug("hook loaded: %s", path)
	return r, nil
}

// Transform runs the script over a replacement destined for the given
// line range. Returns the (possibly modified) replacement. A nil return
// from the script keeps the input unchanged.
func (r *Runner) Transform(ctx context.Context, latex string, startLine, endLine int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	r.L.SetContext(ctx)
	defer r.L.RemoveContext()

	fn := r.L.GetGlobal(transformFn)
	if err := r.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true},
		lua.LString(latex), lua.LNumber(startLine), lua.LNumber(endLine)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrHookFailed, err)
	}

	ret := r.L.Get(-1)
	r.L.Pop(1)

	switch v := ret.(type) {
	case lua.LString:
		return string(v), nil
	case *lua.LNilType:
		return latex, nil
	default:
		return "", fmt.Errorf("%w: %s returned %s, want string or nil",
			ErrHookFailed, transformFn, ret.Type())
	}
}

// Close releases the Lua state.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.L.Close()
}
