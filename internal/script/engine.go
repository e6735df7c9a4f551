package script

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/keystrokes/internal/input"
	"github.com/dshills/keystrokes/internal/keymap"
)

// DefaultExecutionTimeout bounds a script run or a single callback.
const DefaultExecutionTimeout = 5 * time.Second

// ErrClosed is returned when operating on a closed engine.
var ErrClosed = errors.New("script engine is closed")

// Dispatcher is the part of the dispatcher exposed to scripts.
// *input.Keystrokes implements it.
type Dispatcher interface {
	BindKey(name string, h input.KeyHandler)
	UnbindKey(name string, h input.KeyHandler)
	BindKeyCombo(raw string, h input.ComboHandler) error
	UnbindKeyCombo(raw string, h input.ComboHandler) error
	CheckKey(name string) bool
	CheckKeyCombo(raw string) (bool, error)
	CheckKeyComboSequenceIndex(raw string) (int, error)
	PressedKeys() []string
}

// Engine runs Lua scripts against a dispatcher.
//
// gopher-lua's LState is not goroutine-safe. An Engine must be used from the
// goroutine that owns the dispatcher, which is also where script callbacks
// run.
type Engine struct {
	L *lua.LState

	mu sync.Mutex

	dispatcher Dispatcher
	keymaps    *keymap.Registry
	logger     zerolog.Logger
	timeout    time.Duration

	// bindings tracks the handlers created by the script, by id.
	bindings map[int]*binding
	nextID   int

	closed bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger behind keystrokes.log and callback errors.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithExecutionTimeout bounds each script run and callback. Zero disables
// the bound.
func WithExecutionTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithKeymap exposes keystrokes.action, which registers named actions on r.
func WithKeymap(r *keymap.Registry) Option {
	return func(e *Engine) {
		e.keymaps = r
	}
}

// New creates a sandboxed Lua engine bound to d.
func New(d Dispatcher, opts ...Option) *Engine {
	e := &Engine{
		dispatcher: d,
		logger:     zerolog.Nop(),
		timeout:    DefaultExecutionTimeout,
		bindings:   make(map[int]*binding),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(e.L)
	e.L.SetGlobal(ModuleName, e.module())
	return e
}

// openSafeLibraries opens the Lua standard libraries that cannot reach the
// host system.
func openSafeLibraries(L *lua.LState) {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// DoFile executes a Lua file.
func (e *Engine) DoFile(path string) error {
	return e.run(func() error { return e.L.DoFile(path) })
}

// DoString executes a Lua chunk.
func (e *Engine) DoString(code string) error {
	return e.run(func() error { return e.L.DoString(code) })
}

// run executes fn with the execution timeout and panic recovery.
func (e *Engine) run(fn func() error) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	if e.timeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()
		e.L.SetContext(ctx)
		defer e.L.RemoveContext()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// call invokes a Lua callback with args. Errors are logged, never returned:
// a failing callback must not affect the dispatcher.
func (e *Engine) call(what string, fn *lua.LFunction, args ...lua.LValue) {
	err := e.run(func() error {
		return e.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...)
	})
	if err != nil && !errors.Is(err, ErrClosed) {
		e.logger.Error().Err(err).Str("callback", what).Msg("script callback failed")
	}
}

// Close unbinds every handler the scripts created and releases the Lua
// state.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	var errs []error
	for id, b := range e.bindings {
		errs = append(errs, b.unbind(e.dispatcher))
		delete(e.bindings, id)
	}
	e.L.Close()
	return errors.Join(errs...)
}
