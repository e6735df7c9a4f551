package input

import (
	"context"
	"errors"
	"sync"

	"github.com/dshills/keystrokes/internal/input/key"
)

// ErrLoopClosed is returned by Loop.Post once the loop has stopped.
var ErrLoopClosed = errors.New("input: loop closed")

// Scheduler defers work by one tick. Combo evaluation is scheduled through
// it so that key events arriving back to back are evaluated together.
type Scheduler interface {
	// Defer arranges for fn to run after the work currently being
	// processed. It must be called from the goroutine owning the dispatcher.
	Defer(fn func())
}

// ImmediateScheduler runs deferred work inline. Every key event is
// evaluated on its own.
type ImmediateScheduler struct{}

// Defer runs fn immediately.
func (ImmediateScheduler) Defer(fn func()) {
	fn()
}

// Loop is a single-goroutine event loop that owns a dispatcher. Environment
// binders running on other goroutines hand their events to the loop with
// Post; deferred work runs once the already-posted events are drained, which
// coalesces bursts of key events into one combo evaluation.
type Loop struct {
	events chan func()
	done   chan struct{}
	once   sync.Once

	// deferred is only touched by the loop goroutine.
	deferred []func()
}

// NewLoop creates a loop whose queue holds up to buffer posted events.
func NewLoop(buffer int) *Loop {
	if buffer < 1 {
		buffer = 1
	}
	return &Loop{
		events: make(chan func(), buffer),
		done:   make(chan struct{}),
	}
}

// Post queues fn to run on the loop goroutine. It blocks while the queue is
// full and returns ErrLoopClosed if the loop has stopped.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrLoopClosed
	default:
	}
	select {
	case l.events <- fn:
		return nil
	case <-l.done:
		return ErrLoopClosed
	}
}

// Defer implements Scheduler. It must be called from the loop goroutine.
func (l *Loop) Defer(fn func()) {
	l.deferred = append(l.deferred, fn)
}

// Run processes posted events until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.done) })

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.events:
			fn()
			l.drain()
			l.runDeferred()
		}
	}
}

// drain runs the events that are already queued without blocking.
func (l *Loop) drain() {
	for {
		select {
		case fn := <-l.events:
			fn()
		default:
			return
		}
	}
}

func (l *Loop) runDeferred() {
	for len(l.deferred) > 0 {
		fns := l.deferred
		l.deferred = nil
		for _, fn := range fns {
			fn()
		}
	}
}

// Bind returns opts with every binder wrapped so that events are posted to
// the loop, and with the loop installed as the scheduler.
func (l *Loop) Bind(opts Options) Options {
	opts.OnActive = l.wrapActive(opts.OnActive)
	opts.OnInactive = l.wrapActive(opts.OnInactive)
	opts.OnKeyPressed = l.wrapKey(opts.OnKeyPressed)
	opts.OnKeyReleased = l.wrapKey(opts.OnKeyReleased)
	opts.Scheduler = l
	return opts
}

func (l *Loop) wrapActive(b ActiveBinder) ActiveBinder {
	if b == nil {
		return nil
	}
	return func(fn func()) func() {
		return b(func() {
			_ = l.Post(fn)
		})
	}
}

func (l *Loop) wrapKey(b KeyBinder) KeyBinder {
	if b == nil {
		return nil
	}
	return func(fn func(key.Event)) func() {
		return b(func(e key.Event) {
			_ = l.Post(func() { fn(e) })
		})
	}
}
