// Package inputtest provides a dispatcher driven by hand, for tests.
//
// Keystrokes replaces the environment binders with methods that deliver
// events directly, ManualScheduler holds combo evaluation until Tick, and
// Clock drives the sequence timeout.
package inputtest

import (
	"time"

	"github.com/dshills/keystrokes/internal/input"
	"github.com/dshills/keystrokes/internal/input/key"
)

// ManualScheduler queues deferred work until Tick is called.
type ManualScheduler struct {
	pending []func()
}

// Defer implements input.Scheduler.
func (s *ManualScheduler) Defer(fn func()) {
	s.pending = append(s.pending, fn)
}

// Pending returns the number of queued functions.
func (s *ManualScheduler) Pending() int {
	return len(s.pending)
}

// Tick runs the functions queued before the call. Work deferred while they
// run waits for the next tick. It returns how many functions ran.
func (s *ManualScheduler) Tick() int {
	fns := s.pending
	s.pending = nil
	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// Clock is a manually advanced time source.
type Clock struct {
	now time.Time
}

// NewClock creates a clock set to start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current time of the clock.
func (c *Clock) Now() time.Time {
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// Keystrokes is a dispatcher whose environment is driven by its methods.
type Keystrokes struct {
	*input.Keystrokes

	activate   func()
	deactivate func()
	press      func(key.Event)
	release    func(key.Event)
}

// New creates a test dispatcher. The binders in opts are replaced; every
// other option is kept.
func New(opts input.Options) *Keystrokes {
	t := &Keystrokes{}
	opts.OnActive = func(fn func()) func() {
		t.activate = fn
		return func() { t.activate = nil }
	}
	opts.OnInactive = func(fn func()) func() {
		t.deactivate = fn
		return func() { t.deactivate = nil }
	}
	opts.OnKeyPressed = func(fn func(key.Event)) func() {
		t.press = fn
		return func() { t.press = nil }
	}
	opts.OnKeyReleased = func(fn func(key.Event)) func() {
		t.release = fn
		return func() { t.release = nil }
	}
	t.Keystrokes = input.New(opts)
	return t
}

// Activate simulates the environment gaining focus.
func (t *Keystrokes) Activate() {
	if t.activate != nil {
		t.activate()
	}
}

// Deactivate simulates the environment losing focus.
func (t *Keystrokes) Deactivate() {
	if t.deactivate != nil {
		t.deactivate()
	}
}

// Press delivers a key press. It does nothing once the environment is
// unbound.
func (t *Keystrokes) Press(e key.Event) {
	if t.press != nil {
		t.press(e)
	}
}

// Release delivers a key release. It does nothing once the environment is
// unbound.
func (t *Keystrokes) Release(e key.Event) {
	if t.release != nil {
		t.release(e)
	}
}

// PressKey presses name with the given aliases.
func (t *Keystrokes) PressKey(name string, aliases ...string) {
	t.Press(key.NewEvent(name, aliases...))
}

// ReleaseKey releases name with the given aliases.
func (t *Keystrokes) ReleaseKey(name string, aliases ...string) {
	t.Release(key.NewEvent(name, aliases...))
}

// Tap presses and releases each name in turn.
func (t *Keystrokes) Tap(names ...string) {
	for _, name := range names {
		t.PressKey(name)
		t.ReleaseKey(name)
	}
}
