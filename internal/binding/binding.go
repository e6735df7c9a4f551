// Package binding holds the pieces shared by the environment binders: a hub
// that turns the dispatcher's binder callbacks into plain method calls.
package binding

import (
	"maps"
	"slices"
	"sync"

	"github.com/dshills/keystrokes/internal/input"
	"github.com/dshills/keystrokes/internal/input/key"
)

// Hub fans environment events out to the functions a dispatcher registered
// through the binders returned by Options. It is safe for concurrent use.
// Registered functions are called without the lock held.
type Hub struct {
	mu     sync.Mutex
	nextID int

	active   map[int]func()
	inactive map[int]func()
	pressed  map[int]func(key.Event)
	released map[int]func(key.Event)
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		active:   make(map[int]func()),
		inactive: make(map[int]func()),
		pressed:  make(map[int]func(key.Event)),
		released: make(map[int]func(key.Event)),
	}
}

// Options returns opts with its four binders pointing at the hub.
func (h *Hub) Options(opts input.Options) input.Options {
	opts.OnActive = activeBinder(h, h.active)
	opts.OnInactive = activeBinder(h, h.inactive)
	opts.OnKeyPressed = keyBinder(h, h.pressed)
	opts.OnKeyReleased = keyBinder(h, h.released)
	return opts
}

func register[F any](h *Hub, fns map[int]F, fn F) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	fns[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(fns, id)
	}
}

func activeBinder(h *Hub, fns map[int]func()) input.ActiveBinder {
	return func(fn func()) func() {
		return register(h, fns, fn)
	}
}

func keyBinder(h *Hub, fns map[int]func(key.Event)) input.KeyBinder {
	return func(fn func(key.Event)) func() {
		return register(h, fns, fn)
	}
}

// snapshot copies the functions in registration order.
func snapshot[F any](h *Hub, fns map[int]F) []F {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := slices.Sorted(maps.Keys(fns))
	out := make([]F, len(ids))
	for i, id := range ids {
		out[i] = fns[id]
	}
	return out
}

// Press reports a key press or repeat.
func (h *Hub) Press(e key.Event) {
	for _, fn := range snapshot(h, h.pressed) {
		fn(e)
	}
}

// Release reports a key release.
func (h *Hub) Release(e key.Event) {
	for _, fn := range snapshot(h, h.released) {
		fn(e)
	}
}

// Activate reports that the environment gained input focus.
func (h *Hub) Activate() {
	for _, fn := range snapshot(h, h.active) {
		fn()
	}
}

// Deactivate reports that the environment lost input focus.
func (h *Hub) Deactivate() {
	for _, fn := range snapshot(h, h.inactive) {
		fn()
	}
}

// Bound reports whether any dispatcher is listening for key presses.
func (h *Hub) Bound() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pressed) > 0
}
