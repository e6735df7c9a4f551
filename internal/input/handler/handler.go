// Package handler wraps user callbacks for key and combo events and tracks
// their pressed/released transitions.
//
// A Handler is either a single repeat callback (Fn) or a set of named
// callbacks (Callbacks). Handlers are compared by identity, so the same
// pointer passed to a bind call must be passed to the matching unbind call.
package handler

// Handler is the sealed union of Fn and Callbacks.
type Handler[E any] interface {
	callbacks() Callbacks[E]
}

// Callbacks holds up to three callbacks. Any of them may be nil.
type Callbacks[E any] struct {
	// OnPressed runs once per press/release cycle, on the initial press.
	OnPressed func(E)

	// OnPressedWithRepeat runs on the initial press and on every repeat.
	OnPressedWithRepeat func(E)

	// OnReleased runs on release if the handler was pressed.
	OnReleased func(E)
}

func (c *Callbacks[E]) callbacks() Callbacks[E] {
	if c == nil {
		return Callbacks[E]{}
	}
	return *c
}

// RepeatFunc is a handler made of a single callback that runs on every
// press, including key repeats.
type RepeatFunc[E any] struct {
	fn func(E)
}

// Fn wraps fn as a handler. The returned pointer is the handler's identity.
func Fn[E any](fn func(E)) *RepeatFunc[E] {
	return &RepeatFunc[E]{fn: fn}
}

func (f *RepeatFunc[E]) callbacks() Callbacks[E] {
	if f == nil {
		return Callbacks[E]{}
	}
	return Callbacks[E]{OnPressedWithRepeat: f.fn}
}
