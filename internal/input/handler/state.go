package handler

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// PanicError is returned when a user callback panics.
type PanicError struct {
	// Callback names the callback that panicked.
	Callback string

	// Value is the recovered panic value.
	Value any

	// Stack is the goroutine stack at the time of the panic.
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler %s panicked: %v", e.Callback, e.Value)
}

// State wraps one Handler with its pressed flag.
type State[E any] struct {
	identity Handler[E]
	cb       Callbacks[E]
	pressed  bool
}

// NewState creates the state for h. A nil h produces an empty state, used
// for combos that are only queried and never fire.
func NewState[E any](h Handler[E]) *State[E] {
	s := &State[E]{identity: h}
	if h != nil {
		s.cb = h.callbacks()
	}
	return s
}

// IsEmpty reports whether the handler has no callbacks at all.
func (s *State[E]) IsEmpty() bool {
	return s.cb.OnPressed == nil && s.cb.OnPressedWithRepeat == nil && s.cb.OnReleased == nil
}

// IsPressed reports whether the handler is between a press and a release.
func (s *State[E]) IsPressed() bool {
	return s.pressed
}

// IsOwnHandler reports whether h is the handler this state was created from.
func (s *State[E]) IsOwnHandler(h Handler[E]) bool {
	return s.identity != nil && s.identity == h
}

// ExecutePressed runs OnPressed if the handler is not yet pressed, then
// OnPressedWithRepeat. Panics are recovered and returned as *PanicError;
// a panic in OnPressed does not prevent OnPressedWithRepeat from running.
func (s *State[E]) ExecutePressed(event E) error {
	var errs []error
	if !s.pressed {
		errs = append(errs, invoke("OnPressed", s.cb.OnPressed, event))
	}
	s.pressed = true
	errs = append(errs, invoke("OnPressedWithRepeat", s.cb.OnPressedWithRepeat, event))
	return errors.Join(errs...)
}

// ExecuteReleased runs OnReleased if the handler is pressed and clears the
// pressed flag either way.
func (s *State[E]) ExecuteReleased(event E) error {
	wasPressed := s.pressed
	s.pressed = false
	if !wasPressed {
		return nil
	}
	return invoke("OnReleased", s.cb.OnReleased, event)
}

func invoke[E any](name string, fn func(E), event E) (err error) {
	if fn == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Callback: name, Value: r, Stack: debug.Stack()}
		}
	}()
	fn(event)
	return nil
}
