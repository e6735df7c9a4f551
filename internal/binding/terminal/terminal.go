// Package terminal binds a dispatcher to a terminal through tcell.
//
// Terminals report key presses only, with modifiers folded into the event.
// The binder expands each event into presses of the modifier keys followed
// by the key itself, and synthesizes the releases: when a different key
// arrives, or when no repeat of the held key arrives within the hold window.
package terminal

import (
	"context"
	"fmt"
	"slices"
	"time"
	"unicode"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"

	"github.com/dshills/keystrokes/internal/binding"
	"github.com/dshills/keystrokes/internal/input"
	"github.com/dshills/keystrokes/internal/input/key"
)

// DefaultHoldWindow is how long a key counts as held after its last event.
const DefaultHoldWindow = 200 * time.Millisecond

// Source delivers terminal events. tcell.Screen implements it.
type Source interface {
	ChannelEvents(ch chan<- tcell.Event, quit <-chan struct{})
}

// Binder feeds terminal key and focus events to a dispatcher.
type Binder struct {
	hub    *binding.Hub
	source Source
	hold   time.Duration
	logger zerolog.Logger

	// held is owned by the Run goroutine.
	held []key.Event
}

// Option configures a Binder.
type Option func(*Binder)

// WithHoldWindow sets how long a key stays held without a repeat.
func WithHoldWindow(d time.Duration) Option {
	return func(b *Binder) {
		if d > 0 {
			b.hold = d
		}
	}
}

// WithLogger sets the logger for untranslatable events.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Binder) {
		b.logger = l
	}
}

// New creates a binder reading from source.
func New(source Source, opts ...Option) *Binder {
	b := &Binder{
		hub:    binding.NewHub(),
		source: source,
		hold:   DefaultHoldWindow,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Options returns opts with the binders pointing at this terminal.
func (b *Binder) Options(opts input.Options) input.Options {
	return b.hub.Options(opts)
}

// Run reads terminal events until ctx is done or the source stops. Keys still
// held when it returns are released.
func (b *Binder) Run(ctx context.Context) error {
	events := make(chan tcell.Event, 16)
	quit := make(chan struct{})
	defer close(quit)
	go b.source.ChannelEvents(events, quit)

	timer := time.NewTimer(b.hold)
	timer.Stop()
	defer timer.Stop()
	defer b.releaseAll()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if b.handle(ev) {
				timer.Reset(b.hold)
			}

		case <-timer.C:
			b.releaseAll()
		}
	}
}

// handle processes one event and reports whether keys are now held.
func (b *Binder) handle(ev tcell.Event) bool {
	switch e := ev.(type) {
	case *tcell.EventKey:
		keys, err := Translate(e)
		if err != nil {
			b.logger.Debug().Err(err).Msg("ignoring key event")
			return len(b.held) > 0
		}
		if b.isRepeat(keys) {
			b.hub.Press(keys[len(keys)-1])
			return true
		}
		b.releaseAll()
		for _, k := range keys {
			b.hub.Press(k)
		}
		b.held = keys
		return true

	case *tcell.EventFocus:
		if e.Focused {
			b.hub.Activate()
			return len(b.held) > 0
		}
		b.releaseAll()
		b.hub.Deactivate()
		return false
	}
	return len(b.held) > 0
}

func (b *Binder) isRepeat(keys []key.Event) bool {
	return slices.EqualFunc(b.held, keys, func(a, b key.Event) bool {
		return a.Key == b.Key
	})
}

// releaseAll releases the held keys in reverse press order.
func (b *Binder) releaseAll() {
	for i := len(b.held) - 1; i >= 0; i-- {
		b.hub.Release(b.held[i])
	}
	b.held = nil
}

// Translate expands a terminal key event into the key events of its
// modifiers, in the order ctrl, alt, shift, meta, followed by the key.
func Translate(e *tcell.EventKey) ([]key.Event, error) {
	mods := modifiers(e.Modifiers())
	k := e.Key()

	var name string
	switch {
	case k == tcell.KeyRune:
		r := e.Rune()
		if unicode.IsUpper(r) {
			mods = mods.With(key.ModShift)
			r = unicode.ToLower(r)
		}
		name = string(r)

	case k >= tcell.KeyCtrlA && k <= tcell.KeyCtrlZ:
		mods = mods.With(key.ModCtrl)
		name = string(rune('a' + k - tcell.KeyCtrlA))

	case k == tcell.KeyCtrlSpace || k == tcell.KeyNUL:
		mods = mods.With(key.ModCtrl)
		name = "space"

	case k == tcell.KeyBacktab:
		mods = mods.With(key.ModShift)
		name = "tab"

	case k >= tcell.KeyF1 && k <= tcell.KeyF64:
		name = fmt.Sprintf("f%d", k-tcell.KeyF1+1)

	default:
		var ok bool
		if name, ok = namedKeys[k]; !ok {
			// Remaining ASCII control codes are ctrl+letter.
			if k > tcell.KeyNUL && k < tcell.KeyESC {
				mods = mods.With(key.ModCtrl)
				name = string(rune('a' + k - 1))
			} else {
				return nil, fmt.Errorf("unsupported key %s", e.Name())
			}
		}
	}

	out := make([]key.Event, 0, 5)
	for _, m := range mods.Names() {
		out = append(out, withOriginal(key.CanonicalEvent(m), e))
	}
	if key.ModifierFromName(name) == key.ModNone {
		out = append(out, withOriginal(key.CanonicalEvent(name), e))
	}
	return out, nil
}

func withOriginal(ev key.Event, e *tcell.EventKey) key.Event {
	ev.Original = e
	ev.Timestamp = e.When()
	return ev
}

func modifiers(m tcell.ModMask) key.Modifier {
	var out key.Modifier
	if m&tcell.ModCtrl != 0 {
		out = out.With(key.ModCtrl)
	}
	if m&tcell.ModAlt != 0 {
		out = out.With(key.ModAlt)
	}
	if m&tcell.ModShift != 0 {
		out = out.With(key.ModShift)
	}
	if m&tcell.ModMeta != 0 {
		out = out.With(key.ModMeta)
	}
	return out
}

// namedKeys maps tcell special keys to key identifiers. It is filled from a
// list because several tcell constants share a value.
var namedKeys = func() map[tcell.Key]string {
	list := []struct {
		k    tcell.Key
		name string
	}{
		{tcell.KeyEnter, "enter"},
		{tcell.KeyTab, "tab"},
		{tcell.KeyBackspace, "backspace"},
		{tcell.KeyBackspace2, "backspace"},
		{tcell.KeyEscape, "escape"},
		{tcell.KeyDelete, "delete"},
		{tcell.KeyInsert, "insert"},
		{tcell.KeyUp, "up"},
		{tcell.KeyDown, "down"},
		{tcell.KeyLeft, "left"},
		{tcell.KeyRight, "right"},
		{tcell.KeyHome, "home"},
		{tcell.KeyEnd, "end"},
		{tcell.KeyPgUp, "pageup"},
		{tcell.KeyPgDn, "pagedown"},
		{tcell.KeyClear, "clear"},
		{tcell.KeyPause, "pause"},
		{tcell.KeyPrint, "printscreen"},
		{tcell.KeyCancel, "cancel"},
		{tcell.KeyHelp, "help"},
		{tcell.KeyMenu, "contextmenu"},
		{tcell.KeyCapsLock, "capslock"},
		{tcell.KeyScrollLock, "scrolllock"},
		{tcell.KeyNumLock, "numlock"},
	}
	m := make(map[tcell.Key]string, len(list))
	for _, e := range list {
		m[e.k] = e.name
	}
	return m
}()
