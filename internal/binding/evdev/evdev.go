//go:build linux

// Package evdev binds a dispatcher to Linux input devices.
//
// Unlike terminals, evdev reports real key-down, auto-repeat and key-up
// transitions, so no releases are synthesized. Reading /dev/input usually
// requires membership in the input group.
package evdev

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/holoplot/go-evdev"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/keystrokes/internal/binding"
	"github.com/dshills/keystrokes/internal/input"
	"github.com/dshills/keystrokes/internal/input/key"
)

// ErrNoKeyboard is returned by Run when no keyboard device can be opened.
var ErrNoKeyboard = errors.New("evdev: no keyboard device found")

// Transition is the state change an EV_KEY event reports.
type Transition int

const (
	// Release is a key-up.
	Release Transition = iota
	// Press is a key-down.
	Press
	// Repeat is an auto-repeat while the key is held.
	Repeat
)

// Binder feeds key events read from input devices to a dispatcher.
type Binder struct {
	hub    *binding.Hub
	paths  []string
	logger zerolog.Logger

	// pressed is owned by the Run goroutine.
	pressed []key.Event
}

// Option configures a Binder.
type Option func(*Binder)

// WithDevices reads from the given device paths instead of every keyboard.
func WithDevices(paths ...string) Option {
	return func(b *Binder) {
		b.paths = append(b.paths, paths...)
	}
}

// WithLogger sets the logger for device errors.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Binder) {
		b.logger = l
	}
}

// New creates a binder.
func New(opts ...Option) *Binder {
	b := &Binder{
		hub:    binding.NewHub(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Options returns opts with the binders pointing at the devices. Devices are
// read on their own goroutines, but events reach the dispatcher only from
// the goroutine calling Run.
func (b *Binder) Options(opts input.Options) input.Options {
	return b.hub.Options(opts)
}

// Run reads the devices until ctx is done or one of them fails. Keys still
// pressed when it returns are released.
func (b *Binder) Run(ctx context.Context) error {
	paths := b.paths
	if len(paths) == 0 {
		var err error
		if paths, err = Keyboards(); err != nil {
			return err
		}
	}

	var (
		devices []*evdev.InputDevice
		opened  []string
	)
	for _, p := range paths {
		dev, err := evdev.Open(p)
		if err != nil {
			b.logger.Warn().Err(err).Str("device", p).Msg("cannot open device")
			continue
		}
		b.logger.Debug().Str("device", p).Msg("reading device")
		devices = append(devices, dev)
		opened = append(opened, p)
	}
	if len(devices) == 0 {
		return ErrNoKeyboard
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan evdev.InputEvent, 64)
	g, gctx := errgroup.WithContext(ctx)
	for i, dev := range devices {
		path := opened[i]
		g.Go(func() error {
			return read(gctx, dev, path, events)
		})
	}
	// Closing a device unblocks its ReadOne.
	go func() {
		<-gctx.Done()
		for _, dev := range devices {
			_ = dev.Close()
		}
	}()
	readErr := make(chan error, 1)
	go func() {
		readErr <- g.Wait()
		close(events)
	}()

	b.hub.Activate()
	defer b.releaseAll()

	for {
		select {
		case <-ctx.Done():
			cancel()
			// Let the readers stop before the deferred release.
			for range events {
			}
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				err := <-readErr
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return err
			}
			b.handle(&ev)
		}
	}
}

func read(ctx context.Context, dev *evdev.InputDevice, path string, out chan<- evdev.InputEvent) error {
	for {
		ev, err := dev.ReadOne()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read %s: %w", path, err)
		}
		if ev.Type != evdev.EV_KEY {
			continue
		}
		select {
		case out <- *ev:
		case <-ctx.Done():
			return nil
		}
	}
}

func (b *Binder) handle(ev *evdev.InputEvent) {
	e, tr, ok := Translate(ev)
	if !ok {
		return
	}
	switch tr {
	case Press, Repeat:
		if !slices.ContainsFunc(b.pressed, func(p key.Event) bool { return p.Key == e.Key }) {
			b.pressed = append(b.pressed, e)
		}
		b.hub.Press(e)
	case Release:
		b.pressed = slices.DeleteFunc(b.pressed, func(p key.Event) bool { return p.Key == e.Key })
		b.hub.Release(e)
	}
}

func (b *Binder) releaseAll() {
	for i := len(b.pressed) - 1; i >= 0; i-- {
		b.hub.Release(b.pressed[i])
	}
	b.pressed = nil
}

// Keyboards lists the devices that report key and repeat events.
func Keyboards() ([]string, error) {
	inputs, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	var out []string
	for _, in := range inputs {
		dev, err := evdev.Open(in.Path)
		if err != nil {
			continue
		}
		types := dev.CapableTypes()
		_ = dev.Close()
		if slices.Contains(types, evdev.EV_KEY) && slices.Contains(types, evdev.EV_REP) {
			out = append(out, in.Path)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoKeyboard
	}
	return out, nil
}

// Translate converts an EV_KEY event into a key event and its transition.
// It reports false for other event types and for non-keyboard codes such as
// mouse buttons.
func Translate(ev *evdev.InputEvent) (key.Event, Transition, bool) {
	if ev.Type != evdev.EV_KEY {
		return key.Event{}, 0, false
	}
	var tr Transition
	switch ev.Value {
	case 0:
		tr = Release
	case 1:
		tr = Press
	case 2:
		tr = Repeat
	default:
		return key.Event{}, 0, false
	}

	codeName := ev.CodeName()
	if !strings.HasPrefix(codeName, "KEY_") {
		return key.Event{}, 0, false
	}
	e := KeyEvent(codeName)
	e.Original = *ev
	e.Timestamp = time.Unix(int64(ev.Time.Sec), int64(ev.Time.Usec)*int64(time.Microsecond))
	return e, tr, true
}

// KeyEvent builds the key event for an evdev code name such as
// "KEY_LEFTCTRL". Side-specific keys get the generic key as their identifier
// and the side as an alias, so "ctrl" and "ctrlleft" both match.
func KeyEvent(codeName string) key.Event {
	raw := strings.ToLower(strings.TrimPrefix(codeName, "KEY_"))

	name, side := raw, ""
	for _, s := range []string{"left", "right"} {
		if rest, ok := strings.CutPrefix(raw, s); ok && sided[rest] {
			name, side = rest, s
			break
		}
	}
	if n, ok := codeNames[name]; ok {
		name = n
	}
	if rest, ok := strings.CutPrefix(name, "kp"); ok && rest != "" {
		return key.CanonicalEvent("numpad"+rest, raw)
	}

	var aliases []string
	if side != "" {
		aliases = append(aliases, key.Canonical(name)+side)
	}
	if raw != name {
		aliases = append(aliases, raw)
	}
	return key.CanonicalEvent(name, aliases...)
}

// sided lists keys evdev reports with a LEFT or RIGHT prefix.
var sided = map[string]bool{
	"ctrl":  true,
	"shift": true,
	"alt":   true,
	"meta":  true,
}

// codeNames maps lowercased evdev names to key identifiers where they
// differ.
var codeNames = map[string]string{
	"esc":        "escape",
	"sysrq":      "printscreen",
	"compose":    "contextmenu",
	"minus":      "-",
	"equal":      "=",
	"leftbrace":  "[",
	"rightbrace": "]",
	"semicolon":  ";",
	"apostrophe": "'",
	"grave":      "`",
	"backslash":  "\\",
	"comma":      ",",
	"dot":        ".",
	"slash":      "/",
}
