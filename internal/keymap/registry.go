package keymap

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dshills/keystrokes/internal/input"
	"github.com/dshills/keystrokes/internal/input/combo"
	"github.com/dshills/keystrokes/internal/input/handler"
)

// ErrKeymapNotFound is returned when unregistering an unknown keymap.
var ErrKeymapNotFound = errors.New("keymap not found")

// Binder is the part of the dispatcher the registry binds combos onto.
// *input.Keystrokes implements it.
type Binder interface {
	BindKeyCombo(raw string, h input.ComboHandler) error
	UnbindKeyCombo(raw string, h input.ComboHandler) error
}

// Registration describes one binding bound onto the dispatcher.
type Registration struct {
	// ID identifies the registration for UnregisterID.
	ID uuid.UUID

	// Keymap is the name of the keymap the binding came from.
	Keymap string

	// Combo is the normalized combo string.
	Combo string

	Binding Binding
}

// Invocation is passed to an Action when its combo is pressed or released.
type Invocation struct {
	Registration

	// Event is the combo payload from the dispatcher.
	Event combo.Event

	// Released is true for the release transition.
	Released bool
}

// Action runs a named binding.
type Action func(Invocation)

type registration struct {
	Registration
	handler *handler.Callbacks[combo.Event]
}

// Registry binds keymaps onto a dispatcher and routes their combos to named
// actions. Registration calls must come from the goroutine that owns the
// dispatcher; lookups may come from anywhere.
type Registry struct {
	mu sync.RWMutex

	binder Binder
	logger zerolog.Logger

	// actions holds the handlers by action name.
	actions map[string]Action

	// fallback runs for actions without a handler.
	fallback Action

	// regs holds every bound registration by ID.
	regs map[uuid.UUID]*registration

	// keymaps lists registration IDs per keymap, in bind order.
	keymaps map[string][]uuid.UUID

	releases bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for unknown actions.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithReleases makes actions run on the release transition too, with
// Invocation.Released set.
func WithReleases() Option {
	return func(r *Registry) {
		r.releases = true
	}
}

// WithFallback sets the action run for bindings whose action has no
// handler. Without one such invocations are logged and dropped.
func WithFallback(a Action) Option {
	return func(r *Registry) {
		r.fallback = a
	}
}

// NewRegistry creates a registry that binds onto b.
func NewRegistry(b Binder, opts ...Option) *Registry {
	r := &Registry{
		binder:  b,
		logger:  zerolog.Nop(),
		actions: make(map[string]Action),
		regs:    make(map[uuid.UUID]*registration),
		keymaps: make(map[string][]uuid.UUID),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle registers the action run for bindings naming it. A second call with
// the same name replaces the action; a nil action removes it.
func (r *Registry) Handle(name string, a Action) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a == nil {
		delete(r.actions, name)
		return
	}
	r.actions[name] = a
}

// Register binds every binding of km. A keymap with the same name is
// unbound first, so registering again replaces it. Bindings that share a
// combo run in descending priority order.
func (r *Registry) Register(km *Keymap) ([]uuid.UUID, error) {
	if km == nil {
		return nil, errors.New("cannot register nil keymap")
	}
	if err := km.Validate(); err != nil {
		return nil, fmt.Errorf("keymap %q: %w", km.Name, err)
	}

	bindings := slices.Clone(km.Bindings)
	slices.SortStableFunc(bindings, func(a, b Binding) int {
		return cmp.Compare(b.Priority, a.Priority)
	})

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.unregisterLocked(km.Name); err != nil && !errors.Is(err, ErrKeymapNotFound) {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(bindings))
	for _, b := range bindings {
		normalized, _ := b.Normalized()
		reg := &registration{
			Registration: Registration{
				ID:      uuid.New(),
				Keymap:  km.Name,
				Combo:   normalized,
				Binding: b,
			},
		}
		reg.handler = r.handlerFor(reg.Registration)

		if err := r.binder.BindKeyCombo(normalized, reg.handler); err != nil {
			r.keymaps[km.Name] = ids
			return nil, errors.Join(
				fmt.Errorf("binding %q: %w", b.Combo, err),
				r.unregisterLocked(km.Name),
			)
		}
		r.regs[reg.ID] = reg
		ids = append(ids, reg.ID)
	}
	r.keymaps[km.Name] = ids

	return slices.Clone(ids), nil
}

func (r *Registry) handlerFor(reg Registration) *handler.Callbacks[combo.Event] {
	h := &handler.Callbacks[combo.Event]{
		OnPressed: func(e combo.Event) {
			r.invoke(Invocation{Registration: reg, Event: e})
		},
	}
	if r.releases {
		h.OnReleased = func(e combo.Event) {
			r.invoke(Invocation{Registration: reg, Event: e, Released: true})
		}
	}
	return h
}

// invoke runs the action outside the lock so actions may register keymaps.
func (r *Registry) invoke(inv Invocation) {
	r.mu.RLock()
	a, ok := r.actions[inv.Binding.Action]
	r.mu.RUnlock()

	if !ok && r.fallback != nil {
		a, ok = r.fallback, true
	}
	if !ok {
		r.logger.Warn().
			Str("action", inv.Binding.Action).
			Str("combo", inv.Combo).
			Str("keymap", inv.Keymap).
			Msg("no handler for action")
		return
	}
	a(inv)
}

// Unregister unbinds every binding of the named keymap.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unregisterLocked(name)
}

// unregisterLocked unbinds a keymap. Caller must hold the write lock.
func (r *Registry) unregisterLocked(name string) error {
	ids, ok := r.keymaps[name]
	if !ok {
		return fmt.Errorf("%q: %w", name, ErrKeymapNotFound)
	}

	var errs []error
	for _, id := range ids {
		errs = append(errs, r.unbindLocked(id))
	}
	delete(r.keymaps, name)
	return errors.Join(errs...)
}

func (r *Registry) unbindLocked(id uuid.UUID) error {
	reg, ok := r.regs[id]
	if !ok {
		return nil
	}
	delete(r.regs, id)
	return r.binder.UnbindKeyCombo(reg.Combo, reg.handler)
}

// UnregisterID unbinds a single registration. It reports whether the ID was
// known.
func (r *Registry) UnregisterID(id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.regs[id]
	if !ok {
		return false, nil
	}
	r.keymaps[reg.Keymap] = slices.DeleteFunc(r.keymaps[reg.Keymap], func(other uuid.UUID) bool {
		return other == id
	})
	return true, r.unbindLocked(id)
}

// Get returns a registration by ID.
func (r *Registry) Get(id uuid.UUID) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.regs[id]
	if !ok {
		return Registration{}, false
	}
	return reg.Registration, true
}

// Lookup returns the registrations bound to a combo, in execution order.
func (r *Registry) Lookup(raw string) ([]Registration, error) {
	normalized, err := combo.Normalize(raw)
	if err != nil {
		return nil, err
	}

	var out []Registration
	for _, reg := range r.Registrations() {
		if reg.Combo == normalized {
			out = append(out, reg)
		}
	}
	return out, nil
}

// Keymaps returns the names of the registered keymaps, sorted.
func (r *Registry) Keymaps() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.keymaps))
	for name := range r.keymaps {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Registrations returns every registration, grouped by keymap name and in
// bind order within a keymap.
func (r *Registry) Registrations() []Registration {
	names := r.Keymaps()

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Registration
	for _, name := range names {
		for _, id := range r.keymaps[name] {
			if reg, ok := r.regs[id]; ok {
				out = append(out, reg.Registration)
			}
		}
	}
	return out
}

// Clear unbinds every keymap.
func (r *Registry) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name := range r.keymaps {
		errs = append(errs, r.unregisterLocked(name))
	}
	return errors.Join(errs...)
}
