package input

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/keystrokes/internal/input/combo"
	"github.com/dshills/keystrokes/internal/input/handler"
	"github.com/dshills/keystrokes/internal/input/key"
)

// KeyHandler handles press, repeat and release events of a single key.
type KeyHandler = handler.Handler[key.Event]

// ComboHandler handles the pressed and released transitions of a combo.
type ComboHandler = combo.Handler

type queuedEvent struct {
	event key.Event
	phase Phase
}

// Keystrokes is the key event dispatcher. It owns the active key set, the
// per-key handlers and the combo state machines.
//
// A Keystrokes is not safe for concurrent use. All calls, including the
// events delivered by the environment binders, must happen on the goroutine
// that owns it; Loop provides such a goroutine.
type Keystrokes struct {
	sequenceTimeout time.Duration
	scheduler       Scheduler
	logger          zerolog.Logger
	metrics         *Metrics
	hooks           *HookManager
	now             func() time.Time

	// Environment
	active        bool
	unbind        func()
	mapper        combo.Mapper
	selfReleasing []string
	remap         map[string]string

	// Registries
	keyHandlers map[string][]*handler.State[key.Event]
	comboStates map[string][]*combo.State
	comboList   []*combo.State
	watched     map[string]*combo.State

	// Active keys in the order they were pressed.
	pressed      []*key.Press
	pressedByKey map[string]*key.Press

	// Events awaiting combo evaluation.
	queue        []queuedEvent
	flushPending bool
}

// New creates a dispatcher and binds the environment described by opts.
func New(opts Options) *Keystrokes {
	opts = opts.withDefaults()
	k := &Keystrokes{
		sequenceTimeout: opts.SequenceTimeout,
		scheduler:       opts.Scheduler,
		logger:          opts.Logger,
		metrics:         opts.Metrics,
		hooks:           NewHookManager(),
		now:             opts.Now,
		active:          true,
		keyHandlers:     make(map[string][]*handler.State[key.Event]),
		comboStates:     make(map[string][]*combo.State),
		watched:         make(map[string]*combo.State),
		pressedByKey:    make(map[string]*key.Press),
	}
	k.BindEnvironment(opts)
	return k
}

// SequenceTimeout returns the sequence timeout.
func (k *Keystrokes) SequenceTimeout() time.Duration {
	return k.sequenceTimeout
}

// SetSequenceTimeout changes the sequence timeout. Non-positive values
// restore the default.
func (k *Keystrokes) SetSequenceTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultSequenceTimeout
	}
	k.sequenceTimeout = d
}

// Hooks returns the hook manager.
func (k *Keystrokes) Hooks() *HookManager {
	return k.hooks
}

// Metrics returns the metrics tracker.
func (k *Keystrokes) Metrics() *Metrics {
	return k.metrics
}

// IsActive reports whether key presses are currently accepted.
func (k *Keystrokes) IsActive() bool {
	return k.active
}

// PressedKeys returns the active keys in the order they were pressed.
func (k *Keystrokes) PressedKeys() []string {
	keys := make([]string, len(k.pressed))
	for i, p := range k.pressed {
		keys[i] = p.Key
	}
	return keys
}

// BindKey registers h for the key identifier name (case-insensitive).
func (k *Keystrokes) BindKey(name string, h KeyHandler) {
	name = strings.ToLower(name)
	k.keyHandlers[name] = append(k.keyHandlers[name], handler.NewState(h))
}

// BindKeys registers h for every name.
func (k *Keystrokes) BindKeys(names []string, h KeyHandler) {
	for _, name := range names {
		k.BindKey(name, h)
	}
}

// UnbindKey removes h from name. A nil h removes every handler of name.
// Unbinding a handler that was never bound does nothing.
func (k *Keystrokes) UnbindKey(name string, h KeyHandler) {
	name = strings.ToLower(name)
	states, ok := k.keyHandlers[name]
	if !ok {
		return
	}
	if h != nil {
		states = slices.DeleteFunc(states, func(s *handler.State[key.Event]) bool {
			return s.IsOwnHandler(h)
		})
	} else {
		states = nil
	}
	if len(states) == 0 {
		delete(k.keyHandlers, name)
		return
	}
	k.keyHandlers[name] = states
}

// UnbindKeys removes h from every name.
func (k *Keystrokes) UnbindKeys(names []string, h KeyHandler) {
	for _, name := range names {
		k.UnbindKey(name, h)
	}
}

// BindKeyCombo registers h for the combo raw. It returns a *combo.ParseError
// if raw is malformed.
func (k *Keystrokes) BindKeyCombo(raw string, h ComboHandler) error {
	s, err := combo.NewState(raw, h, combo.WithMapper(k.mapper), combo.WithClock(k.now))
	if err != nil {
		return err
	}
	k.comboStates[s.Combo()] = append(k.comboStates[s.Combo()], s)
	k.comboList = append(k.comboList, s)
	return nil
}

// BindKeyCombos registers h for every combo. Nothing is bound if any combo
// is malformed.
func (k *Keystrokes) BindKeyCombos(raws []string, h ComboHandler) error {
	for _, raw := range raws {
		if _, err := combo.Normalize(raw); err != nil {
			return err
		}
	}
	for _, raw := range raws {
		if err := k.BindKeyCombo(raw, h); err != nil {
			return err
		}
	}
	return nil
}

// UnbindKeyCombo removes h from the combo raw. A nil h removes every handler
// of the combo. It returns an error only if raw is malformed.
func (k *Keystrokes) UnbindKeyCombo(raw string, h ComboHandler) error {
	normalized, err := combo.Normalize(raw)
	if err != nil {
		return err
	}
	states, ok := k.comboStates[normalized]
	if !ok {
		return nil
	}

	var removed []*combo.State
	kept := slices.DeleteFunc(states, func(s *combo.State) bool {
		if h == nil || s.IsOwnHandler(h) {
			removed = append(removed, s)
			return true
		}
		return false
	})
	if len(kept) == 0 {
		delete(k.comboStates, normalized)
	} else {
		k.comboStates[normalized] = kept
	}
	k.comboList = slices.DeleteFunc(k.comboList, func(s *combo.State) bool {
		return slices.Contains(removed, s)
	})
	return nil
}

// UnbindKeyCombos removes h from every combo.
func (k *Keystrokes) UnbindKeyCombos(raws []string, h ComboHandler) error {
	var errs []error
	for _, raw := range raws {
		errs = append(errs, k.UnbindKeyCombo(raw, h))
	}
	return errors.Join(errs...)
}

// CheckKey reports whether name is held, either as a key or as an alias of
// a held key.
func (k *Keystrokes) CheckKey(name string) bool {
	name = strings.ToLower(name)
	return slices.ContainsFunc(k.pressed, func(p *key.Press) bool {
		return p.Matches(name)
	})
}

// CheckKeyCombo reports whether the combo raw is currently satisfied.
func (k *Keystrokes) CheckKeyCombo(raw string) (bool, error) {
	s, err := k.watch(raw)
	if err != nil {
		return false, err
	}
	return s.IsPressed(), nil
}

// CheckKeyComboSequenceIndex returns how many sequences of the combo raw
// are complete; it equals the number of sequences while the combo is
// satisfied.
func (k *Keystrokes) CheckKeyComboSequenceIndex(raw string) (int, error) {
	s, err := k.watch(raw)
	if err != nil {
		return 0, err
	}
	return s.SequenceIndex(), nil
}

// watch returns the cached watch state for raw, brought up to date with the
// active keys.
func (k *Keystrokes) watch(raw string) (*combo.State, error) {
	normalized, err := combo.Normalize(raw)
	if err != nil {
		return nil, err
	}
	s, ok := k.watched[normalized]
	if !ok {
		s, err = combo.NewState(normalized, nil, combo.WithMapper(k.mapper), combo.WithClock(k.now))
		if err != nil {
			return nil, err
		}
		k.watched[normalized] = s
	}
	s.UpdateState(k.pressed, k.sequenceTimeout)
	return s, nil
}

// BindEnvironment replaces the environment: the four binders, the combo
// event mapper, the self-releasing keys and the key remap. The previous
// environment is unbound first. Sequence timeout, scheduler, logger and
// metrics are fixed at construction and ignored here.
func (k *Keystrokes) BindEnvironment(opts Options) {
	k.UnbindEnvironment()

	k.mapper = opts.MapComboEvent
	k.selfReleasing = make([]string, len(opts.SelfReleasingKeys))
	for i, name := range opts.SelfReleasingKeys {
		k.selfReleasing[i] = strings.ToLower(name)
	}
	k.remap = make(map[string]string, len(opts.KeyRemap))
	for from, to := range opts.KeyRemap {
		k.remap[strings.ToLower(from)] = strings.ToLower(to)
	}

	var unbinders []func()
	if opts.OnActive != nil {
		unbinders = append(unbinders, opts.OnActive(k.activate))
	}
	if opts.OnInactive != nil {
		unbinders = append(unbinders, opts.OnInactive(k.deactivate))
	}
	if opts.OnKeyPressed != nil {
		unbinders = append(unbinders, opts.OnKeyPressed(k.handleKeyPress))
	}
	if opts.OnKeyReleased != nil {
		unbinders = append(unbinders, opts.OnKeyReleased(k.handleKeyRelease))
	}

	k.unbind = func() {
		for _, fn := range unbinders {
			if fn != nil {
				fn()
			}
		}
	}
	k.logger.Debug().Int("binders", len(unbinders)).Msg("environment bound")
}

// UnbindEnvironment removes the current environment binders. It is safe to
// call more than once.
func (k *Keystrokes) UnbindEnvironment() {
	if k.unbind == nil {
		return
	}
	unbind := k.unbind
	k.unbind = nil
	unbind()
	k.logger.Debug().Msg("environment unbound")
}

func (k *Keystrokes) activate() {
	k.active = true
}

func (k *Keystrokes) deactivate() {
	k.active = false
}

// handleKeyPress processes a press reported by the environment. Presses are
// dropped while the dispatcher is inactive.
func (k *Keystrokes) handleKeyPress(e key.Event) {
	if !k.active {
		k.metrics.RecordIgnoredPress()
		return
	}

	e = e.Normalize(k.remap)
	if k.hooks.RunPreKeyEvent(&e, PhasePressed) {
		k.metrics.RecordHookConsumption()
		return
	}
	k.metrics.RecordKeyEvent(PhasePressed)

	k.executeKeyHandlers(e, PhasePressed)

	if p, ok := k.pressedByKey[e.Key]; ok {
		p.Event = e
	} else {
		p := key.NewPress(e)
		k.pressedByKey[e.Key] = p
		k.pressed = append(k.pressed, p)
	}

	k.enqueue(e, PhasePressed)
	k.hooks.RunPostKeyEvent(e, PhasePressed)
}

// handleKeyRelease processes a release reported by the environment.
// Releases are processed even while inactive so keys cannot stick.
func (k *Keystrokes) handleKeyRelease(e key.Event) {
	e = e.Normalize(k.remap)
	if k.hooks.RunPreKeyEvent(&e, PhaseReleased) {
		k.metrics.RecordHookConsumption()
		return
	}
	k.release(e)
	k.hooks.RunPostKeyEvent(e, PhaseReleased)
}

// release removes a normalized event's key from the active set.
func (k *Keystrokes) release(e key.Event) {
	k.metrics.RecordKeyEvent(PhaseReleased)

	k.executeKeyHandlers(e, PhaseReleased)

	if _, ok := k.pressedByKey[e.Key]; ok {
		delete(k.pressedByKey, e.Key)
		k.pressed = slices.DeleteFunc(k.pressed, func(p *key.Press) bool {
			return p.Key == e.Key
		})
	}

	k.releaseSelfReleasingKeys()
	k.enqueue(e, PhaseReleased)
}

// releaseSelfReleasingKeys forces every held self-releasing key up.
func (k *Keystrokes) releaseSelfReleasingKeys() {
	if len(k.selfReleasing) == 0 {
		return
	}
	for _, p := range slices.Clone(k.pressed) {
		if !slices.Contains(k.selfReleasing, p.Key) {
			continue
		}
		if _, held := k.pressedByKey[p.Key]; !held {
			continue
		}
		k.metrics.RecordForcedRelease()
		k.release(p.Event)
	}
}

// executeKeyHandlers runs the handlers bound to the event's key and to each
// of its aliases.
func (k *Keystrokes) executeKeyHandlers(e key.Event, phase Phase) {
	seen := make(map[string]struct{}, len(e.Aliases)+1)
	for _, id := range e.Identifiers() {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		for _, s := range slices.Clone(k.keyHandlers[id]) {
			var err error
			if phase == PhasePressed {
				err = s.ExecutePressed(e)
			} else {
				err = s.ExecuteReleased(e)
			}
			k.report(err, "key", id)
		}
	}
}

// enqueue queues e for the next combo evaluation and schedules one if none
// is pending.
func (k *Keystrokes) enqueue(e key.Event, phase Phase) {
	k.queue = append(k.queue, queuedEvent{event: e, phase: phase})
	if k.flushPending {
		return
	}
	k.flushPending = true
	k.scheduler.Defer(k.flush)
}

// flush evaluates every combo once against the current active keys, then
// delivers the queued events to the combos they trigger, in arrival order.
func (k *Keystrokes) flush() {
	timer := k.metrics.StartEvaluationTimer()
	defer timer.Stop()

	k.flushPending = false
	queue := k.queue
	k.queue = nil

	k.updateComboStates()

	states := slices.Clone(k.comboList)
	for _, q := range queue {
		for _, s := range states {
			// A callback earlier in this pass may have unbound s.
			if !slices.Contains(k.comboList, s) || !s.Triggers(q.event) {
				continue
			}
			k.metrics.RecordComboDispatch()

			var err error
			if q.phase == PhasePressed {
				err = s.ExecutePressed(q.event)
			} else {
				err = s.ExecuteReleased(q.event)
			}
			k.report(err, "combo", s.Combo())
		}
	}
}

func (k *Keystrokes) updateComboStates() {
	for _, s := range k.comboList {
		s.UpdateState(k.pressed, k.sequenceTimeout)
	}
	for _, s := range k.watched {
		s.UpdateState(k.pressed, k.sequenceTimeout)
	}
}

// report logs a callback failure and counts the recovered panics in it.
func (k *Keystrokes) report(err error, field, value string) {
	if err == nil {
		return
	}
	k.metrics.RecordHandlerPanics(countPanics(err))
	k.logger.Error().Err(err).Str(field, value).Msg("handler failed")
}

func countPanics(err error) int {
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		n := 0
		for _, e := range multi.Unwrap() {
			n += countPanics(e)
		}
		return n
	}
	var pe *handler.PanicError
	if errors.As(err, &pe) {
		return 1
	}
	return 0
}
