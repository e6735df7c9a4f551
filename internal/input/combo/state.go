package combo

import (
	"slices"
	"time"

	"github.com/dshills/keystrokes/internal/input/handler"
	"github.com/dshills/keystrokes/internal/input/key"
)

// Event is the payload passed to combo handlers.
type Event struct {
	// Combo is the normalized combo string.
	Combo string

	// KeyEvents holds the key events observed across all completed
	// sequences, in the order the keys became active.
	KeyEvents []key.Event

	// FinalKeyEvent is the key event that triggered this callback.
	FinalKeyEvent key.Event

	// Props is the result of the state's Mapper, if one is set.
	Props any
}

// Mapper derives extra payload properties from the presses of each completed
// sequence and the press that triggered the callback.
type Mapper func(presses [][]*key.Press, final *key.Press) any

// Handler is a handler for combo events.
type Handler = handler.Handler[Event]

// Option configures a State.
type Option func(*State)

// WithMapper sets the payload mapper.
func WithMapper(m Mapper) Option {
	return func(s *State) {
		s.mapper = m
	}
}

// WithClock sets the time source used for the sequence timeout.
func WithClock(now func() time.Time) Option {
	return func(s *State) {
		if now != nil {
			s.now = now
		}
	}
}

// State tracks how far the active keys have progressed through one combo.
//
// State is not safe for concurrent use; the dispatcher owning it serializes
// all calls.
type State struct {
	normalized string
	combo      Combo
	handler    *handler.State[Event]
	mapper     Mapper
	now        func() time.Time

	// movingToNextAt is set when a non-final sequence is complete and the
	// matcher waits for its keys to be released.
	movingToNextAt  time.Time
	sequenceIndex   int
	unitIndex       int
	lastActiveCount int

	// stepPresses holds the presses that completed each sequence so far.
	stepPresses [][]*key.Press

	// finalKeys is non-nil while the combo is pressed and holds the keys of
	// the final sequence; releasing any of them releases the combo.
	finalKeys    []string
	firedPresses [][]*key.Press
}

// NewState parses raw and creates its match state. A nil h creates a watch
// state that never fires and is only queried.
func NewState(raw string, h Handler, opts ...Option) (*State, error) {
	c, normalized, err := parsed(raw)
	if err != nil {
		return nil, err
	}
	s := &State{
		normalized: normalized,
		combo:      c,
		handler:    handler.NewState(h),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Combo returns the normalized combo string.
func (s *State) Combo() string {
	return s.normalized
}

// IsPressed reports whether the final sequence is currently satisfied.
func (s *State) IsPressed() bool {
	return s.finalKeys != nil
}

// SequenceIndex returns the number of completed sequences, or the combo
// length while the combo is pressed.
func (s *State) SequenceIndex() int {
	if s.IsPressed() {
		return len(s.combo)
	}
	return s.sequenceIndex
}

// IsEmpty reports whether the state has no callbacks.
func (s *State) IsEmpty() bool {
	return s.handler.IsEmpty()
}

// IsOwnHandler reports whether h is the handler this state was created with.
func (s *State) IsOwnHandler(h Handler) bool {
	return s.handler.IsOwnHandler(h)
}

// UpdateState recomputes progress against the active keys, given in the
// order they became active.
func (s *State) UpdateState(active []*key.Press, timeout time.Duration) {
	active = logicalKeys(active)
	count := len(active)
	released := count < s.lastActiveCount
	s.lastActiveCount = count

	now := s.now()
	pending := !s.movingToNextAt.IsZero()
	expired := pending && now.Sub(s.movingToNextAt) > timeout

	// A released key either voids the progress or, once every key of a
	// completed sequence is up, moves on to the next sequence.
	if released {
		if !pending || expired {
			s.reset()
			return
		}
		if count != 0 {
			return
		}
		s.movingToNextAt = time.Time{}
		s.sequenceIndex++
		s.unitIndex = 0
		return
	}

	if pending {
		if !expired {
			return
		}
		s.reset()
	}

	seq := s.combo[s.sequenceIndex]
	idx := 0

	for _, unit := range seq[:s.unitIndex] {
		if !unitHeld(active, idx, unit) {
			s.reset()
			return
		}
		idx += len(unit)
	}

	for _, unit := range seq[s.unitIndex:] {
		if !unitHeld(active, idx, unit) {
			// Incomplete, the remaining keys may still come. Watch states
			// never see a release callback so they drop the pressed marker
			// here.
			if s.handler.IsEmpty() {
				s.finalKeys = nil
			}
			return
		}
		s.unitIndex++
		idx += len(unit)
	}

	if idx < count {
		s.reset()
		return
	}

	for len(s.stepPresses) < s.sequenceIndex {
		s.stepPresses = append(s.stepPresses, nil)
	}
	s.stepPresses = append(s.stepPresses[:s.sequenceIndex], slices.Clone(active))

	if s.sequenceIndex < len(s.combo)-1 {
		s.movingToNextAt = now
		return
	}

	s.finalKeys = seq.Keys()
	s.firedPresses = slices.Clone(s.stepPresses)
}

// ExecutePressed forwards a press to the handler if the event's key belongs
// to the satisfied final sequence.
func (s *State) ExecutePressed(e key.Event) error {
	if !s.Triggers(e) {
		return nil
	}
	return s.handler.ExecutePressed(s.wrap(e))
}

// ExecuteReleased forwards a release to the handler if the event's key
// belongs to the satisfied final sequence, and clears the pressed marker.
func (s *State) ExecuteReleased(e key.Event) error {
	if !s.Triggers(e) {
		return nil
	}
	err := s.handler.ExecuteReleased(s.wrap(e))
	s.finalKeys = nil
	return err
}

// Triggers reports whether e names a key of the satisfied final sequence,
// meaning ExecutePressed or ExecuteReleased would reach the handler.
func (s *State) Triggers(e key.Event) bool {
	for _, k := range s.finalKeys {
		if e.Matches(k) {
			return true
		}
	}
	return false
}

func (s *State) reset() {
	s.movingToNextAt = time.Time{}
	s.sequenceIndex = 0
	s.unitIndex = 0
	s.stepPresses = s.stepPresses[:0]
	if s.handler.IsEmpty() {
		s.finalKeys = nil
	}
}

func (s *State) wrap(e key.Event) Event {
	var events []key.Event
	var final *key.Press
	for _, step := range s.firedPresses {
		for _, p := range step {
			events = append(events, p.Event)
			if p.Matches(e.Key) {
				final = p
			}
		}
	}
	if final == nil {
		final = key.NewPress(e)
	}

	ev := Event{
		Combo:         s.normalized,
		KeyEvents:     events,
		FinalKeyEvent: e,
	}
	if s.mapper != nil {
		ev.Props = s.mapper(s.firedPresses, final)
	}
	return ev
}

// unitHeld reports whether every key of unit is active within the window of
// len(unit) entries starting at idx. Order inside the window is free.
func unitHeld(active []*key.Press, idx int, unit Unit) bool {
	end := min(idx+len(unit), len(active))
	if idx >= end {
		return false
	}
	window := active[idx:end]
	for _, k := range unit {
		if !slices.ContainsFunc(window, func(p *key.Press) bool { return p.Matches(k) }) {
			return false
		}
	}
	return true
}

// logicalKeys drops entries that share an identifier with an earlier entry,
// so a key and its alias held at once count as one key.
func logicalKeys(active []*key.Press) []*key.Press {
	out := make([]*key.Press, 0, len(active))
	for _, p := range active {
		if !slices.ContainsFunc(out, p.SameKey) {
			out = append(out, p)
		}
	}
	return out
}
