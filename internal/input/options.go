package input

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/keystrokes/internal/input/combo"
	"github.com/dshills/keystrokes/internal/input/key"
)

// DefaultSequenceTimeout is how long a completed sequence step may take to be
// fully released before the combo progress is voided.
const DefaultSequenceTimeout = 1000 * time.Millisecond

// ActiveBinder registers fn to be called when the environment gains (or
// loses) input focus. It returns a function that removes the registration;
// a nil return is allowed when there is nothing to undo.
type ActiveBinder func(fn func()) (unbind func())

// KeyBinder registers fn to be called with every key event of one kind
// (press or release) reported by the environment. It returns a function that
// removes the registration; a nil return is allowed.
type KeyBinder func(fn func(key.Event)) (unbind func())

// Options configures a Keystrokes dispatcher.
type Options struct {
	// OnActive binds the focus-gained source. Nil means the environment has
	// no focus notion and the dispatcher stays active.
	OnActive ActiveBinder

	// OnInactive binds the focus-lost source.
	OnInactive ActiveBinder

	// OnKeyPressed binds the key-press source.
	OnKeyPressed KeyBinder

	// OnKeyReleased binds the key-release source.
	OnKeyReleased KeyBinder

	// MapComboEvent computes combo.Event.Props for combos bound after it is
	// set.
	MapComboEvent combo.Mapper

	// SelfReleasingKeys are keys that are forced up whenever any other key is
	// released, for environments that drop their release events.
	SelfReleasingKeys []string

	// KeyRemap substitutes identifiers after lowercasing, for the primary key
	// and every alias.
	KeyRemap map[string]string

	// SequenceTimeout bounds how long a completed sequence step may take to
	// be released. Default: 1000ms
	SequenceTimeout time.Duration

	// Scheduler defers combo evaluation. Default: ImmediateScheduler.
	Scheduler Scheduler

	// Logger receives handler panics and binder lifecycle messages.
	Logger zerolog.Logger

	// Metrics collects dispatcher counters. A fresh Metrics is created when
	// nil.
	Metrics *Metrics

	// Now is the clock used for the sequence timeout. Default: time.Now
	Now func() time.Time
}

// DefaultOptions returns options with sensible defaults and no environment
// bound.
func DefaultOptions() Options {
	return Options{
		SequenceTimeout: DefaultSequenceTimeout,
		Scheduler:       ImmediateScheduler{},
		Logger:          zerolog.Nop(),
		Now:             time.Now,
	}
}

// withDefaults fills the zero fields of o from DefaultOptions.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.SequenceTimeout <= 0 {
		o.SequenceTimeout = def.SequenceTimeout
	}
	if o.Scheduler == nil {
		o.Scheduler = def.Scheduler
	}
	if o.Now == nil {
		o.Now = def.Now
	}
	if o.Metrics == nil {
		o.Metrics = NewMetrics()
	}
	return o
}
