// Package global holds a process-wide dispatcher for callers that do not
// want to pass one around.
//
// The dispatcher is created from the options given to SetOptions the first
// time it is needed. Set installs a specific dispatcher and Reset forgets
// both, which tests use to start from a clean state.
//
// The cell itself is safe for concurrent use; the dispatcher it holds is
// not, and must still be driven from a single goroutine.
package global

import (
	"sync"

	"github.com/dshills/keystrokes/internal/input"
	"github.com/dshills/keystrokes/internal/input/combo"
)

var (
	mu       sync.Mutex
	options  = input.DefaultOptions()
	instance *input.Keystrokes
)

// SetOptions sets the options used the next time a dispatcher is created.
// It does not affect a dispatcher that already exists.
func SetOptions(opts input.Options) {
	mu.Lock()
	defer mu.Unlock()
	options = opts
}

// Set installs k as the global dispatcher. A nil k creates a new dispatcher
// from the current options. The previous dispatcher's environment is
// unbound.
func Set(k *input.Keystrokes) {
	mu.Lock()
	defer mu.Unlock()
	set(k)
}

func set(k *input.Keystrokes) {
	if instance != nil && instance != k {
		instance.UnbindEnvironment()
	}
	if k == nil {
		k = input.New(options)
	}
	instance = k
}

// Get returns the global dispatcher, creating it on first use.
func Get() *input.Keystrokes {
	mu.Lock()
	defer mu.Unlock()
	if instance == nil {
		set(nil)
	}
	return instance
}

// Reset unbinds and drops the global dispatcher and restores the default
// options.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	if instance != nil {
		instance.UnbindEnvironment()
	}
	instance = nil
	options = input.DefaultOptions()
}

// BindKey binds h to name on the global dispatcher.
func BindKey(name string, h input.KeyHandler) {
	Get().BindKey(name, h)
}

// UnbindKey unbinds h (or every handler, if nil) from name.
func UnbindKey(name string, h input.KeyHandler) {
	Get().UnbindKey(name, h)
}

// BindKeyCombo binds h to the combo raw on the global dispatcher.
func BindKeyCombo(raw string, h input.ComboHandler) error {
	return Get().BindKeyCombo(raw, h)
}

// UnbindKeyCombo unbinds h (or every handler, if nil) from the combo raw.
func UnbindKeyCombo(raw string, h input.ComboHandler) error {
	return Get().UnbindKeyCombo(raw, h)
}

// CheckKey reports whether name is held.
func CheckKey(name string) bool {
	return Get().CheckKey(name)
}

// CheckKeyCombo reports whether the combo raw is satisfied.
func CheckKeyCombo(raw string) (bool, error) {
	return Get().CheckKeyCombo(raw)
}

// CheckKeyComboSequenceIndex reports how far the combo raw has progressed.
func CheckKeyComboSequenceIndex(raw string) (int, error) {
	return Get().CheckKeyComboSequenceIndex(raw)
}

// Normalize is combo.Normalize.
func Normalize(raw string) (string, error) {
	return combo.Normalize(raw)
}

// Parse is combo.Parse.
func Parse(raw string) (combo.Combo, error) {
	return combo.Parse(raw)
}

// Stringify is combo.Stringify.
func Stringify(c combo.Combo) string {
	return combo.Stringify(c)
}
