package key

import "strings"

// Modifier represents keyboard modifier keys as reported by backends that
// fold modifiers into the key event instead of reporting them separately.
type Modifier uint8

const (
	// ModNone indicates no modifiers.
	ModNone Modifier = 0

	// ModShift indicates the Shift key.
	ModShift Modifier = 1 << iota

	// ModCtrl indicates the Control key.
	ModCtrl

	// ModAlt indicates the Alt key (Option on macOS).
	ModAlt

	// ModMeta indicates the Meta key (Cmd on macOS, Win on Windows).
	ModMeta
)

// modifierOrder fixes the order in which modifiers are reported.
var modifierOrder = []struct {
	mod  Modifier
	name string
}{
	{ModCtrl, "ctrl"},
	{ModAlt, "alt"},
	{ModShift, "shift"},
	{ModMeta, "meta"},
}

// Has returns true if m contains the specified modifier.
func (m Modifier) Has(mod Modifier) bool {
	return m&mod != 0
}

// With returns a new Modifier with the specified modifier added.
func (m Modifier) With(mod Modifier) Modifier {
	return m | mod
}

// Without returns a new Modifier with the specified modifier removed.
func (m Modifier) Without(mod Modifier) Modifier {
	return m &^ mod
}

// IsEmpty returns true if no modifiers are set.
func (m Modifier) IsEmpty() bool {
	return m == ModNone
}

// Names returns the key identifiers of the set modifiers in the order
// ctrl, alt, shift, meta.
func (m Modifier) Names() []string {
	var names []string
	for _, mo := range modifierOrder {
		if m.Has(mo.mod) {
			names = append(names, mo.name)
		}
	}
	return names
}

// String returns a combo-style representation like "ctrl+alt".
func (m Modifier) String() string {
	return strings.Join(m.Names(), "+")
}

// ModifierFromName returns the Modifier for a key identifier
// (case-insensitive, any known spelling). Returns ModNone if name is not a
// modifier.
func ModifierFromName(name string) Modifier {
	canon := Canonical(name)
	for _, mo := range modifierOrder {
		if mo.name == canon {
			return mo.mod
		}
	}
	return ModNone
}
