package keymap

import (
	"errors"
	"fmt"
	"maps"
)

// Keymap is a named collection of bindings that is registered and replaced
// as a unit.
type Keymap struct {
	// Name is the keymap identifier.
	Name string

	// Bindings are the combo-to-action mappings.
	Bindings []Binding

	// Source indicates where this keymap was defined.
	// Examples: "default", "config", "script:init.lua"
	Source string
}

// NewKeymap creates a new keymap with the given name.
func NewKeymap(name string) *Keymap {
	return &Keymap{
		Name:     name,
		Bindings: make([]Binding, 0),
	}
}

// WithSource sets the source for this keymap.
func (k *Keymap) WithSource(source string) *Keymap {
	k.Source = source
	return k
}

// Add adds a binding to this keymap.
func (k *Keymap) Add(c, action string) *Keymap {
	k.Bindings = append(k.Bindings, NewBinding(c, action))
	return k
}

// AddBinding adds a fully configured binding to this keymap.
func (k *Keymap) AddBinding(binding Binding) *Keymap {
	k.Bindings = append(k.Bindings, binding)
	return k
}

// Validate checks that all bindings in the keymap are valid.
func (k *Keymap) Validate() error {
	if k.Name == "" {
		return errors.New("keymap has no name")
	}
	for i, b := range k.Bindings {
		if b.Action == "" {
			return fmt.Errorf("binding %d (%s): empty action", i, b.Combo)
		}
		if _, err := b.Normalized(); err != nil {
			return fmt.Errorf("binding %d: %w", i, err)
		}
	}
	return nil
}

// Clone creates a deep copy of the keymap.
func (k *Keymap) Clone() *Keymap {
	clone := &Keymap{
		Name:     k.Name,
		Source:   k.Source,
		Bindings: make([]Binding, len(k.Bindings)),
	}
	copy(clone.Bindings, k.Bindings)
	for i := range clone.Bindings {
		if clone.Bindings[i].Args != nil {
			clone.Bindings[i].Args = maps.Clone(clone.Bindings[i].Args)
		}
	}
	return clone
}
