package keymap

import (
	"github.com/dshills/keystrokes/internal/config"
	"github.com/dshills/keystrokes/internal/input/combo"
)

// Binding represents a single combo-to-action mapping.
type Binding struct {
	// Combo is the key combo that triggers this binding.
	// Examples: "ctrl+s", "ctrl+k > ctrl+c", "g, g"
	Combo string

	// Action names the handler registered with Registry.Handle.
	Action string

	// Args are fixed arguments passed to the action.
	Args map[string]any

	// Description provides documentation for the binding.
	Description string

	// Priority orders bindings that share a combo. Higher priority runs first.
	Priority int

	// Category groups bindings for display purposes.
	Category string
}

// NewBinding creates a new binding with the given combo and action.
func NewBinding(c, action string) Binding {
	return Binding{
		Combo:  c,
		Action: action,
	}
}

// WithArgs sets arguments for this binding.
func (b Binding) WithArgs(args map[string]any) Binding {
	b.Args = args
	return b
}

// WithDescription sets the description for this binding.
func (b Binding) WithDescription(desc string) Binding {
	b.Description = desc
	return b
}

// WithPriority sets the priority for this binding.
func (b Binding) WithPriority(priority int) Binding {
	b.Priority = priority
	return b
}

// WithCategory sets the category for this binding.
func (b Binding) WithCategory(category string) Binding {
	b.Category = category
	return b
}

// Normalized returns the binding's combo in canonical form.
func (b Binding) Normalized() (string, error) {
	return combo.Normalize(b.Combo)
}

// FromConfig converts configuration file bindings into a keymap.
func FromConfig(name string, f *config.File) *Keymap {
	km := NewKeymap(name).WithSource("config")
	if f == nil {
		return km
	}
	for _, b := range f.Bindings {
		km.AddBinding(NewBinding(b.Combo, b.Action).WithDescription(b.Description))
	}
	return km
}
