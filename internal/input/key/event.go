package key

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Event represents a single key press or release.
type Event struct {
	// Key is the primary identifier of the key.
	Key string

	// Aliases are alternate identifiers that refer to the same key.
	Aliases []string

	// Original is the environment event this event was derived from, if any.
	Original any

	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// NewEvent creates a key event with the current timestamp.
func NewEvent(k string, aliases ...string) Event {
	return Event{
		Key:       k,
		Aliases:   aliases,
		Timestamp: time.Now(),
	}
}

// Normalize returns a copy with the key and aliases lowercased and then
// substituted through remap. The receiver is not modified.
func (e Event) Normalize(remap map[string]string) Event {
	out := e.Clone()
	out.Key = remapName(strings.ToLower(out.Key), remap)
	for i, a := range out.Aliases {
		out.Aliases[i] = remapName(strings.ToLower(a), remap)
	}
	return out
}

func remapName(name string, remap map[string]string) string {
	if to, ok := remap[name]; ok && to != "" {
		return to
	}
	return name
}

// Identifiers returns the primary key followed by its aliases.
func (e Event) Identifiers() []string {
	ids := make([]string, 0, len(e.Aliases)+1)
	ids = append(ids, e.Key)
	return append(ids, e.Aliases...)
}

// Matches reports whether id names this event's key or one of its aliases.
func (e Event) Matches(id string) bool {
	return e.Key == id || slices.Contains(e.Aliases, id)
}

// Clone returns a copy of the event that shares no slices with e.
func (e Event) Clone() Event {
	clone := e
	if e.Aliases != nil {
		clone.Aliases = slices.Clone(e.Aliases)
	}
	return clone
}

// WithAliases returns a copy with the given aliases appended, skipping any
// identifier the event already carries.
func (e Event) WithAliases(aliases ...string) Event {
	clone := e.Clone()
	for _, a := range aliases {
		if a == "" || clone.Matches(a) {
			continue
		}
		clone.Aliases = append(clone.Aliases, a)
	}
	return clone
}

// String returns the key, followed by its aliases in parentheses.
// Examples: "a", "escape (esc)"
func (e Event) String() string {
	if len(e.Aliases) == 0 {
		return e.Key
	}
	return e.Key + " (" + strings.Join(e.Aliases, ", ") + ")"
}

// GoString implements fmt.GoStringer for debugging.
func (e Event) GoString() string {
	return fmt.Sprintf("Event{Key: %q, Aliases: %q}", e.Key, e.Aliases)
}
