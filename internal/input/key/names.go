package key

import (
	"sort"
	"strings"
)

// canonicalNames maps alternate spellings (lowercase) to the canonical key
// identifier emitted by the binders in this module.
var canonicalNames = map[string]string{
	"esc":        "escape",
	"return":     "enter",
	"cr":         "enter",
	"bs":         "backspace",
	"del":        "delete",
	"ins":        "insert",
	"pgup":       "pageup",
	"pgdn":       "pagedown",
	"arrowup":    "up",
	"arrowdown":  "down",
	"arrowleft":  "left",
	"arrowright": "right",
	" ":          "space",
	"spacebar":   "space",
	"control":    "ctrl",
	"option":     "alt",
	"opt":        "alt",
	"altgraph":   "alt",
	"cmd":        "meta",
	"command":    "meta",
	"win":        "meta",
	"super":      "meta",
	"os":         "meta",
	"print":      "printscreen",
	"scroll":     "scrolllock",
	"caps":       "capslock",
}

// spellings is the inverse of canonicalNames, built once.
var spellings = func() map[string][]string {
	out := make(map[string][]string)
	for alt, canon := range canonicalNames {
		out[canon] = append(out[canon], alt)
	}
	for canon := range out {
		sort.Strings(out[canon])
	}
	return out
}()

// Canonical returns the canonical identifier for name (case-insensitive).
// Unknown names are returned lowercased.
func Canonical(name string) string {
	name = strings.ToLower(name)
	if canon, ok := canonicalNames[name]; ok {
		return canon
	}
	return name
}

// Spellings returns the alternate spellings known for a canonical
// identifier, sorted. The canonical name itself is not included.
func Spellings(canonical string) []string {
	s := spellings[strings.ToLower(canonical)]
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// CanonicalEvent builds an event for name using its canonical identifier
// as the key and every known spelling as an alias, so combos written with
// any spelling match.
func CanonicalEvent(name string, aliases ...string) Event {
	canon := Canonical(name)
	return NewEvent(canon).WithAliases(Spellings(canon)...).WithAliases(aliases...)
}
