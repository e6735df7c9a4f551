// Package combo implements the key combo grammar and the incremental matcher
// that tracks progress through a combo as key events arrive.
//
// # Grammar
//
// A combo string is made of three operators:
//
//   - "+" joins keys that must be held together (a unit)
//   - ">" joins units that must be pressed in order while earlier units stay held (a sequence step)
//   - "," joins sequence steps that must be completed and released one after another
//
// For example "ctrl+k,ctrl+s" is two steps, each a single two-key unit, and
// "shift>a" is one step where shift must be held before a is pressed.
//
// Whitespace is ignored everywhere. A backslash makes the next character a
// literal part of the key name, so "a+\+" is the key a chorded with the plus
// key. Key names are case-insensitive.
//
// Parse and Normalize results are cached for the life of the process keyed by
// the raw input; the grammar is pure so entries are never invalidated.
//
// # Matching
//
// State holds one parsed combo and is fed snapshots of the active key set by
// the dispatcher. When the final step is satisfied the combo is pressed and
// its handler fires; releasing any key of the final step releases it.
package combo
