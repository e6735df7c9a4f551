// Package key provides the key event types shared by the dispatcher, the
// combo matcher and the environment binders.
//
// Key identifiers are opaque, case-insensitive strings such as "a", "enter"
// or "ctrl". An Event may carry aliases: alternate identifiers for the same
// physical key (for example a layout-independent code name next to the
// logical key name). Matching treats an alias exactly like the primary
// identifier.
//
//   - Event: a single press or release reported by the environment
//   - Press: an entry of the active key set (the most recent event of a held key)
//   - Modifier: modifier bit set reported by terminal backends
package key
