package combo

import (
	"strings"
	"sync"
	"unicode"
)

// Operators
const (
	OpChord    = '+'
	OpUnit     = '>'
	OpSequence = ','
	Escape     = '\\'
)

// Unit is a set of keys that must be held together.
type Unit []string

// Sequence is one ","-delimited step of a combo: units that must become
// active in order while the earlier ones stay held.
type Sequence []Unit

// Combo is a parsed combo: sequences that must be completed and released
// one after another. A parsed Combo always has at least one sequence, each
// sequence at least one unit and each unit at least one key.
type Combo []Sequence

// Len returns the number of sequences.
func (c Combo) Len() int {
	return len(c)
}

// Keys returns every key of the sequence, unit by unit.
func (s Sequence) Keys() []string {
	var keys []string
	for _, u := range s {
		keys = append(keys, u...)
	}
	return keys
}

// Clone returns a deep copy of the combo.
func (c Combo) Clone() Combo {
	out := make(Combo, len(c))
	for i, seq := range c {
		out[i] = make(Sequence, len(seq))
		for j, unit := range seq {
			out[i][j] = append(Unit(nil), unit...)
		}
	}
	return out
}

// String returns the normalized form of the combo.
func (c Combo) String() string {
	return Stringify(c)
}

type cacheEntry struct {
	combo      Combo
	normalized string
	err        error
}

// cache maps raw combo strings to their parse results. Entries are written
// once and never removed.
var cache sync.Map

func lookup(raw string) *cacheEntry {
	if v, ok := cache.Load(raw); ok {
		return v.(*cacheEntry)
	}
	entry := &cacheEntry{}
	entry.combo, entry.err = parse(raw)
	if entry.err == nil {
		entry.normalized = Stringify(entry.combo)
	}
	v, _ := cache.LoadOrStore(raw, entry)
	return v.(*cacheEntry)
}

// Parse parses a combo string. The result is a fresh copy the caller may
// modify.
func Parse(raw string) (Combo, error) {
	entry := lookup(raw)
	if entry.err != nil {
		return nil, entry.err
	}
	return entry.combo.Clone(), nil
}

// parsed returns the cached combo without copying. Callers must not modify it.
func parsed(raw string) (Combo, string, error) {
	entry := lookup(raw)
	return entry.combo, entry.normalized, entry.err
}

// MustParse parses a combo string and panics on error.
// Use only for known-valid combos in initialization code.
func MustParse(raw string) Combo {
	c, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return c
}

// Normalize returns the canonical form of a combo string. Strings that parse
// to the same combo normalize to the same string.
func Normalize(raw string) (string, error) {
	entry := lookup(raw)
	return entry.normalized, entry.err
}

// MustNormalize normalizes a combo string and panics on error.
func MustNormalize(raw string) string {
	s, err := Normalize(raw)
	if err != nil {
		panic(err)
	}
	return s
}

// Stringify joins keys with "+", units with ">" and sequences with ",".
// Operator and escape characters inside key names are escaped.
func Stringify(c Combo) string {
	var sb strings.Builder
	for i, seq := range c {
		if i > 0 {
			sb.WriteByte(OpSequence)
		}
		for j, unit := range seq {
			if j > 0 {
				sb.WriteByte(OpUnit)
			}
			for k, key := range unit {
				if k > 0 {
					sb.WriteByte(OpChord)
				}
				writeKey(&sb, key)
			}
		}
	}
	return sb.String()
}

func writeKey(sb *strings.Builder, key string) {
	for _, r := range key {
		if isOperator(r) || r == Escape {
			sb.WriteByte(Escape)
		}
		sb.WriteRune(r)
	}
}

func isOperator(r rune) bool {
	return r == OpChord || r == OpUnit || r == OpSequence
}

// parse tokenizes raw left to right. An operator is held pending until the
// next literal character, which decides whether a new key, unit or sequence
// is opened.
func parse(raw string) (Combo, error) {
	s := strings.ToLower(raw)
	if strings.TrimSpace(s) == "" {
		return nil, &ParseError{Input: raw, Err: ErrEmptyCombo}
	}

	var (
		combo     Combo
		seq       Sequence
		unit      Unit
		key       strings.Builder
		pending   rune
		escaped   bool
		escapePos int
		started   bool
	)

	for i, r := range s {
		switch {
		case r == Escape && !escaped:
			escaped = true
			escapePos = i

		case isOperator(r) && !escaped:
			if !started {
				return nil, &ParseError{Input: raw, Pos: i, Op: byte(r), Err: ErrLeadingOperator}
			}
			if pending != 0 {
				return nil, &ParseError{Input: raw, Pos: i, Op: byte(r), Err: ErrConsecutiveOperators}
			}
			pending = r

		case unicode.IsSpace(r):
			// ignored, an open escape stays open

		default:
			if pending != 0 {
				unit = append(unit, key.String())
				key.Reset()
				switch pending {
				case OpUnit:
					seq = append(seq, unit)
					unit = nil
				case OpSequence:
					seq = append(seq, unit)
					combo = append(combo, seq)
					seq, unit = nil, nil
				}
				pending = 0
			}
			escaped = false
			started = true
			key.WriteRune(r)
		}
	}

	if escaped {
		return nil, &ParseError{Input: raw, Pos: escapePos, Err: ErrDanglingEscape}
	}
	if pending != 0 {
		return nil, &ParseError{Input: raw, Pos: strings.LastIndexByte(s, byte(pending)), Op: byte(pending), Err: ErrTrailingOperator}
	}

	unit = append(unit, key.String())
	seq = append(seq, unit)
	return append(combo, seq), nil
}
