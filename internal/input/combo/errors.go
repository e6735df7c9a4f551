package combo

import (
	"errors"
	"fmt"
)

// Parse errors
var (
	ErrEmptyCombo           = errors.New("empty key combo")
	ErrConsecutiveOperators = errors.New("two operators in a row")
	ErrLeadingOperator      = errors.New("operator before first key")
	ErrTrailingOperator     = errors.New("operator after last key")
	ErrDanglingEscape       = errors.New("escape at end of key combo")
)

// ParseError describes a malformed combo string.
type ParseError struct {
	// Input is the raw combo string.
	Input string

	// Pos is the byte offset of the offending character.
	Pos int

	// Op is the offending operator, or 0 when not applicable.
	Op byte

	// Err is one of the sentinel errors above.
	Err error
}

func (e *ParseError) Error() string {
	if e.Op != 0 {
		return fmt.Sprintf("invalid key combo %q: %v: %q at position %d", e.Input, e.Err, e.Op, e.Pos)
	}
	return fmt.Sprintf("invalid key combo %q: %v at position %d", e.Input, e.Err, e.Pos)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
