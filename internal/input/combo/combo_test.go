package combo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		raw  string
		want Combo
	}{
		{"a", Combo{{{"a"}}}},
		{"A+B", Combo{{{"a", "b"}}}},
		{"a>b", Combo{{{"a"}, {"b"}}}},
		{"a,b>c+d", Combo{{{"a"}}, {{"b"}, {"c", "d"}}}},
		{" ctrl + shift > p ", Combo{{{"ctrl", "shift"}, {"p"}}}},
		{"a+\\+", Combo{{{"a", "+"}}}},
		{"\\,,\\>", Combo{{{","}}, {{">"}}}},
		{"ctrl+\\\\", Combo{{{"ctrl", "\\"}}}},
		{"\\ +", Combo{{{"+"}}}},
		{"Enter", Combo{{{"enter"}}}},
		{"f1>f2,f3", Combo{{{"f1"}, {"f2"}}, {{"f3"}}}},
	}

	for _, tt := range tests {
		got, err := Parse(tt.raw)
		require.NoError(t, err, "Parse(%q)", tt.raw)
		assert.Equal(t, tt.want, got, "Parse(%q)", tt.raw)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr error
		wantPos int
		wantOp  byte
	}{
		{"", ErrEmptyCombo, 0, 0},
		{"   ", ErrEmptyCombo, 0, 0},
		{"a++b", ErrConsecutiveOperators, 2, '+'},
		{"a+>b", ErrConsecutiveOperators, 2, '>'},
		{"a, ,b", ErrConsecutiveOperators, 3, ','},
		{"+a", ErrLeadingOperator, 0, '+'},
		{"a>", ErrTrailingOperator, 1, '>'},
		{"a\\", ErrDanglingEscape, 1, 0},
	}

	for _, tt := range tests {
		_, err := Parse(tt.raw)
		require.Error(t, err, "Parse(%q)", tt.raw)
		assert.True(t, errors.Is(err, tt.wantErr), "Parse(%q) error = %v, want %v", tt.raw, err, tt.wantErr)

		var perr *ParseError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, tt.wantPos, perr.Pos, "Parse(%q) position", tt.raw)
		assert.Equal(t, tt.wantOp, perr.Op, "Parse(%q) operator", tt.raw)
		assert.Equal(t, tt.raw, perr.Input)
	}
}

func TestParseErrorMessageNamesOperator(t *testing.T) {
	_, err := Parse("a+,b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `','`)
	assert.Contains(t, err.Error(), "position 2")
}

func TestParseReturnsCopy(t *testing.T) {
	c, err := Parse("a+b")
	require.NoError(t, err)
	c[0][0][0] = "z"

	again, err := Parse("a+b")
	require.NoError(t, err)
	assert.Equal(t, "a", again[0][0][0])
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"a", "a"},
		{" A + b ", "a+b"},
		{"Ctrl+K , Ctrl+S", "ctrl+k,ctrl+s"},
		{"a > b", "a>b"},
		{"a+\\+", "a+\\+"},
		{"a + \\ +", "a+\\+"},
		{"\\,", "\\,"},
	}

	for _, tt := range tests {
		got, err := Normalize(tt.raw)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "Normalize(%q)", tt.raw)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"a", "a+b", "a>b,c+d,e,f>g", "ctrl + \\+", "\\>>\\,", "Shift+A,B",
		"x\\+y", "ctrl+\\\\",
	}
	for _, raw := range inputs {
		once, err := Normalize(raw)
		require.NoError(t, err)

		c, err := Parse(raw)
		require.NoError(t, err)
		twice, err := Normalize(Stringify(c))
		require.NoError(t, err)

		assert.Equal(t, once, twice, "normalize(stringify(parse(%q)))", raw)
	}
}

func TestStringifyEscapesOperators(t *testing.T) {
	for _, op := range []string{"+", ">", ","} {
		s := Stringify(Combo{{{op}}})
		assert.Equal(t, "\\"+op, s)

		c, err := Parse(s)
		require.NoError(t, err)
		assert.Equal(t, Combo{{{op}}}, c)
	}
}

func TestMustHelpers(t *testing.T) {
	assert.Equal(t, "a+b", MustNormalize("A + B"))
	assert.Equal(t, Combo{{{"a"}}}, MustParse("a"))
	assert.Panics(t, func() { MustParse("a++") })
	assert.Panics(t, func() { MustNormalize("") })
}

func TestComboHelpers(t *testing.T) {
	c := MustParse("a>b+c,d")
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"a", "b", "c"}, c[0].Keys())
	assert.Equal(t, "a>b+c,d", c.String())
}
