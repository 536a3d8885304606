package normalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type color string

func testEnum() *Enum[color] {
	return NewEnum("color", map[string]color{
		"red":     "red",
		"Crimson": "red",
		"blue":    "blue",
	})
}

func TestEnumParse(t *testing.T) {
	e := testEnum()

	tests := []struct {
		in   string
		want color
	}{
		{"red", "red"},
		{"  RED ", "red"},
		{"crimson", "red"},
		{"Blue", "blue"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := e.Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnumParseUnknown(t *testing.T) {
	_, err := testEnum().Parse("green")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown color "green"`)
	assert.Contains(t, err.Error(), "blue, crimson, red")
}

func TestEnumLookup(t *testing.T) {
	e := testEnum()
	assert.Equal(t, color("blue"), e.Lookup("BLUE", "red"))
	assert.Equal(t, color("red"), e.Lookup("", "red"))
	assert.True(t, e.Valid("Crimson"))
	assert.False(t, e.Valid("green"))
	assert.Equal(t, []string{"blue", "crimson", "red"}, e.Keys())
}
