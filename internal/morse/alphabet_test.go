package morse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlphabet_EveryEntryRoundTrips(t *testing.T) {
	for _, e := range itu {
		code, ok := Standard.Code(e.char)
		require.True(t, ok, "no code for %q", e.char)
		assert.Equal(t, e.code, code)

		r, ok := Standard.Char(code)
		require.True(t, ok, "no char for %q", code)
		assert.Equal(t, e.char, r)
	}
	assert.Equal(t, len(itu), Standard.Len())
}

func TestAlphabet_CodesAreUnique(t *testing.T) {
	seen := make(map[string]rune)
	for _, e := range itu {
		prev, dup := seen[e.code]
		assert.False(t, dup, "%q shared by %q and %q", e.code, prev, e.char)
		seen[e.code] = e.char
	}
}

func TestAlphabet_LowercaseFolds(t *testing.T) {
	code, ok := Standard.Code('q')
	require.True(t, ok)
	assert.Equal(t, "--.-", code)
	assert.True(t, Standard.Supports('z'))
	assert.False(t, Standard.Supports('!'))
	assert.False(t, Standard.Supports('é'))
}

func TestAlphabet_Decode(t *testing.T) {
	tests := []struct {
		name  string
		morse string
		want  string
	}{
		{"sos", "... --- ...", "SOS"},
		{"extra spaces", "  ....   ..  ", "HI"},
		{"digits", ".---- ..--- -----", "120"},
		{"space token", "... ..-- ...", "S S"},
		{"unknown token", "...... .-", "?A"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Standard.Decode(tt.morse))
		})
	}
}

func TestAlphabet_ToMorse(t *testing.T) {
	assert.Equal(t, "... --- ...", Standard.ToMorse("sos"))
	assert.Equal(t, ".... ..", Standard.ToMorse("H#I"))
	assert.Equal(t, ".. ..-- -- .", Standard.ToMorse("i me"))
	assert.Equal(t, "", Standard.ToMorse("!!"))
}

func TestNewAlphabet_Independent(t *testing.T) {
	a := NewAlphabet()
	assert.NotSame(t, Standard, a)
	assert.Equal(t, Standard.Len(), a.Len())
}
