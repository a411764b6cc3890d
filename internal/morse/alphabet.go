// Package morse implements the Morse alphabet, symbol classification, the
// decode state machine and the transmit schedule encoder.
package morse

import (
	"strings"
	"unicode"
)

// Unknown is substituted for any dot-dash token that has no alphabet entry.
const Unknown = '?'

// WordSpaceCode is the token that carries a space as its own letter.
// A sender that only knows letter gaps can still separate words this way.
const WordSpaceCode = "..--"

// Alphabet is an immutable bidirectional mapping between characters and
// their dot-dash codes. Build one with NewAlphabet; the zero value is empty.
type Alphabet struct {
	encode map[rune]string
	decode map[string]rune
}

// itu lists the supported characters in ITU order.
var itu = []struct {
	char rune
	code string
}{
	{'A', ".-"}, {'B', "-..."}, {'C', "-.-."}, {'D', "-.."}, {'E', "."},
	{'F', "..-."}, {'G', "--."}, {'H', "...."}, {'I', ".."}, {'J', ".---"},
	{'K', "-.-"}, {'L', ".-.."}, {'M', "--"}, {'N', "-."}, {'O', "---"},
	{'P', ".--."}, {'Q', "--.-"}, {'R', ".-."}, {'S', "..."}, {'T', "-"},
	{'U', "..-"}, {'V', "...-"}, {'W', ".--"}, {'X', "-..-"}, {'Y', "-.--"},
	{'Z', "--.."},
	{'0', "-----"}, {'1', ".----"}, {'2', "..---"}, {'3', "...--"}, {'4', "....-"},
	{'5', "....."}, {'6', "-...."}, {'7', "--..."}, {'8', "---.."}, {'9', "----."},
	{' ', WordSpaceCode},
}

// Standard is the process-wide alphabet shared by the decoder and the encoder.
var Standard = NewAlphabet()

// NewAlphabet builds the standard letters, digits and the space token.
func NewAlphabet() *Alphabet {
	a := &Alphabet{
		encode: make(map[rune]string, len(itu)),
		decode: make(map[string]rune, len(itu)),
	}
	for _, e := range itu {
		a.encode[e.char] = e.code
		a.decode[e.code] = e.char
	}
	return a
}

// Code returns the dot-dash code for r. Lowercase letters are folded.
func (a *Alphabet) Code(r rune) (string, bool) {
	code, ok := a.encode[unicode.ToUpper(r)]
	return code, ok
}

// Char returns the character for a single dot-dash token.
func (a *Alphabet) Char(token string) (rune, bool) {
	r, ok := a.decode[token]
	return r, ok
}

// Supports reports whether r can be transmitted.
func (a *Alphabet) Supports(r rune) bool {
	_, ok := a.Code(r)
	return ok
}

// Len returns the number of entries.
func (a *Alphabet) Len() int {
	return len(a.encode)
}

// Decode converts a space-delimited Morse string into text. Runs of spaces
// count as one delimiter and unrecognised tokens become Unknown.
func (a *Alphabet) Decode(morse string) string {
	var b strings.Builder
	for _, token := range strings.Fields(morse) {
		b.WriteRune(a.decodeToken(token))
	}
	return b.String()
}

// ToMorse converts text into a space-delimited Morse string, skipping
// characters the alphabet does not know.
func (a *Alphabet) ToMorse(text string) string {
	codes := make([]string, 0, len(text))
	for _, r := range strings.ToUpper(text) {
		if code, ok := a.encode[r]; ok {
			codes = append(codes, code)
		}
	}
	return strings.Join(codes, " ")
}

func (a *Alphabet) decodeToken(token string) rune {
	if r, ok := a.decode[token]; ok {
		return r
	}
	return Unknown
}
