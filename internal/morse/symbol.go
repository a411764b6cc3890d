package morse

import (
	"github.com/ColonelBlimp/lightmorse/internal/dsp"
)

// Symbol is the classification of one flash event.
type Symbol int

const (
	Dot Symbol = iota
	Dash
	IntraGap
	LetterGap
	WordGap
)

func (s Symbol) String() string {
	switch s {
	case Dot:
		return "dot"
	case Dash:
		return "dash"
	case IntraGap:
		return "intra-gap"
	case LetterGap:
		return "letter-gap"
	case WordGap:
		return "word-gap"
	default:
		return "unknown"
	}
}

// IsMark reports whether s is a dot or a dash.
func (s Symbol) IsMark() bool {
	return s == Dot || s == Dash
}

// Classify maps a flash event onto a symbol using fixed cutoffs.
//
// OFF gaps between LetterGapMax and WordGapMin are letter gaps: the ambiguous
// band resolves towards ending the letter.
func Classify(ev dsp.FlashEvent, th Thresholds) Symbol {
	if ev.Polarity == dsp.On {
		if ev.Duration < th.DotMax {
			return Dot
		}
		return Dash
	}

	gap := ev.Duration
	if gap < 0 {
		gap = -gap
	}
	switch {
	case gap < th.LetterGapMin:
		return IntraGap
	case gap >= th.WordGapMin:
		return WordGap
	default:
		return LetterGap
	}
}
