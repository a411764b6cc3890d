package morse

import (
	"errors"
	"strings"
	"time"

	"github.com/ColonelBlimp/lightmorse/internal/dsp"
)

var (
	// ErrNilAlphabet indicates an assembler needs an alphabet
	ErrNilAlphabet = errors.New("alphabet is required")
	// ErrInvalidTimeout indicates the inactivity timeout must be positive
	ErrInvalidTimeout = errors.New("inactivity timeout must be positive")
)

// State is the assembler's position in the decode state machine.
type State int

const (
	// Idle means no marks are buffered for the current word
	Idle State = iota
	// Accumulating means the current word has at least one mark
	Accumulating
)

func (s State) String() string {
	if s == Accumulating {
		return "accumulating"
	}
	return "idle"
}

// FlushReason says what triggered an output.
type FlushReason int

const (
	FlushLetter FlushReason = iota
	FlushWord
	FlushTimeout
)

func (r FlushReason) String() string {
	switch r {
	case FlushLetter:
		return "letter"
	case FlushWord:
		return "word"
	case FlushTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Event is one input to the assembler: either a classified flash or a
// synthetic clock tick used to drive the inactivity timeout.
type Event struct {
	Symbol Symbol
	Tick   bool
	At     time.Time
	// Raw is the signed duration in ms (negative for OFF)
	Raw int64
}

// SymbolEvent wraps a classified flash event.
func SymbolEvent(sym Symbol, ev dsp.FlashEvent) Event {
	return Event{Symbol: sym, At: ev.At, Raw: ev.SignedMillis()}
}

// TickEvent returns a clock tick at now.
func TickEvent(now time.Time) Event {
	return Event{Tick: true, At: now}
}

// Output is pushed to the caller on every flush.
type Output struct {
	// Morse is the buffer for the current word as of the flush
	Morse string
	// Text is the cumulative decoded text
	Text string
	// Letter is the letter decoded by this flush, 0 if none
	Letter rune
	Reason FlushReason
	At     time.Time

	// Durations is the raw timing of the letter, nil if none was decoded
	Durations DurationLog
}

// DurationLog is the raw signed timing of the in-flight letter.
type DurationLog []int64

// Assembler accumulates symbols into a Morse buffer and decodes letters as
// gaps arrive. It is a single-threaded reducer: feed every event, real or
// tick, through Apply from one goroutine.
type Assembler struct {
	alphabet *Alphabet
	timeout  time.Duration

	buffer     []byte // '.', '-' and ' ' for the current word
	tokenStart int    // start of the undecoded tail of buffer
	durations  DurationLog

	text         strings.Builder
	wordBoundary bool // a space goes in front of the next letter

	state     State
	lastEvent time.Time
}

// NewAssembler creates an assembler that flushes after timeout of inactivity.
func NewAssembler(alphabet *Alphabet, timeout time.Duration) (*Assembler, error) {
	if alphabet == nil {
		return nil, ErrNilAlphabet
	}
	if timeout <= 0 {
		return nil, ErrInvalidTimeout
	}
	return &Assembler{
		alphabet: alphabet,
		timeout:  timeout,
		buffer:   make([]byte, 0, 32),
	}, nil
}

// Apply processes one event and returns an output when it caused a flush.
func (a *Assembler) Apply(ev Event) (Output, bool) {
	if ev.Tick {
		return a.tick(ev.At)
	}

	a.lastEvent = ev.At
	if ev.Raw != 0 {
		a.durations = append(a.durations, ev.Raw)
	}

	switch ev.Symbol {
	case Dot:
		a.mark('.')
	case Dash:
		a.mark('-')
	case LetterGap:
		return a.flushLetter(ev.At, FlushLetter)
	case WordGap:
		return a.flushWord(ev.At, FlushWord)
	}
	return Output{}, false
}

func (a *Assembler) mark(c byte) {
	a.buffer = append(a.buffer, c)
	a.state = Accumulating
}

func (a *Assembler) tick(now time.Time) (Output, bool) {
	if a.state != Accumulating || now.Sub(a.lastEvent) < a.timeout {
		return Output{}, false
	}
	return a.flushWord(now, FlushTimeout)
}

// flushLetter decodes the tail token, delimits the buffer and keeps it.
func (a *Assembler) flushLetter(at time.Time, reason FlushReason) (Output, bool) {
	if a.tokenStart >= len(a.buffer) {
		return Output{}, false
	}

	token := string(a.buffer[a.tokenStart:])
	letter := a.alphabet.decodeToken(token)
	a.buffer = append(a.buffer, ' ')
	a.tokenStart = len(a.buffer)
	durations := append(DurationLog(nil), a.durations...)
	a.durations = a.durations[:0]

	if a.wordBoundary && a.text.Len() > 0 {
		a.text.WriteByte(' ')
	}
	a.wordBoundary = false
	a.text.WriteRune(letter)

	return Output{
		Morse:  a.Morse(),
		Text:   a.text.String(),
		Letter:    letter,
		Reason:    reason,
		At:        at,
		Durations: durations,
	}, true
}

// flushWord flushes any pending letter and clears. Only a real word gap marks
// a word boundary; a timeout just ends the letter, so a sender pausing inside
// a word does not split it. Flushing an idle assembler does nothing.
func (a *Assembler) flushWord(at time.Time, reason FlushReason) (Output, bool) {
	if a.state == Idle {
		return Output{}, false
	}

	out, ok := a.flushLetter(at, reason)
	if !ok {
		out = Output{Morse: a.Morse(), Text: a.text.String(), Reason: reason, At: at}
	}

	if reason == FlushWord {
		a.wordBoundary = true
	}
	a.buffer = a.buffer[:0]
	a.tokenStart = 0
	a.durations = a.durations[:0]
	a.state = Idle
	return out, true
}

// State returns the current state
func (a *Assembler) State() State {
	return a.state
}

// Morse returns the buffer for the current word without trailing delimiter
func (a *Assembler) Morse() string {
	return strings.TrimSpace(string(a.buffer))
}

// Text returns the cumulative decoded text
func (a *Assembler) Text() string {
	return a.text.String()
}

// Reset clears the buffer, the log and the decoded text.
func (a *Assembler) Reset() {
	a.buffer = a.buffer[:0]
	a.tokenStart = 0
	a.durations = a.durations[:0]
	a.text.Reset()
	a.wordBoundary = false
	a.state = Idle
	a.lastEvent = time.Time{}
}
