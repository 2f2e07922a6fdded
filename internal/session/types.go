package session

import (
	"errors"
	"time"
)

// Mode selects what a session does with the audio it accumulates.
type Mode int

const (
	// ModeCapturing records every speaker to a WAV artifact on finalize.
	ModeCapturing Mode = iota + 1
	// ModeTranslating segments speech into utterances for live translation.
	ModeTranslating
)

func (m Mode) String() string {
	switch m {
	case ModeCapturing:
		return "capturing"
	case ModeTranslating:
		return "translating"
	default:
		return "unknown"
	}
}

// Session lifecycle errors. Callers branch on these rather than catching
// generic failures.
var (
	// ErrAlreadyActive is returned by Registry.Start when the scope already
	// has a session in any mode.
	ErrAlreadyActive = errors.New("session already active for scope")
	// ErrNotActive is returned when an operation requires an Active session
	// but the session has already left that state.
	ErrNotActive = errors.New("session is not active")
	// ErrFinalizing is returned when Finalize is invoked more than once.
	ErrFinalizing = errors.New("session is already finalizing")
)

// Utterance is one contiguous audio segment attributed to a single speaker,
// bounded by silence and a minimum-duration gate. It is created at flush
// time and consumed immediately by the pipeline; it is never persisted.
type Utterance struct {
	ID           string  // correlation id for tracing across pipeline stages
	Speaker      string  // durable speaker identity
	Samples      []int16 // mono 16-bit PCM @ 48 kHz
	LanguageHint string  // optional; filled by the dispatcher from preferences
	FlushedAt    time.Time
}

// DurationMs returns the utterance length in milliseconds at 48 kHz.
func (u Utterance) DurationMs() int {
	return len(u.Samples) * 1000 / SampleRate
}

// SampleRate is the PCM sample rate the transport decodes to and artifacts
// are written at.
const SampleRate = 48000
