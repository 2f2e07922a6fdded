package session

import (
	"time"
)

// Buffer accumulates PCM samples for one speaker between flushes. Access is
// serialized by the owning Session's buffer lock; Buffer itself carries no
// lock so a flush and a concurrent append share one critical section.
type Buffer struct {
	owner        string
	samples      []int16
	lastActivity time.Time
	speaking     bool
}

func newBuffer(owner string) *Buffer {
	return &Buffer{owner: owner, lastActivity: time.Now()}
}

// append adds samples and refreshes the activity timestamp.
func (b *Buffer) append(samples []int16) {
	b.samples = append(b.samples, samples...)
	b.lastActivity = time.Now()
	b.speaking = true
}

// markSilence clears the speaking flag without touching samples. Used when
// a transport tick carries an explicit absence of audio for this speaker.
func (b *Buffer) markSilence() {
	b.speaking = false
}

// take atomically empties the buffer and returns its prior contents.
func (b *Buffer) take() []int16 {
	out := b.samples
	b.samples = nil
	b.speaking = false
	return out
}

// Len returns the buffered sample count.
func (b *Buffer) Len() int { return len(b.samples) }

// durationMs is the buffered audio length in milliseconds at 48 kHz.
func (b *Buffer) durationMs() int {
	return len(b.samples) * 1000 / SampleRate
}

// SegmentPolicy decides when a buffer represents a complete utterance.
type SegmentPolicy struct {
	// Silence is the minimum elapsed time without new audio before a buffer
	// is eligible for flush.
	Silence time.Duration
	// MinSamples guards against dispatching fragments too short to be
	// useful to the recognizer.
	MinSamples int
	// MaxUtterance force-flushes a buffer that keeps accumulating without
	// ever meeting the silence gate, bounding memory growth for a
	// continuous talker. Zero disables the cap.
	MaxUtterance time.Duration
}

// DefaultSegmentPolicy matches the live-translation tuning: 1.5s of silence
// and at least 500ms of audio at 48 kHz.
func DefaultSegmentPolicy() SegmentPolicy {
	return SegmentPolicy{
		Silence:      1500 * time.Millisecond,
		MinSamples:   24000,
		MaxUtterance: 30 * time.Second,
	}
}

// ready reports whether the buffer should be flushed as one utterance.
// A buffer below MinSamples never becomes ready purely from silence; it
// keeps accumulating until more audio arrives or the session ends.
func (p SegmentPolicy) ready(b *Buffer, now time.Time) bool {
	if len(b.samples) == 0 {
		return false
	}
	if p.MaxUtterance > 0 && time.Duration(b.durationMs())*time.Millisecond >= p.MaxUtterance {
		return true
	}
	if now.Sub(b.lastActivity) <= p.Silence {
		return false
	}
	return len(b.samples) >= p.MinSamples
}
