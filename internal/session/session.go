package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/discord-voice-interp/internal/logging"
	"github.com/discord-voice-interp/internal/metrics"
)

// session lifecycle states. start is only valid from idle (enforced by the
// Registry, which refuses a second session per scope); stop transitions
// Active -> Finalizing, and Finalize completes the drain back to idle.
const (
	stateActive int32 = iota
	stateFinalizing
	stateDone
)

// Session owns the speaker buffers and stream attribution for one scope
// (guild). At most one session exists per scope at any time, regardless of
// mode; the Registry enforces that invariant.
type Session struct {
	Scope     string
	Origin    string // channel the session was started from; results go here
	Mode      Mode
	StartTime time.Time

	attrib *Attributor

	// bufMu guards the buffer map and every Buffer in it. Appends and
	// flushes for the same speaker share this critical section so no
	// samples are lost or duplicated across a flush boundary.
	bufMu   sync.Mutex
	buffers map[string]*Buffer

	state int32

	// ctx is cancelled when the session leaves Active. Pipeline work for
	// this session's utterances is spawned under it, so late results from
	// a stopped session are cancelled rather than delivered.
	ctx    context.Context
	cancel context.CancelFunc
}

func newSession(scope, origin string, mode Mode) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		Scope:     scope,
		Origin:    origin,
		Mode:      mode,
		StartTime: time.Now(),
		attrib:    NewAttributor(),
		buffers:   make(map[string]*Buffer),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Context returns the session-scoped context used to bound pipeline work.
func (s *Session) Context() context.Context { return s.ctx }

// Attribute records a transport attribution event (stream -> speaker).
func (s *Session) Attribute(streamID uint32, speakerID string) {
	s.attrib.Attribute(streamID, speakerID)
	logging.Debugw("session: attributed stream", "scope", s.Scope, "ssrc", streamID, "speaker.id", speakerID)
}

// AppendAudio attributes the frame and appends its samples to the owning
// speaker's buffer. Frames for unmapped streams are dropped; this is the
// documented loss window before the first attribution event arrives. The
// call is non-blocking and cheap: it runs on the transport callback path.
func (s *Session) AppendAudio(streamID uint32, samples []int16) {
	if atomic.LoadInt32(&s.state) != stateActive {
		return
	}
	speaker, ok := s.attrib.Lookup(streamID)
	if !ok {
		metrics.FramesDropped.WithLabelValues("unmapped").Inc()
		logging.Debugw("session: dropping frame for unmapped stream", "scope", s.Scope, "ssrc", streamID)
		return
	}
	s.bufMu.Lock()
	b, ok := s.buffers[speaker]
	if !ok {
		b = newBuffer(speaker)
		s.buffers[speaker] = b
	}
	b.append(samples)
	s.bufMu.Unlock()
	metrics.FramesIngested.Inc()
}

// MarkSilence clears the speaking flag for the stream's speaker without
// touching buffered samples.
func (s *Session) MarkSilence(streamID uint32) {
	speaker, ok := s.attrib.Lookup(streamID)
	if !ok {
		return
	}
	s.bufMu.Lock()
	if b, ok := s.buffers[speaker]; ok {
		b.markSilence()
	}
	s.bufMu.Unlock()
}

// Flush atomically takes and clears the named speaker's buffer, returning
// its prior contents. A missing or empty buffer yields an empty slice, not
// an error.
func (s *Session) Flush(speaker string) []int16 {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	b, ok := s.buffers[speaker]
	if !ok {
		return nil
	}
	return b.take()
}

// BufferLen reports the buffered sample count for a speaker. Zero when the
// buffer does not exist.
func (s *Session) BufferLen(speaker string) int {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	if b, ok := s.buffers[speaker]; ok {
		return b.Len()
	}
	return 0
}

// ReadyUtterances sweeps all speaker buffers against the policy, atomically
// flushing each ready buffer into one Utterance. Buffers below the minimum
// duration are left untouched regardless of elapsed silence.
func (s *Session) ReadyUtterances(policy SegmentPolicy, now time.Time) []Utterance {
	if atomic.LoadInt32(&s.state) != stateActive {
		return nil
	}
	var out []Utterance
	s.bufMu.Lock()
	for speaker, b := range s.buffers {
		if !policy.ready(b, now) {
			continue
		}
		samples := b.take()
		out = append(out, Utterance{
			ID:        uuid.NewString(),
			Speaker:   speaker,
			Samples:   samples,
			FlushedAt: now,
		})
	}
	s.bufMu.Unlock()
	for _, u := range out {
		metrics.UtterancesDispatched.Inc()
		logging.Debugw("session: utterance ready",
			append(logging.UtteranceFields(u.ID, u.Speaker), "samples", len(u.Samples), "duration_ms", u.DurationMs())...)
	}
	return out
}

// beginFinalize moves the session out of Active exactly once and cancels
// in-flight pipeline work. Subsequent calls return ErrFinalizing.
func (s *Session) beginFinalize() error {
	if !atomic.CompareAndSwapInt32(&s.state, stateActive, stateFinalizing) {
		return ErrFinalizing
	}
	s.cancel()
	return nil
}

// drainAll takes every buffer's contents, leaving the map empty. Only
// legal while finalizing.
func (s *Session) drainAll() map[string][]int16 {
	out := make(map[string][]int16)
	s.bufMu.Lock()
	for speaker, b := range s.buffers {
		if b.Len() == 0 {
			continue
		}
		out[speaker] = b.take()
	}
	s.buffers = make(map[string]*Buffer)
	s.bufMu.Unlock()
	return out
}
