package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAudioDropsUnmappedStreams(t *testing.T) {
	s := newSession("guild-1", "chan-1", ModeTranslating)
	s.AppendAudio(99, make([]int16, 960))

	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	assert.Empty(t, s.buffers, "frames before the first attribution event are dropped")
}

func TestAppendAudioRoutesToAttributedSpeaker(t *testing.T) {
	s := newSession("guild-1", "chan-1", ModeTranslating)
	s.Attribute(99, "alice")
	s.AppendAudio(99, make([]int16, 960))
	s.AppendAudio(99, make([]int16, 960))

	assert.Equal(t, 1920, s.BufferLen("alice"))
}

func TestFlushReturnsAndClears(t *testing.T) {
	s := newSession("guild-1", "chan-1", ModeTranslating)
	s.Attribute(1, "alice")
	s.AppendAudio(1, []int16{1, 2, 3})

	got := s.Flush("alice")
	assert.Equal(t, []int16{1, 2, 3}, got)
	assert.Zero(t, s.BufferLen("alice"))
}

func TestFlushMissingSpeakerIsEmptyNotError(t *testing.T) {
	s := newSession("guild-1", "chan-1", ModeTranslating)
	assert.Empty(t, s.Flush("nobody"))
}

func TestReadyUtterancesFlushesEligibleBuffersOnly(t *testing.T) {
	s := newSession("guild-1", "chan-1", ModeTranslating)
	s.Attribute(1, "alice")
	s.Attribute(2, "bob")
	s.AppendAudio(1, make([]int16, 30000)) // eligible once silence elapses
	s.AppendAudio(2, make([]int16, 16000)) // below minimum, never eligible

	// Rewind activity so both buffers look silent for 1.6s.
	s.bufMu.Lock()
	past := time.Now().Add(-1600 * time.Millisecond)
	for _, b := range s.buffers {
		b.lastActivity = past
	}
	s.bufMu.Unlock()

	utts := s.ReadyUtterances(DefaultSegmentPolicy(), time.Now())
	require.Len(t, utts, 1)
	assert.Equal(t, "alice", utts[0].Speaker)
	assert.Len(t, utts[0].Samples, 30000)
	assert.NotEmpty(t, utts[0].ID)

	assert.Zero(t, s.BufferLen("alice"), "flushed buffer is emptied")
	assert.Equal(t, 16000, s.BufferLen("bob"), "short buffer keeps accumulating")
}

func TestReadyUtterancesAfterFinalizeIsNil(t *testing.T) {
	s := newSession("guild-1", "chan-1", ModeTranslating)
	s.Attribute(1, "alice")
	s.AppendAudio(1, make([]int16, 30000))
	_, err := s.Finalize(t.TempDir())
	require.NoError(t, err)

	assert.Nil(t, s.ReadyUtterances(DefaultSegmentPolicy(), time.Now().Add(time.Hour)))
}

func TestFinalizeCancelsSessionContext(t *testing.T) {
	s := newSession("guild-1", "chan-1", ModeTranslating)
	select {
	case <-s.Context().Done():
		t.Fatal("context cancelled before finalize")
	default:
	}

	_, err := s.Finalize(t.TempDir())
	require.NoError(t, err)

	select {
	case <-s.Context().Done():
	default:
		t.Fatal("finalize must cancel the session context")
	}
}

func TestFinalizeTwiceFails(t *testing.T) {
	s := newSession("guild-1", "chan-1", ModeCapturing)
	_, err := s.Finalize(t.TempDir())
	require.NoError(t, err)

	_, err = s.Finalize(t.TempDir())
	assert.ErrorIs(t, err, ErrFinalizing)
}

func TestAppendAudioIgnoredWhileFinalizing(t *testing.T) {
	s := newSession("guild-1", "chan-1", ModeTranslating)
	s.Attribute(1, "alice")
	_, err := s.Finalize(t.TempDir())
	require.NoError(t, err)

	s.AppendAudio(1, make([]int16, 960))
	assert.Zero(t, s.BufferLen("alice"))
}

func TestUtteranceDurationMs(t *testing.T) {
	u := Utterance{Samples: make([]int16, 24000)}
	assert.Equal(t, 500, u.DurationMs())
}
