package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentPolicyShortBufferNeverReadyFromSilence(t *testing.T) {
	b := newBuffer("user-1")
	b.append(make([]int16, 16000)) // ~333ms, below the 24000 minimum

	policy := DefaultSegmentPolicy()
	now := b.lastActivity.Add(2 * time.Second)
	assert.False(t, policy.ready(b, now), "below-minimum buffer must keep accumulating regardless of silence")
}

func TestSegmentPolicyReadyAfterSilence(t *testing.T) {
	b := newBuffer("user-1")
	b.append(make([]int16, 30000)) // 625ms, above minimum

	policy := DefaultSegmentPolicy()
	assert.False(t, policy.ready(b, b.lastActivity.Add(1400*time.Millisecond)),
		"still within the silence window")
	assert.True(t, policy.ready(b, b.lastActivity.Add(1600*time.Millisecond)))
}

func TestSegmentPolicyEmptyBufferNeverReady(t *testing.T) {
	b := newBuffer("user-1")
	policy := DefaultSegmentPolicy()
	assert.False(t, policy.ready(b, time.Now().Add(time.Hour)))
}

func TestSegmentPolicySilenceBoundaryIsExclusive(t *testing.T) {
	b := newBuffer("user-1")
	b.append(make([]int16, 30000))

	policy := DefaultSegmentPolicy()
	assert.False(t, policy.ready(b, b.lastActivity.Add(policy.Silence)),
		"elapsed silence exactly at the threshold is not yet past it")
}

func TestSegmentPolicyMaxUtteranceForcesFlush(t *testing.T) {
	b := newBuffer("user-1")
	b.append(make([]int16, 31*SampleRate)) // 31s of continuous speech

	policy := DefaultSegmentPolicy()
	// No silence has elapsed at all, but the hard cap fires.
	assert.True(t, policy.ready(b, b.lastActivity))
}

func TestBufferTakeEmptiesAndClearsSpeaking(t *testing.T) {
	b := newBuffer("user-1")
	b.append([]int16{1, 2, 3})
	require.True(t, b.speaking)

	got := b.take()
	assert.Equal(t, []int16{1, 2, 3}, got)
	assert.Zero(t, b.Len())
	assert.False(t, b.speaking)

	assert.Empty(t, b.take(), "second take yields nothing")
}

func TestBufferAppendAfterTakeStartsFresh(t *testing.T) {
	b := newBuffer("user-1")
	b.append([]int16{1, 2})
	_ = b.take()
	b.append([]int16{3})
	assert.Equal(t, []int16{3}, b.take())
}
