package voice

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitMessageShortTextPassesThrough(t *testing.T) {
	chunks := splitMessage("hello", maxMessageLen)
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello", chunks[0])
}

func TestSplitMessagePrefersLineBoundaries(t *testing.T) {
	var lines []string
	for i := 0; i < 100; i++ {
		lines = append(lines, strings.Repeat("a", 50))
	}
	text := strings.Join(lines, "\n")

	chunks := splitMessage(text, 200)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 200)
	}
	assert.Equal(t, text, strings.Join(chunks, "\n"), "no content lost or reordered")
}

func TestSplitMessageHandlesOversizedLine(t *testing.T) {
	text := strings.Repeat("x", 5000)
	chunks := splitMessage(text, maxMessageLen)
	require.Greater(t, len(chunks), 1)
	total := 0
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), maxMessageLen)
		total += len(c)
	}
	assert.Equal(t, 5000, total)
}

func TestSplitMessageLineExactlyAtLimit(t *testing.T) {
	// A line of exactly the limit must not produce an empty leading chunk,
	// which the platform would reject.
	text := strings.Repeat("a", 200) + "\ntrailer"
	chunks := splitMessage(text, 200)
	for i, c := range chunks {
		assert.NotEmpty(t, c, "chunk %d is empty", i)
		assert.LessOrEqual(t, len(c), 200)
	}
	assert.Equal(t, text, strings.Join(chunks, "\n"))
}

func TestSplitMessageCutsOnRuneBoundary(t *testing.T) {
	text := strings.Repeat("あ", 2000) // 3 bytes each
	for _, c := range splitMessage(text, maxMessageLen) {
		assert.Zero(t, len(c)%3, "multi-byte runes must not be split")
	}
}
