package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepArtifactsRemovesOnlyStaleWAVs(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "g_u_20240101_000000.wav")
	staleTmp := filepath.Join(dir, "g_u_20240101_000001.wav.tmp")
	fresh := filepath.Join(dir, "g_u_fresh.wav")
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{stale, staleTmp, fresh, other} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))
	require.NoError(t, os.Chtimes(staleTmp, old, old))
	require.NoError(t, os.Chtimes(other, old, old))

	sweepArtifacts(dir, time.Hour)

	assert.NoFileExists(t, stale)
	assert.NoFileExists(t, staleTmp)
	assert.FileExists(t, fresh, "recent artifacts survive")
	assert.FileExists(t, other, "non-audio files are never touched")
}
