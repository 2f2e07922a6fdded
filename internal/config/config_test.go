package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "token")
	t.Setenv("WHISPER_URL", "http://localhost:9000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.SweepIntervalMs)
	assert.Equal(t, 1500, cfg.SilenceMs)
	assert.Equal(t, 24000, cfg.MinSamples)
	assert.Equal(t, 30000, cfg.MaxUtteranceMs)
	assert.Equal(t, 256, cfg.FrameQueueLength)
	assert.Equal(t, 3, cfg.RetryMaxAttempts)
	assert.Equal(t, 200, cfg.RetryBackoffBaseMs)
	assert.Equal(t, "./recordings", cfg.RecordingDir)
	assert.Equal(t, "./user_settings.json", cfg.PrefsPath)
	assert.Equal(t, 30000, cfg.WhisperTimeoutMs)
}

func TestLoadMissingToken(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "")
	t.Setenv("WHISPER_URL", "http://localhost:9000")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "token")
	t.Setenv("WHISPER_URL", "http://localhost:9000")
	t.Setenv("SILENCE_MS", "2000")
	t.Setenv("MIN_SAMPLES", "48000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2000, cfg.SilenceMs)
	assert.Equal(t, 48000, cfg.MinSamples)
}

func TestLoadRejectsNonPositiveIntervals(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "token")
	t.Setenv("WHISPER_URL", "http://localhost:9000")
	t.Setenv("SILENCE_MS", "0")

	_, err := Load()
	assert.Error(t, err)
}
