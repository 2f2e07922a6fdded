package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the voice interpreter bot.
type Config struct {
	// Discord transport configuration
	DiscordToken   string `envconfig:"DISCORD_BOT_TOKEN" required:"true"`
	GuildID        string `envconfig:"GUILD_ID" default:""`
	VoiceChannelID string `envconfig:"VOICE_CHANNEL_ID" default:""`
	TextChannelID  string `envconfig:"TEXT_CHANNEL_ID" default:""`

	// Speech recognition (Whisper-compatible HTTP endpoint)
	WhisperURL       string `envconfig:"WHISPER_URL" required:"true"`
	WhisperTimeoutMs int    `envconfig:"WHISPER_TIMEOUT_MS" default:"30000"`

	// Translation (DeepL-compatible HTTP API)
	TranslateAPIKey  string `envconfig:"TRANSLATE_API_KEY" default:""`
	TranslateBaseURL string `envconfig:"TRANSLATE_BASE_URL" default:""`

	// Summarization (OpenAI-compatible chat completions endpoint)
	SummarizerURL    string `envconfig:"SUMMARIZER_URL" default:""`
	SummarizerAPIKey string `envconfig:"SUMMARIZER_API_KEY" default:""`
	SummarizerModel  string `envconfig:"SUMMARIZER_MODEL" default:""`

	// Utterance segmentation
	SweepIntervalMs  int `envconfig:"SWEEP_INTERVAL_MS" default:"500"`   // segmentation sweep period
	SilenceMs        int `envconfig:"SILENCE_MS" default:"1500"`         // silence before a buffer is flush-eligible
	MinSamples       int `envconfig:"MIN_SAMPLES" default:"24000"`       // minimum utterance length (500ms @ 48kHz)
	MaxUtteranceMs   int `envconfig:"MAX_UTTERANCE_MS" default:"30000"`  // hard cap; forced flush past this
	FrameQueueLength int `envconfig:"FRAME_QUEUE_LENGTH" default:"256"`  // transport frame queue depth

	// Capture artifacts
	RecordingDir         string `envconfig:"RECORDING_DIR" default:"./recordings"`
	ArtifactRetentionMin int    `envconfig:"ARTIFACT_RETENTION_MIN" default:"60"` // sweep leftovers from failed transcriptions

	// Translation retry policy
	RetryMaxAttempts   int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryBackoffBaseMs int `envconfig:"RETRY_BACKOFF_BASE_MS" default:"200"` // delay = attempt * base

	// Preference store
	PrefsPath string `envconfig:"PREFS_PATH" default:"./user_settings.json"`

	// Live caption feed (websocket); empty disables the listener
	FeedAddr string `envconfig:"FEED_ADDR" default:""`

	// Observability
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:""` // empty disables the /metrics listener
}

// Load reads configuration from environment variables. It first attempts to
// load a .env file if one exists, then processes the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.DiscordToken == "" {
		return nil, fmt.Errorf("DISCORD_BOT_TOKEN is required")
	}
	if cfg.WhisperURL == "" {
		return nil, fmt.Errorf("WHISPER_URL is required")
	}
	if cfg.SilenceMs <= 0 || cfg.SweepIntervalMs <= 0 {
		return nil, fmt.Errorf("SILENCE_MS and SWEEP_INTERVAL_MS must be positive")
	}

	return &cfg, nil
}
