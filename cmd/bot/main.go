package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/discord-voice-interp/internal/config"
	"github.com/discord-voice-interp/internal/feed"
	"github.com/discord-voice-interp/internal/logging"
	"github.com/discord-voice-interp/internal/metrics"
	"github.com/discord-voice-interp/internal/pipeline"
	"github.com/discord-voice-interp/internal/prefs"
	"github.com/discord-voice-interp/internal/session"
	"github.com/discord-voice-interp/internal/stt"
	"github.com/discord-voice-interp/internal/summarize"
	"github.com/discord-voice-interp/internal/translate"
	"github.com/discord-voice-interp/internal/voice"
)

func main() {
	sugar := logging.Init()
	if sugar == nil {
		l, _ := zap.NewProduction()
		defer l.Sync()
		sugar = l.Sugar()
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalf("config: %v", err)
	}

	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		sugar.Fatalf("discordgo.New: %v", err)
	}
	// Guilds + voice states for join/leave tracking, messages + content for
	// the command surface.
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	store, err := prefs.Open(cfg.PrefsPath)
	if err != nil {
		sugar.Fatalf("prefs: %v", err)
	}

	transport, err := voice.NewTransport(dg, cfg.FrameQueueLength)
	if err != nil {
		sugar.Fatalf("transport: %v", err)
	}

	registry := session.NewRegistry()
	resolver := voice.NewResolver(dg, cfg.GuildID)
	presenter := voice.NewPresenter(dg, resolver)

	var summarizer pipeline.Summarizer
	if cfg.SummarizerURL != "" {
		summarizer = summarize.NewClient(cfg.SummarizerURL, cfg.SummarizerAPIKey, cfg.SummarizerModel)
	}
	var translator pipeline.Translator
	if cfg.TranslateBaseURL != "" {
		translator = translate.NewClient(cfg.TranslateBaseURL, cfg.TranslateAPIKey)
	}

	captionFeed := feed.NewServer()

	dispatcher := &pipeline.Dispatcher{
		Registry:   registry,
		Recognizer: stt.NewClient(cfg.WhisperURL, time.Duration(cfg.WhisperTimeoutMs)*time.Millisecond),
		Translator: translator,
		Summarizer: summarizer,
		Presenter:  presenter,
		Prefs:      store,
		Resolver:   resolver,
		Captions:   captionFeed,
		Policy: session.SegmentPolicy{
			Silence:      time.Duration(cfg.SilenceMs) * time.Millisecond,
			MinSamples:   cfg.MinSamples,
			MaxUtterance: time.Duration(cfg.MaxUtteranceMs) * time.Millisecond,
		},
		Sweep: time.Duration(cfg.SweepIntervalMs) * time.Millisecond,
		Retry: pipeline.RetryPolicy{
			MaxAttempts: cfg.RetryMaxAttempts,
			Backoff:     time.Duration(cfg.RetryBackoffBaseMs) * time.Millisecond,
		},
		RecordingDir: cfg.RecordingDir,
	}

	commands := &voice.Commands{
		Registry:       registry,
		Dispatcher:     dispatcher,
		Transport:      transport,
		Prefs:          store,
		VoiceChannelID: cfg.VoiceChannelID,
	}
	commands.Register(dg)

	if err := dg.Open(); err != nil {
		sugar.Fatalf("discord session open failed: %v", err)
	}
	sugar.Infow("discord session opened")

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatcher.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = transport.Run(ctx)
	}()

	wg.Add(1)
	session.StartArtifactCleaner(ctx, &wg, cfg.RecordingDir,
		time.Duration(cfg.ArtifactRetentionMin)*time.Minute, 10*time.Minute)

	if cfg.FeedAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := captionFeed.Listen(ctx, cfg.FeedAddr); err != nil {
				sugar.Warnf("caption feed stopped: %v", err)
			}
		}()
	}

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(cfg.MetricsAddr); err != nil {
				sugar.Warnf("metrics listener stopped: %v", err)
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	sugar.Infow("shutdown signal received")

	// Finalize any sessions still running so capture artifacts survive the
	// restart. Results are presented before the Discord session closes.
	transport.Bind(nil)
	transport.Leave()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 60*time.Second)
	registry.Each(func(s *session.Session) {
		if _, ok := dispatcher.StopSession(shutdownCtx, s.Scope); ok {
			sugar.Infow("finalized session on shutdown", "scope", s.Scope)
		}
	})
	shutdownCancel()

	cancel()
	wg.Wait()

	if err := dg.Close(); err != nil {
		sugar.Warnf("discord session close error: %v", err)
	}
	sugar.Info("shutdown complete")
}
