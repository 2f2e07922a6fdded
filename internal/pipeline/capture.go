package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/discord-voice-interp/internal/logging"
	"github.com/discord-voice-interp/internal/metrics"
	"github.com/discord-voice-interp/internal/session"
)

// finishCapture transcribes every artifact a capture session produced,
// assembles a speaker-labeled transcript, and presents meeting minutes.
// Per-artifact failures are isolated: one unreadable or untranscribable
// recording degrades the transcript instead of aborting the batch.
func (d *Dispatcher) finishCapture(ctx context.Context, s *session.Session, artifacts []session.Artifact) {
	if len(artifacts) == 0 {
		d.notify(ctx, s.Origin, "Recording stopped. No audio was captured.")
		return
	}
	logging.Infow("capture: transcribing artifacts", "scope", s.Scope, "count", len(artifacts))

	names := make(map[string]string)
	var lines []string
	for _, a := range artifacts {
		text, err := d.transcribeArtifact(ctx, a)
		if err != nil {
			metrics.PipelineErrors.WithLabelValues("recognize").Inc()
			logging.Warnw("capture: artifact transcription failed", "path", a.Path, "speaker", a.Speaker, "err", err)
			continue
		}
		if text == "" {
			_ = os.Remove(a.Path)
			continue
		}
		label, ok := names[a.Speaker]
		if !ok {
			label = d.displayName(a.Speaker)
			names[a.Speaker] = label
		}
		lines = append(lines, fmt.Sprintf("**[%s]**: %s", label, text))
		// Transcribed artifacts are deleted immediately. Failed ones stay on
		// disk for manual retry until the retention sweep removes them.
		_ = os.Remove(a.Path)
	}

	if len(lines) == 0 {
		d.notify(ctx, s.Origin, "Recording stopped. No speech was recognized in the captured audio.")
		return
	}
	transcript := strings.Join(lines, "\n")

	if d.Summarizer == nil {
		d.present(ctx, s.Origin, transcript, "")
		return
	}
	minutes, err := d.Summarizer.Summarize(ctx, transcript)
	if err != nil {
		logging.Warnw("capture: summarization failed, presenting raw transcript", "scope", s.Scope, "err", err)
		d.notify(ctx, s.Origin, "Summarization is unavailable; posting the raw transcript instead.")
		d.present(ctx, s.Origin, transcript, "")
		return
	}
	d.present(ctx, s.Origin, transcript, minutes)
}

// transcribeArtifact reads one WAV artifact back, converts it to the
// recognizer's input format, and transcribes it with language auto-detect.
func (d *Dispatcher) transcribeArtifact(ctx context.Context, a session.Artifact) (string, error) {
	b, err := os.ReadFile(a.Path)
	if err != nil {
		return "", fmt.Errorf("read artifact: %w", err)
	}
	samples, rate, err := session.DecodeWAV(b)
	if err != nil {
		return "", fmt.Errorf("decode artifact: %w", err)
	}
	floats := Int16ToFloat32(samples)
	if rate == session.SampleRate {
		floats = Downsample48kTo16k(floats)
	}
	res, err := d.Recognizer.Recognize(ctx, floats, "")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Text), nil
}

func (d *Dispatcher) displayName(speaker string) string {
	if d.Resolver != nil {
		if name := d.Resolver.DisplayName(speaker); name != "" {
			return name
		}
	}
	return speaker
}

func (d *Dispatcher) present(ctx context.Context, origin, transcript, minutes string) {
	if err := d.Presenter.Transcript(ctx, origin, transcript); err != nil {
		metrics.PipelineErrors.WithLabelValues("present").Inc()
		logging.Warnw("capture: transcript delivery failed", "origin", origin, "err", err)
	}
	if minutes == "" {
		return
	}
	if err := d.Presenter.Minutes(ctx, origin, minutes); err != nil {
		metrics.PipelineErrors.WithLabelValues("present").Inc()
		logging.Warnw("capture: minutes delivery failed", "origin", origin, "err", err)
	}
}
