package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/discord-voice-interp/internal/logging"
	"github.com/discord-voice-interp/internal/metrics"
	"github.com/discord-voice-interp/internal/session"
)

// CaptionSink receives every successful live translation in addition to the
// Presenter. Used to fan results out to the websocket caption feed. May be
// nil.
type CaptionSink interface {
	Publish(t Translation)
}

// RetryPolicy bounds how translation failures are retried. Delay before
// attempt n is n*Backoff; only rate-limit and transient-unavailable errors
// are retried.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy matches the translation service's documented guidance.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: 200 * time.Millisecond}
}

// Dispatcher owns the segmentation sweep and the per-utterance pipeline:
// recognize, filter, translate, present. Each utterance is processed in its
// own goroutine under the owning session's context, so one slow or failing
// utterance never stalls its siblings, and work for a stopped session is
// cancelled rather than delivered late.
type Dispatcher struct {
	Registry   *session.Registry
	Recognizer Recognizer
	Translator Translator
	Summarizer Summarizer
	Presenter  Presenter
	Prefs      PreferenceSource
	Resolver   NameResolver
	Captions   CaptionSink

	Policy       session.SegmentPolicy
	Sweep        time.Duration
	Retry        RetryPolicy
	RecordingDir string

	wg sync.WaitGroup
}

// Run sweeps all translating sessions on the configured interval, flushing
// ready utterances into the pipeline. It returns when ctx is cancelled,
// after waiting for in-flight utterances to finish.
func (d *Dispatcher) Run(ctx context.Context) {
	interval := d.Sweep
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logging.Infow("dispatcher: started", "sweep_interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			d.wg.Wait()
			logging.Infow("dispatcher: stopped")
			return
		case now := <-ticker.C:
			d.sweep(now)
		}
	}
}

func (d *Dispatcher) sweep(now time.Time) {
	d.Registry.Each(func(s *session.Session) {
		if s.Mode != session.ModeTranslating {
			return
		}
		for _, u := range s.ReadyUtterances(d.Policy, now) {
			d.wg.Add(1)
			go func(s *session.Session, u session.Utterance) {
				defer d.wg.Done()
				// A panic in one utterance must never take down ingestion
				// or sibling utterances.
				defer func() {
					if r := recover(); r != nil {
						metrics.PipelineErrors.WithLabelValues("panic").Inc()
						logging.Errorw("pipeline: utterance panicked",
							append(logging.UtteranceFields(u.ID, u.Speaker), "panic", r)...)
					}
				}()
				d.processUtterance(s.Context(), s, u)
			}(s, u)
		}
	})
}

// processUtterance runs one utterance through recognize -> filter ->
// translate -> present. Failures are logged and counted; nothing propagates
// to other utterances or the sweep loop.
func (d *Dispatcher) processUtterance(ctx context.Context, s *session.Session, u session.Utterance) {
	if len(u.Samples) == 0 {
		return
	}
	fields := logging.UtteranceFields(u.ID, u.Speaker)

	floats := Int16ToFloat32(u.Samples)
	energy := RMS(floats)
	mono16k := Downsample48kTo16k(floats)

	srcPref, tgtPref, hasPrefs := "", "", false
	if d.Prefs != nil {
		srcPref, tgtPref, hasPrefs = d.Prefs.Get(u.Speaker)
	}

	start := time.Now()
	res, err := d.Recognizer.Recognize(ctx, mono16k, srcPref)
	metrics.RecognizeLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logging.Debugw("pipeline: recognize cancelled", fields...)
			return
		}
		metrics.PipelineErrors.WithLabelValues("recognize").Inc()
		logging.Warnw("pipeline: recognize failed", append(fields, "err", err)...)
		return
	}
	if res.Text == "" {
		logging.Debugw("pipeline: empty transcript", fields...)
		return
	}
	if IsLikelyHallucination(res.Text, u.DurationMs(), energy) {
		metrics.UtterancesRejected.Inc()
		logging.Debugw("pipeline: rejected likely hallucination",
			append(fields, "text", res.Text, "duration_ms", u.DurationMs(), "rms", energy)...)
		return
	}

	// No configured language pair means the speaker opted out of live
	// translation; their speech is recognized but not presented. The same
	// applies when no translation backend is configured at all.
	if !hasPrefs {
		logging.Debugw("pipeline: no language preference, skipping translation", fields...)
		return
	}
	if d.Translator == nil {
		logging.Debugw("pipeline: no translator configured, skipping translation", fields...)
		return
	}

	srcLang := res.Language
	if srcLang == "" {
		srcLang = DetectLanguageLocal(res.Text)
	}
	if srcPref != "" {
		srcLang = srcPref
	}
	if srcLang == tgtPref {
		logging.Debugw("pipeline: source equals target, skipping translation", fields...)
		return
	}

	translated, err := d.translateWithRetry(ctx, res.Text, srcLang, tgtPref)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		metrics.PipelineErrors.WithLabelValues("translate").Inc()
		logging.Warnw("pipeline: translate failed", append(fields, "err", err)...)
		if errors.Is(err, ErrQuotaExceeded) {
			// Quota exhaustion is user-visible: the transcript still has
			// value, so degrade to it rather than dropping the utterance.
			d.notify(ctx, s.Origin, "Translation quota exhausted; raw transcript: "+res.Text)
		}
		return
	}

	t := Translation{
		Speaker:    u.Speaker,
		SourceLang: srcLang,
		TargetLang: tgtPref,
		Original:   res.Text,
		Translated: translated,
	}
	if d.Captions != nil {
		d.Captions.Publish(t)
	}
	if err := d.Presenter.Translation(ctx, s.Origin, t); err != nil {
		metrics.PipelineErrors.WithLabelValues("present").Inc()
		logging.Warnw("pipeline: present failed", append(fields, "err", err)...)
	}
}

// translateWithRetry retries rate-limit and transient-unavailable failures
// with linear backoff (attempt * base). Quota and bad-request failures, and
// context cancellation, abort immediately.
func (d *Dispatcher) translateWithRetry(ctx context.Context, text, srcLang, tgtLang string) (string, error) {
	policy := d.Retry
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		start := time.Now()
		out, err := d.Translator.Translate(ctx, text, srcLang, tgtLang)
		metrics.TranslateLatency.Observe(time.Since(start).Seconds())
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !retryable(err) || attempt == policy.MaxAttempts {
			return "", lastErr
		}
		metrics.TranslateRetries.Inc()
		logging.Debugw("pipeline: retrying translation", "attempt", attempt, "err", err)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(attempt) * policy.Backoff):
		}
	}
	return "", lastErr
}

// StopSession removes the scope's session, finalizes it, and runs the
// mode-specific teardown: capture sessions get their artifacts transcribed
// and summarized. The second return value is false when no session existed.
func (d *Dispatcher) StopSession(ctx context.Context, scope string) (session.Mode, bool) {
	s, ok := d.Registry.Stop(scope)
	if !ok {
		return 0, false
	}
	artifacts, err := s.Finalize(d.RecordingDir)
	if err != nil {
		logging.Errorw("dispatcher: finalize failed", "scope", scope, "err", err)
		d.notify(ctx, s.Origin, "Recording finalize failed; some audio may not have been saved.")
		return s.Mode, true
	}
	if s.Mode == session.ModeCapturing {
		d.finishCapture(ctx, s, artifacts)
	}
	return s.Mode, true
}

func (d *Dispatcher) notify(ctx context.Context, origin, msg string) {
	if d.Presenter == nil {
		return
	}
	if err := d.Presenter.Notice(ctx, origin, msg); err != nil {
		logging.Warnw("dispatcher: notice failed", "origin", origin, "err", err)
	}
}
