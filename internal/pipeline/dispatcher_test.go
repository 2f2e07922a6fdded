package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/discord-voice-interp/internal/session"
)

type fakeRecognizer struct {
	mu      sync.Mutex
	calls   int
	results []RecognizeResult
	errs    []error
}

func (f *fakeRecognizer) Recognize(_ context.Context, _ []float32, _ string) (RecognizeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	var res RecognizeResult
	var err error
	if i < len(f.results) {
		res = f.results[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return res, err
}

type fakeTranslator struct {
	mu    sync.Mutex
	calls int
	errs  []error
	out   string
}

func (f *fakeTranslator) Translate(_ context.Context, text, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if f.out != "" {
		return f.out, nil
	}
	return "translated: " + text, nil
}

type recordingPresenter struct {
	mu           sync.Mutex
	translations []Translation
	transcripts  []string
	minutes      []string
	notices      []string
}

func (p *recordingPresenter) Translation(_ context.Context, _ string, t Translation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.translations = append(p.translations, t)
	return nil
}

func (p *recordingPresenter) Transcript(_ context.Context, _ string, tr string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transcripts = append(p.transcripts, tr)
	return nil
}

func (p *recordingPresenter) Minutes(_ context.Context, _ string, m string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.minutes = append(p.minutes, m)
	return nil
}

func (p *recordingPresenter) Notice(_ context.Context, _ string, n string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, n)
	return nil
}

type staticPrefs map[string][2]string

func (s staticPrefs) Get(userID string) (string, string, bool) {
	p, ok := s[userID]
	return p[0], p[1], ok
}

func testDispatcher(rec Recognizer, tr Translator, pres Presenter, prefs PreferenceSource) *Dispatcher {
	return &Dispatcher{
		Registry:   session.NewRegistry(),
		Recognizer: rec,
		Translator: tr,
		Presenter:  pres,
		Prefs:      prefs,
		Policy:     session.DefaultSegmentPolicy(),
		Retry:      RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond},
	}
}

func speechSamples(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16((i%200 - 100) * 80) // loud enough to clear the RMS gate
	}
	return out
}

func TestProcessUtteranceHappyPath(t *testing.T) {
	rec := &fakeRecognizer{results: []RecognizeResult{{Text: "おはようございます", Language: "ja"}}}
	tr := &fakeTranslator{out: "good morning"}
	pres := &recordingPresenter{}
	d := testDispatcher(rec, tr, pres, staticPrefs{"alice": {"ja", "en"}})

	s, err := d.Registry.Start("g", "c", session.ModeTranslating)
	require.NoError(t, err)
	d.processUtterance(s.Context(), s, session.Utterance{ID: "u1", Speaker: "alice", Samples: speechSamples(48000)})

	require.Len(t, pres.translations, 1)
	got := pres.translations[0]
	assert.Equal(t, "alice", got.Speaker)
	assert.Equal(t, "ja", got.SourceLang)
	assert.Equal(t, "en", got.TargetLang)
	assert.Equal(t, "おはようございます", got.Original)
	assert.Equal(t, "good morning", got.Translated)
}

func TestProcessUtteranceEmptySamplesShortCircuits(t *testing.T) {
	rec := &fakeRecognizer{}
	pres := &recordingPresenter{}
	d := testDispatcher(rec, &fakeTranslator{}, pres, staticPrefs{})

	s, err := d.Registry.Start("g", "c", session.ModeTranslating)
	require.NoError(t, err)
	d.processUtterance(s.Context(), s, session.Utterance{ID: "u1", Speaker: "alice"})

	assert.Zero(t, rec.calls, "empty utterances never reach the recognizer")
	assert.Empty(t, pres.translations)
}

func TestProcessUtteranceNoPrefsSkipsTranslation(t *testing.T) {
	rec := &fakeRecognizer{results: []RecognizeResult{{Text: "hello", Language: "en"}}}
	tr := &fakeTranslator{}
	pres := &recordingPresenter{}
	d := testDispatcher(rec, tr, pres, staticPrefs{})

	s, err := d.Registry.Start("g", "c", session.ModeTranslating)
	require.NoError(t, err)
	d.processUtterance(s.Context(), s, session.Utterance{ID: "u1", Speaker: "alice", Samples: speechSamples(48000)})

	assert.Zero(t, tr.calls)
	assert.Empty(t, pres.translations, "unconfigured speakers are skipped silently")
}

func TestProcessUtteranceRejectsHallucination(t *testing.T) {
	rec := &fakeRecognizer{results: []RecognizeResult{{Text: "お疲れ様でした。", Language: "ja"}}}
	tr := &fakeTranslator{}
	pres := &recordingPresenter{}
	d := testDispatcher(rec, tr, pres, staticPrefs{"alice": {"ja", "en"}})

	s, err := d.Registry.Start("g", "c", session.ModeTranslating)
	require.NoError(t, err)
	// 700ms of audio, below the 1200ms suspicion threshold.
	d.processUtterance(s.Context(), s, session.Utterance{ID: "u1", Speaker: "alice", Samples: speechSamples(33600)})

	assert.Zero(t, tr.calls)
	assert.Empty(t, pres.translations)
}

func TestProcessUtteranceLocalLanguageFallback(t *testing.T) {
	// Recognizer reports no language; the character-class heuristic fills in.
	rec := &fakeRecognizer{results: []RecognizeResult{{Text: "今日は晴れです"}}}
	pres := &recordingPresenter{}
	d := testDispatcher(rec, &fakeTranslator{}, pres, staticPrefs{"alice": {"", "en"}})

	s, err := d.Registry.Start("g", "c", session.ModeTranslating)
	require.NoError(t, err)
	d.processUtterance(s.Context(), s, session.Utterance{ID: "u1", Speaker: "alice", Samples: speechSamples(48000)})

	require.Len(t, pres.translations, 1)
	assert.Equal(t, "ja", pres.translations[0].SourceLang)
}

func TestTranslateWithRetryRecoversFromTransientFailures(t *testing.T) {
	tr := &fakeTranslator{errs: []error{
		fmt.Errorf("%w: status 429", ErrRateLimited),
		fmt.Errorf("%w: status 503", ErrTransientUnavailable),
		nil,
	}}
	d := testDispatcher(nil, tr, nil, nil)

	out, err := d.translateWithRetry(context.Background(), "hello", "en", "ja")
	require.NoError(t, err)
	assert.Equal(t, "translated: hello", out)
	assert.Equal(t, 3, tr.calls, "two failed attempts, then success")
}

func TestTranslateWithRetryGivesUpAfterMaxAttempts(t *testing.T) {
	tr := &fakeTranslator{errs: []error{ErrRateLimited, ErrRateLimited, ErrRateLimited, ErrRateLimited}}
	d := testDispatcher(nil, tr, nil, nil)

	_, err := d.translateWithRetry(context.Background(), "hello", "en", "ja")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 3, tr.calls)
}

func TestTranslateWithRetryFatalErrorsAbortImmediately(t *testing.T) {
	for _, fatal := range []error{ErrQuotaExceeded, ErrBadRequest} {
		tr := &fakeTranslator{errs: []error{fatal, nil}}
		d := testDispatcher(nil, tr, nil, nil)

		_, err := d.translateWithRetry(context.Background(), "hello", "en", "ja")
		assert.ErrorIs(t, err, fatal)
		assert.Equal(t, 1, tr.calls, "%v must not be retried", fatal)
	}
}

func TestTranslateWithRetryHonorsCancellation(t *testing.T) {
	tr := &fakeTranslator{errs: []error{ErrRateLimited, ErrRateLimited, ErrRateLimited}}
	d := testDispatcher(nil, tr, nil, nil)
	d.Retry.Backoff = time.Hour // retries would stall forever without cancellation

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := d.translateWithRetry(ctx, "hello", "en", "ja")
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("retry loop ignored cancellation")
	}
}

func TestProcessUtteranceNilTranslatorSkipsTranslation(t *testing.T) {
	rec := &fakeRecognizer{results: []RecognizeResult{{Text: "hello", Language: "en"}}}
	pres := &recordingPresenter{}
	// No translation backend configured, but the speaker has a pair set.
	d := testDispatcher(rec, nil, pres, staticPrefs{"alice": {"en", "ja"}})

	s, err := d.Registry.Start("g", "c", session.ModeTranslating)
	require.NoError(t, err)
	d.processUtterance(s.Context(), s, session.Utterance{ID: "u1", Speaker: "alice", Samples: speechSamples(96000)})

	assert.Equal(t, 1, rec.calls, "recognition still runs")
	assert.Empty(t, pres.translations, "nothing to present without a translator")
}

type panickingRecognizer struct{}

func (panickingRecognizer) Recognize(context.Context, []float32, string) (RecognizeResult, error) {
	panic("recognizer blew up")
}

func TestSweepSurvivesUtterancePanic(t *testing.T) {
	pres := &recordingPresenter{}
	d := testDispatcher(panickingRecognizer{}, &fakeTranslator{}, pres, staticPrefs{})
	d.Policy = session.SegmentPolicy{Silence: time.Nanosecond, MinSamples: 1}

	s, err := d.Registry.Start("g", "c", session.ModeTranslating)
	require.NoError(t, err)
	s.Attribute(1, "alice")
	s.AppendAudio(1, speechSamples(4800))
	time.Sleep(5 * time.Millisecond) // let the silence window elapse

	d.sweep(time.Now())
	d.wg.Wait() // a propagated panic would crash the test binary here

	assert.Zero(t, s.BufferLen("alice"), "the utterance was flushed and dispatched")
	assert.Empty(t, pres.translations)
}

func TestProcessUtteranceQuotaExhaustionDegradesToTranscript(t *testing.T) {
	rec := &fakeRecognizer{results: []RecognizeResult{{Text: "important point", Language: "en"}}}
	tr := &fakeTranslator{errs: []error{ErrQuotaExceeded}}
	pres := &recordingPresenter{}
	d := testDispatcher(rec, tr, pres, staticPrefs{"alice": {"en", "ja"}})

	s, err := d.Registry.Start("g", "c", session.ModeTranslating)
	require.NoError(t, err)
	d.processUtterance(s.Context(), s, session.Utterance{ID: "u1", Speaker: "alice", Samples: speechSamples(96000)})

	assert.Empty(t, pres.translations)
	require.Len(t, pres.notices, 1)
	assert.Contains(t, pres.notices[0], "important point")
}

func TestStopSessionAbsentScope(t *testing.T) {
	d := testDispatcher(&fakeRecognizer{}, &fakeTranslator{}, &recordingPresenter{}, staticPrefs{})
	_, ok := d.StopSession(context.Background(), "nowhere")
	assert.False(t, ok)
}

func TestRetryableClassification(t *testing.T) {
	assert.True(t, retryable(fmt.Errorf("wrap: %w", ErrRateLimited)))
	assert.True(t, retryable(ErrTransientUnavailable))
	assert.False(t, retryable(ErrQuotaExceeded))
	assert.False(t, retryable(ErrBadRequest))
	assert.False(t, retryable(errors.New("other")))
}
