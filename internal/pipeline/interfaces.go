package pipeline

import (
	"context"
	"errors"
)

// RecognizeResult is the recognizer's output for one utterance.
type RecognizeResult struct {
	Text     string
	Language string // detected language code, e.g. "ja"
}

// Recognizer transcribes normalized float32 mono audio at 16 kHz. An empty
// languageHint asks the recognizer to auto-detect.
type Recognizer interface {
	Recognize(ctx context.Context, samples []float32, languageHint string) (RecognizeResult, error)
}

// Translator converts text between language codes ("ja", "ko", "en", ...).
// Implementations classify failures with the sentinel errors below so the
// dispatcher can decide what to retry.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// Summarizer produces structured meeting minutes from a full transcript.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

// Presenter delivers pipeline output to wherever the session originated.
// Delivery failures are logged by implementations and never propagate into
// sibling utterances.
type Presenter interface {
	Translation(ctx context.Context, origin string, t Translation) error
	Transcript(ctx context.Context, origin string, transcript string) error
	Minutes(ctx context.Context, origin string, minutes string) error
	Notice(ctx context.Context, origin string, message string) error
}

// Translation is one presented live-translation result.
type Translation struct {
	Speaker    string
	SourceLang string
	TargetLang string
	Original   string
	Translated string
}

// PreferenceSource resolves a speaker's configured language pair. ok=false
// means the speaker never configured one; translation is skipped silently.
type PreferenceSource interface {
	Get(userID string) (sourceLang, targetLang string, ok bool)
}

// NameResolver maps a speaker ID to a human-readable display name for
// transcript labeling. Implementations return "" when unknown.
type NameResolver interface {
	DisplayName(userID string) string
}

// Translator failure classes. RateLimited and TransientUnavailable are
// retryable; QuotaExceeded and BadRequest are fatal for the utterance.
var (
	ErrRateLimited          = errors.New("translation rate limited")
	ErrTransientUnavailable = errors.New("translation service unavailable")
	ErrQuotaExceeded        = errors.New("translation quota exceeded")
	ErrBadRequest           = errors.New("translation bad request")
)

// retryable reports whether a translation error is transient.
func retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransientUnavailable)
}
