package pipeline

import (
	"strings"
	"unicode"
)

// Thresholds below which a recognizer result is suspect enough to check
// against the known filler phrases.
const (
	hallucinationMaxDurationMs = 1200
	hallucinationMaxRMS        = 0.01
)

// knownFillerPhrases are spurious outputs the recognizer produces on short
// or near-silent audio. Matched against normalized text.
var knownFillerPhrases = []string{
	"お疲れ様でした",
	"おつかれさまでした",
	"ご視聴ありがとうございました",
	"ごしちょうありがとうございました",
}

// normalizeTranscript strips whitespace and common sentence punctuation so
// phrase matching is insensitive to the recognizer's formatting.
func normalizeTranscript(text string) string {
	var b strings.Builder
	for _, r := range text {
		if unicode.IsSpace(r) || strings.ContainsRune("。、！!？?", r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsLikelyHallucination reports whether recognized text on short or
// low-energy audio matches a known spurious filler phrase and should be
// discarded as noise rather than treated as a genuine utterance.
func IsLikelyHallucination(text string, durationMs int, rms float32) bool {
	shortAudio := durationMs < hallucinationMaxDurationMs
	lowEnergy := rms < hallucinationMaxRMS
	if !shortAudio && !lowEnergy {
		return false
	}
	normalized := normalizeTranscript(text)
	for _, phrase := range knownFillerPhrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}

// DetectLanguageLocal guesses the language of text from character classes.
// Used as a fallback when the recognizer reports no detected language.
// Currently distinguishes Japanese from everything else (treated as "en").
func DetectLanguageLocal(text string) string {
	japanese := 0
	total := 0
	for _, r := range text {
		total++
		switch {
		case r >= 0x3040 && r <= 0x309F: // hiragana
			japanese++
		case r >= 0x30A0 && r <= 0x30FF: // katakana
			japanese++
		case r >= 0x4E00 && r <= 0x9FFF: // kanji
			japanese++
		}
	}
	if total > 0 && japanese*10 > total {
		return "ja"
	}
	return "en"
}
