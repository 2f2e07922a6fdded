package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsLikelyHallucination(t *testing.T) {
	cases := []struct {
		name       string
		text       string
		durationMs int
		rms        float32
		want       bool
	}{
		{"short filler phrase", "お疲れ様でした。", 800, 0.05, true},
		{"quiet filler phrase", "ご視聴ありがとうございました", 3000, 0.005, true},
		{"filler with punctuation and spaces", " お疲れ様 でした ！", 800, 0.05, true},
		{"filler on long loud audio passes", "お疲れ様でした", 3000, 0.05, false},
		{"short real speech passes", "こんにちは", 800, 0.05, false},
		{"quiet real speech passes", "meeting at noon", 3000, 0.003, false},
		{"hiragana filler variant", "おつかれさまでした", 500, 0.02, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsLikelyHallucination(tc.text, tc.durationMs, tc.rms))
		})
	}
}

func TestNormalizeTranscript(t *testing.T) {
	assert.Equal(t, "お疲れ様でした", normalizeTranscript(" お疲れ様でした。！? "))
	assert.Equal(t, "helloworld", normalizeTranscript("hello world!"))
}

func TestDetectLanguageLocal(t *testing.T) {
	assert.Equal(t, "ja", DetectLanguageLocal("今日はいい天気ですね"))
	assert.Equal(t, "ja", DetectLanguageLocal("カタカナ"))
	assert.Equal(t, "en", DetectLanguageLocal("hello there"))
	assert.Equal(t, "en", DetectLanguageLocal(""))
	// mostly-ascii text with a stray kanji stays English
	assert.Equal(t, "en", DetectLanguageLocal("the character 水 means water in context"))
}
