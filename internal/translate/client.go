// Package translate implements pipeline.Translator against a DeepL-style
// HTTP translation API.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/discord-voice-interp/internal/pipeline"
)

// maxInputLen caps how much text goes into one translation request.
// Utterance transcripts are short; anything past this is noise.
const maxInputLen = 2000

// Client translates text via the /v2/translate endpoint. The client makes
// exactly one attempt per call and classifies failures with the pipeline
// sentinels; the dispatcher owns the retry policy.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type translateResponse struct {
	Translations []struct {
		Text string `json:"text"`
	} `json:"translations"`
}

// Translate implements pipeline.Translator. Failures carry one of the
// pipeline sentinel errors: 429 is rate limiting, 456 is exhausted quota,
// 5xx and network errors are transient, and any other non-200 is a bad
// request.
func (c *Client) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	text = sanitizeInput(text)
	if text == "" {
		return "", nil
	}

	form := url.Values{}
	form.Set("text", text)
	form.Set("target_lang", mapLanguageCode(targetLang, true))
	if src := mapLanguageCode(sourceLang, false); src != "" {
		form.Set("source_lang", src)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/translate", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", pipeline.ErrBadRequest, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "DeepL-Auth-Key "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", pipeline.ErrTransientUnavailable, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("%w: status 429", pipeline.ErrRateLimited)
	case resp.StatusCode == 456:
		return "", fmt.Errorf("%w: status 456", pipeline.ErrQuotaExceeded)
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: status %d", pipeline.ErrTransientUnavailable, resp.StatusCode)
	default:
		return "", fmt.Errorf("%w: status %d: %s", pipeline.ErrBadRequest, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tr translateResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", pipeline.ErrTransientUnavailable, err)
	}
	if len(tr.Translations) == 0 {
		return "", fmt.Errorf("%w: empty translations", pipeline.ErrTransientUnavailable)
	}
	return tr.Translations[0].Text, nil
}

// sanitizeInput strips control characters and caps length. The cap cuts at
// a rune boundary so multi-byte text is never split mid-character.
func sanitizeInput(text string) string {
	var b strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' {
			continue
		}
		if b.Len()+len(string(r)) > maxInputLen {
			break
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// mapLanguageCode converts internal short codes to the API's codes. The API
// requires a regional variant for English targets but rejects one for
// English sources.
func mapLanguageCode(code string, target bool) string {
	switch strings.ToLower(code) {
	case "ja":
		return "JA"
	case "ko":
		return "KO"
	case "en":
		if target {
			return "EN-US"
		}
		return "EN"
	case "":
		return ""
	default:
		return strings.ToUpper(code)
	}
}
