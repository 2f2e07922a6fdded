// Package stt implements pipeline.Recognizer against a Whisper-compatible
// HTTP transcription endpoint.
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/discord-voice-interp/internal/logging"
	"github.com/discord-voice-interp/internal/pipeline"
	"github.com/discord-voice-interp/internal/session"
)

// recognizer input rate after downsampling.
const inputRate = 16000

// Client posts 16 kHz mono WAV audio to a Whisper-compatible /transcribe
// endpoint and parses the transcription response. Requests carry a
// correlation id and are retried with exponential backoff on server errors.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
}

// NewClient constructs a recognizer client. timeout bounds each individual
// HTTP attempt, not the whole retry loop.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: 3,
	}
}

type transcribeResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Recognize implements pipeline.Recognizer. samples are normalized mono
// floats at 16 kHz; languageHint of "" requests auto-detection.
func (c *Client) Recognize(ctx context.Context, samples []float32, languageHint string) (pipeline.RecognizeResult, error) {
	if len(samples) == 0 {
		return pipeline.RecognizeResult{}, nil
	}
	wav := session.EncodeWAV(floatToPCM(samples), inputRate, 1)
	correlationID := uuid.NewString()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * 500 * time.Millisecond
			logging.Debugw("stt: retrying request", "attempt", attempt, "backoff", backoff.String(), "correlation_id", correlationID)
			select {
			case <-ctx.Done():
				return pipeline.RecognizeResult{}, ctx.Err()
			case <-time.After(backoff):
			}
		}
		res, retryAgain, err := c.doRequest(ctx, wav, languageHint, correlationID)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !retryAgain {
			break
		}
	}
	return pipeline.RecognizeResult{}, fmt.Errorf("transcription failed after retries: %w", lastErr)
}

func (c *Client) doRequest(ctx context.Context, wav []byte, languageHint, correlationID string) (pipeline.RecognizeResult, bool, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return pipeline.RecognizeResult{}, false, err
	}
	if _, err := fw.Write(wav); err != nil {
		return pipeline.RecognizeResult{}, false, err
	}
	if languageHint != "" {
		_ = mw.WriteField("language", languageHint)
	}
	if err := mw.Close(); err != nil {
		return pipeline.RecognizeResult{}, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", body)
	if err != nil {
		return pipeline.RecognizeResult{}, false, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Correlation-ID", correlationID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network failures are worth retrying; the endpoint may be
		// restarting.
		return pipeline.RecognizeResult{}, true, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return pipeline.RecognizeResult{}, true, err
	}
	if resp.StatusCode >= 500 {
		return pipeline.RecognizeResult{}, true, fmt.Errorf("server error %d: %s", resp.StatusCode, truncate(respBody, 200))
	}
	if resp.StatusCode != http.StatusOK {
		return pipeline.RecognizeResult{}, false, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(respBody, 200))
	}

	var tr transcribeResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return pipeline.RecognizeResult{}, false, fmt.Errorf("decode response: %w", err)
	}
	return pipeline.RecognizeResult{Text: tr.Text, Language: tr.Language}, false, nil
}

// floatToPCM converts normalized floats back to 16-bit PCM with clamping.
func floatToPCM(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := s * 32767
		switch {
		case v > 32767:
			v = 32767
		case v < -32768:
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
