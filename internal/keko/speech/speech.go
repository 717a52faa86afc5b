// Package speech adapts the external speech-synthesis backend. The reply
// text goes in, playback-ready MP3 bytes come out; there is no silent
// degradation — a failed synthesis is an error, never empty audio.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.openai.com/v1"

// DefaultVoice is the voice identity used when none is configured.
const DefaultVoice = "onyx"

// MimeType is the container type of the synthesized audio.
const MimeType = "audio/mpeg"

// Config configures the speech gateway.
type Config struct {
	// APIKey is the bearer token for the API.
	APIKey string
	// BaseURL overrides the API endpoint. Defaults to the public OpenAI API.
	BaseURL string
	// Model is the synthesis model. Defaults to "tts-1".
	Model string
	// Voice is the voice identity. Defaults to DefaultVoice.
	Voice string
	// Timeout bounds each synthesis call. Defaults to 30s.
	Timeout time.Duration
}

// Gateway invokes the /audio/speech endpoint.
type Gateway struct {
	cfg    Config
	client *http.Client
}

// New creates a Gateway from cfg, applying the documented defaults.
func New(cfg Config) *Gateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "tts-1"
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Gateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Voice returns the configured voice identity.
func (g *Gateway) Voice() string {
	return g.cfg.Voice
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize converts text to MP3 audio using the given voice. An empty
// voice uses the configured default.
func (g *Gateway) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if voice == "" {
		voice = g.cfg.Voice
	}

	body, err := json.Marshal(speechRequest{
		Model:          g.cfg.Model,
		Input:          text,
		Voice:          voice,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("speech: marshal request: %w", err)
	}

	endpoint := strings.TrimSuffix(g.cfg.BaseURL, "/") + "/audio/speech"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("speech: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("speech: backend error (status %d): %s", resp.StatusCode, msg)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("speech: read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("speech: backend returned empty audio")
	}
	return audio, nil
}
