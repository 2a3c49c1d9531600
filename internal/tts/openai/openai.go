// Package openai implements tts.Synthesizer with the OpenAI speech API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nadzzz/pathlight/internal/apierror"
	"github.com/nadzzz/pathlight/internal/config"
	"github.com/nadzzz/pathlight/internal/message"
	"github.com/nadzzz/pathlight/internal/tts"
)

// DefaultBaseURL is the public OpenAI API root.
const DefaultBaseURL = "https://api.openai.com/v1"

var formatMIME = map[string]string{
	"mp3":  "audio/mpeg",
	"aac":  "audio/aac",
	"wav":  "audio/wav",
	"opus": "audio/ogg",
	"flac": "audio/flac",
}

// Synthesizer calls POST {base}/audio/speech.
type Synthesizer struct {
	apiKey  string
	baseURL string
	model   string
	format  string
	client  *http.Client
}

// New creates a synthesizer sharing the interpreter's OpenAI credentials.
func New(creds config.OpenAIConfig, cfg config.OpenAITTSConfig) *Synthesizer {
	base := strings.TrimRight(creds.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	format := strings.ToLower(cfg.Format)
	if _, ok := formatMIME[format]; !ok {
		format = "mp3"
	}
	model := cfg.Model
	if model == "" {
		model = "tts-1"
	}
	return &Synthesizer{
		apiKey:  creds.APIKey,
		baseURL: base,
		model:   model,
		format:  format,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Name returns the backend identifier.
func (s *Synthesizer) Name() string { return "openai" }

// Synthesize renders text in opts.Voice, falling back to the default voice
// for names the API does not know.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.Opts) (*tts.Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty text for synthesis")
	}
	voice := strings.ToLower(opts.Voice)
	if !tts.KnownVoice(voice) {
		voice = message.DefaultVoice
	}

	body, err := json.Marshal(speechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          voice,
		ResponseFormat: s.format,
	})
	if err != nil {
		return nil, fmt.Errorf("marshalling speech request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating speech request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("speech failed: %w", apierror.FromResponse(resp))
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, message.MaxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("reading speech audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("speech API returned no audio")
	}

	slog.Debug("speech complete", "voice", voice, "bytes", len(audio))
	return &tts.Result{Audio: audio, MIME: formatMIME[s.format]}, nil
}

// Close is a no-op.
func (s *Synthesizer) Close() error { return nil }

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}
