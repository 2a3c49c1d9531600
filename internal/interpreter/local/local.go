// Package local implements the Interpreter interface using self-hosted models.
//
// It supports any Whisper-compatible transcription endpoint (e.g., whisper.cpp
// server, faster-whisper, whisper-asr-webservice) and any chat endpoint that
// speaks Ollama's /api/generate or the OpenAI /v1/chat/completions format.
package local

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nadzzz/pathlight/internal/apierror"
	"github.com/nadzzz/pathlight/internal/config"
	"github.com/nadzzz/pathlight/internal/interpreter"
)

// Interpreter uses self-hosted models for transcription and replies.
type Interpreter struct {
	whisperEndpoint string
	whisperType     string // "openai" or "asr"
	llmEndpoint     string
	llmModel        string
	vadFilter       bool
	defaultLanguage string
	client          *http.Client
}

// New creates a new local interpreter from config.
func New(cfg config.LocalConfig) *Interpreter {
	wt := cfg.WhisperType
	if wt == "" {
		wt = "openai"
	}
	model := cfg.LLMModel
	if model == "" {
		model = "llama3"
	}
	return &Interpreter{
		whisperEndpoint: cfg.WhisperEndpoint,
		whisperType:     wt,
		llmEndpoint:     cfg.LLMEndpoint,
		llmModel:        model,
		vadFilter:       cfg.VADFilter,
		defaultLanguage: cfg.Language,
		client:          &http.Client{Timeout: 120 * time.Second},
	}
}

// Name returns the backend identifier.
func (i *Interpreter) Name() string { return "local" }

// Transcribe sends audio to the local Whisper endpoint.
// Supports two flavors:
//   - "openai": OpenAI-compatible API (whisper.cpp server, faster-whisper)
//   - "asr":    whisper-asr-webservice (POST /asr with query params)
func (i *Interpreter) Transcribe(ctx context.Context, audio []byte, filename string, opts interpreter.TranscribeOpts) (*interpreter.TranscribeResult, error) {
	field := "file"
	if i.whisperType == "asr" {
		field = "audio_file"
	}
	if filename == "" {
		filename = "speech.m4a"
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(audio)); err != nil {
		return nil, fmt.Errorf("writing audio: %w", err)
	}

	lang := opts.Language
	if lang == "" {
		lang = i.defaultLanguage
	}

	endpoint := i.whisperEndpoint
	if i.whisperType == "asr" {
		q := make(url.Values)
		q.Set("task", "transcribe")
		q.Set("output", "json")
		q.Set("encode", "true")
		if lang != "" {
			q.Set("language", lang)
		}
		if opts.Prompt != "" {
			q.Set("initial_prompt", opts.Prompt)
		}
		if i.vadFilter {
			q.Set("vad_filter", "true")
		}
		endpoint += "?" + q.Encode()
	} else {
		if opts.Model != "" {
			_ = writer.WriteField("model", opts.Model)
		}
		if lang != "" {
			_ = writer.WriteField("language", lang)
		}
		_ = writer.WriteField("response_format", "verbose_json")
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("local transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("local transcription failed: %w", apierror.FromResponse(resp))
	}

	var result struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding transcription: %w", err)
	}

	slog.Debug("local transcription complete", "flavor", i.whisperType, "text_length", len(result.Text), "language", result.Language)
	return &interpreter.TranscribeResult{
		Text:     strings.TrimSpace(result.Text),
		Language: interpreter.NormalizeLanguage(result.Language),
	}, nil
}

// Reply sends the transcript to the local LLM endpoint.
// An endpoint ending in /api/generate is spoken to in Ollama's format;
// anything else is treated as OpenAI-compatible chat completions.
func (i *Interpreter) Reply(ctx context.Context, transcript string, opts interpreter.ReplyOpts) (string, error) {
	systemPrompt := interpreter.SystemPrompt(opts.Mode)

	var reqBody map[string]any
	if strings.HasSuffix(i.llmEndpoint, "/api/generate") {
		reqBody = map[string]any{
			"model":  i.llmModel,
			"system": systemPrompt,
			"prompt": transcript,
			"stream": false,
		}
	} else {
		reqBody = map[string]any{
			"model": i.llmModel,
			"messages": []map[string]string{
				{"role": "system", "content": systemPrompt},
				{"role": "user", "content": transcript},
			},
			"temperature": 0.4,
			"stream":      false,
		}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.llmEndpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("local LLM request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("local LLM failed: %w", apierror.FromResponse(resp))
	}

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading LLM response: %w", err)
	}

	reply := strings.TrimSpace(extractContent(respData))
	if reply == "" {
		return "", fmt.Errorf("empty response from local LLM")
	}

	slog.Debug("local reply complete", "reply_length", len(reply))
	return reply, nil
}

// Close is a no-op for the local interpreter.
func (i *Interpreter) Close() error { return nil }

func extractContent(data []byte) string {
	// OpenAI-compatible: {"choices": [{"message": {"content": "..."}}]}
	var chatResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &chatResp); err == nil && len(chatResp.Choices) > 0 {
		return chatResp.Choices[0].Message.Content
	}

	// Ollama: {"response": "..."}
	var ollamaResp struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(data, &ollamaResp); err == nil && ollamaResp.Response != "" {
		return ollamaResp.Response
	}

	return string(data)
}
