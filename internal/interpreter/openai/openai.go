// Package openai implements the Interpreter interface using OpenAI's APIs.
//
// It uses the Audio Transcription API (Whisper) for speech-to-text and the
// Chat Completions API for the reply text.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/nadzzz/pathlight/internal/apierror"
	"github.com/nadzzz/pathlight/internal/config"
	"github.com/nadzzz/pathlight/internal/interpreter"
)

// DefaultBaseURL is the public OpenAI API root.
const DefaultBaseURL = "https://api.openai.com/v1"

// Interpreter uses OpenAI APIs for transcription and reply generation.
type Interpreter struct {
	apiKey             string
	baseURL            string
	transcriptionModel string
	completionModel    string
	client             *http.Client
}

// New creates a new OpenAI interpreter from config.
func New(cfg config.OpenAIConfig) *Interpreter {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Interpreter{
		apiKey:             cfg.APIKey,
		baseURL:            base,
		transcriptionModel: cfg.TranscriptionModel,
		completionModel:    cfg.CompletionModel,
		client:             &http.Client{Timeout: 60 * time.Second},
	}
}

// Name returns the backend identifier.
func (i *Interpreter) Name() string { return "openai" }

// Transcribe sends audio to the OpenAI Transcription API.
func (i *Interpreter) Transcribe(ctx context.Context, audio []byte, filename string, opts interpreter.TranscribeOpts) (*interpreter.TranscribeResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if filename == "" {
		filename = "speech.m4a"
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(audio)); err != nil {
		return nil, fmt.Errorf("writing audio: %w", err)
	}

	model := i.transcriptionModel
	if opts.Model != "" {
		model = opts.Model
	}
	_ = writer.WriteField("model", model)

	if opts.Language != "" {
		_ = writer.WriteField("language", opts.Language)
	}
	if opts.Prompt != "" {
		_ = writer.WriteField("prompt", opts.Prompt)
	}
	_ = writer.WriteField("response_format", "verbose_json")
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+i.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcription failed: %w", apierror.FromResponse(resp))
	}

	var result struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding transcription: %w", err)
	}

	lang := interpreter.NormalizeLanguage(result.Language)

	slog.Debug("transcription complete", "text_length", len(result.Text), "language", lang)
	return &interpreter.TranscribeResult{
		Text:     strings.TrimSpace(result.Text),
		Language: lang,
	}, nil
}

// Reply sends the transcript to the Chat Completions API and returns the
// assistant's answer.
func (i *Interpreter) Reply(ctx context.Context, transcript string, opts interpreter.ReplyOpts) (string, error) {
	reqBody := chatRequest{
		Model: i.completionModel,
		Messages: []chatMessage{
			{Role: "system", Content: interpreter.SystemPrompt(opts.Mode)},
			{Role: "user", Content: transcript},
		},
		Temperature: 0.4,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshalling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+i.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat failed: %w", apierror.FromResponse(resp))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from chat API")
	}

	reply := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	slog.Debug("reply complete", "reply_length", len(reply))
	return reply, nil
}

// Close is a no-op for the OpenAI interpreter.
func (i *Interpreter) Close() error { return nil }

// --- Internal types ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
