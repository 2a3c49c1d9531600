// Package client is the pilot-side dispatch orchestrator.
//
// A Client uploads one recorded utterance, retries exactly once after a
// gateway or cold-start failure (502, 503, 504), and decodes the reply.
// Rate limiting (429) is surfaced immediately; nothing else is retried.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	"github.com/nadzzz/pathlight/internal/action"
	"github.com/nadzzz/pathlight/internal/apierror"
	"github.com/nadzzz/pathlight/internal/message"
)

// Defaults for a dispatch exchange.
const (
	DefaultTimeout    = 45 * time.Second
	DefaultRetryDelay = 1500 * time.Millisecond
	DefaultFilename   = "speech.m4a"
)

// State is the orchestrator's position in one exchange.
type State int

const (
	Idle State = iota
	Uploading
	WaitingRetry
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Uploading:
		return "uploading"
	case WaitingRetry:
		return "waiting_retry"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Request is one recorded utterance to dispatch.
type Request struct {
	Audio    []byte
	Filename string // extension identifies the format; defaults to speech.m4a
	Mode     string
	Voice    string
	TTS      bool
}

// Result is the decoded reply.
type Result struct {
	Transcript string
	Reply      string

	// Audio is nil when the server sent none or its base64 was invalid.
	Audio     []byte
	AudioMIME string

	Action *action.Action
}

// HasAudio reports whether the reply carries playable audio.
func (r *Result) HasAudio() bool { return len(r.Audio) > 0 }

// Options configures a Client.
type Options struct {
	// Endpoint is the full POST /dispatch URL.
	Endpoint string
	Timeout  time.Duration

	// RetryDelay is the pause before the single retry. Zero selects
	// DefaultRetryDelay; a negative value retries immediately.
	RetryDelay time.Duration

	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client

	// OnState observes every state transition. attempt counts from 1.
	OnState func(s State, attempt int)
}

// Client performs dispatch exchanges. One Client may be reused; callers
// keep at most one Send in flight.
type Client struct {
	endpoint   string
	http       *http.Client
	retryDelay time.Duration
	onState    func(State, int)
}

// New creates a client.
func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	delay := opts.RetryDelay
	if delay < 0 {
		delay = 0
	} else if delay == 0 {
		delay = DefaultRetryDelay
	}
	onState := opts.OnState
	if onState == nil {
		onState = func(State, int) {}
	}
	return &Client{endpoint: opts.Endpoint, http: hc, retryDelay: delay, onState: onState}
}

// Send uploads req and returns the decoded reply. A 502/503/504 response is
// retried once, with the identical body, after the retry delay.
func (c *Client) Send(ctx context.Context, req Request) (*Result, error) {
	body, contentType, err := encodeForm(req)
	if err != nil {
		c.onState(Failed, 0)
		return nil, err
	}

	attempt := 1
	c.onState(Uploading, attempt)
	res, err := c.post(ctx, body, contentType)
	if err != nil && apierror.Is(err, apierror.KindUnavailable) {
		slog.Info("dispatch unavailable, retrying once", "delay", c.retryDelay, "error", err)
		c.onState(WaitingRetry, attempt)
		select {
		case <-time.After(c.retryDelay):
		case <-ctx.Done():
			c.onState(Failed, attempt)
			return nil, fmt.Errorf("waiting to retry dispatch: %w", ctx.Err())
		}
		attempt++
		c.onState(Uploading, attempt)
		res, err = c.post(ctx, body, contentType)
	}
	if err != nil {
		c.onState(Failed, attempt)
		return nil, err
	}
	c.onState(Done, attempt)
	return res, nil
}

func (c *Client) post(ctx context.Context, body []byte, contentType string) (*Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating dispatch request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindUpstream, 0, "dispatch request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apierror.FromResponse(resp)
	}

	var wire message.DispatchResult
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, apierror.Wrap(apierror.KindDecode, resp.StatusCode, "decoding dispatch reply", err)
	}
	return decodeResult(&wire), nil
}

func decodeResult(wire *message.DispatchResult) *Result {
	res := &Result{
		Transcript: wire.Transcript,
		Reply:      wire.Reply,
		Action:     wire.Action,
	}
	audio, err := wire.AudioBytes()
	if err != nil {
		slog.Warn("discarding undecodable reply audio", "error", err)
		return res
	}
	if len(audio) > 0 {
		res.Audio = audio
		res.AudioMIME = wire.AudioMIME
	}
	return res
}

// encodeForm builds the multipart body once so a retry resends identical bytes.
func encodeForm(req Request) ([]byte, string, error) {
	filename := req.Filename
	if filename == "" {
		filename = DefaultFilename
	}
	mode := req.Mode
	if mode == "" {
		mode = message.DefaultMode
	}
	voice := req.Voice
	if voice == "" {
		voice = message.DefaultVoice
	}
	tts := "0"
	if req.TTS {
		tts = "1"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range [][2]string{{"mode", mode}, {"voice", voice}, {"tts", tts}} {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("writing %s field: %w", f[0], err)
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename=%q`, filepath.Base(filename)))
	h.Set("Content-Type", AudioContentType(filename))
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("creating audio part: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(req.Audio)); err != nil {
		return nil, "", fmt.Errorf("writing audio part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// AudioContentType maps a recording's extension to its upload MIME type.
func AudioContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".m4a":
		return "audio/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".webm":
		return "audio/webm"
	case ".aac":
		return "audio/aac"
	default:
		return "application/octet-stream"
	}
}
