// Package piper implements tts.Synthesizer against a Piper server speaking
// the Wyoming protocol (linuxserver/piper listens on TCP 10200).
//
// Pilot voice names are mapped to Piper models through the configured
// voices table, which may be keyed by voice name or by language.
package piper

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/nadzzz/pathlight/internal/config"
	"github.com/nadzzz/pathlight/internal/tts"
)

var defaultModels = map[string]string{
	"en":      "en_US-lessac-medium",
	"fr":      "fr_FR-siwis-medium",
	"es":      "es_ES-mls_10246-low",
	"de":      "de_DE-thorsten-medium",
	"nova":    "en_US-amy-medium",
	"shimmer": "en_US-kristin-medium",
	"alloy":   "en_US-lessac-medium",
	"echo":    "en_US-ryan-medium",
	"fable":   "en_GB-alan-medium",
	"onyx":    "en_US-joe-medium",
}

// Synthesizer dials one Wyoming connection per request.
type Synthesizer struct {
	endpoint  string
	endpoints map[string]string
	models    map[string]string
	timeout   time.Duration
}

// New creates a Piper synthesizer from config.
func New(cfg config.PiperConfig) *Synthesizer {
	models := make(map[string]string, len(defaultModels)+len(cfg.Voices))
	for k, v := range defaultModels {
		models[k] = v
	}
	for k, v := range cfg.Voices {
		models[strings.ToLower(k)] = v
	}
	endpoints := make(map[string]string, len(cfg.Endpoints))
	for lang, ep := range cfg.Endpoints {
		endpoints[lang] = hostPort(ep)
	}
	return &Synthesizer{
		endpoint:  hostPort(cfg.Endpoint),
		endpoints: endpoints,
		models:    models,
		timeout:   30 * time.Second,
	}
}

func hostPort(ep string) string {
	for _, scheme := range []string{"tcp://", "http://"} {
		ep = strings.TrimPrefix(ep, scheme)
	}
	return ep
}

// Name returns the backend identifier.
func (s *Synthesizer) Name() string { return "piper" }

// model resolves voice first, then language, then English.
func (s *Synthesizer) model(opts tts.Opts) string {
	if m, ok := s.models[strings.ToLower(opts.Voice)]; ok {
		return m
	}
	if m, ok := s.models[opts.Language]; ok {
		return m
	}
	return s.models["en"]
}

// Synthesize returns WAV audio for text.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.Opts) (*tts.Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty text for synthesis")
	}
	endpoint := s.endpoints[opts.Language]
	if endpoint == "" {
		endpoint = s.endpoint
	}
	if endpoint == "" {
		return nil, fmt.Errorf("no piper endpoint configured for language %q", opts.Language)
	}
	model := s.model(opts)

	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return nil, fmt.Errorf("connecting to piper: %w", err)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(s.timeout)
	}
	_ = conn.SetDeadline(deadline)

	req := event{Type: "synthesize", Data: map[string]any{
		"text":  text,
		"voice": map[string]any{"name": model},
	}}
	if err := writeEvent(conn, req, nil); err != nil {
		return nil, fmt.Errorf("sending synthesize event: %w", err)
	}

	r := bufio.NewReader(conn)
	var (
		pcm                   bytes.Buffer
		rate, channels, width = 22050, 1, 2
	)
	for {
		e, payload, err := readEvent(r)
		if err != nil {
			return nil, fmt.Errorf("reading piper event: %w", err)
		}
		switch e.Type {
		case "audio-start":
			rate = e.number("rate", rate)
			channels = e.number("channels", channels)
			width = e.number("width", width)
		case "audio-chunk":
			pcm.Write(payload)
		case "audio-stop":
			slog.Debug("piper synthesis complete", "model", model, "pcm_bytes", pcm.Len())
			return &tts.Result{Audio: wav(pcm.Bytes(), rate, channels, width), MIME: "audio/wav"}, nil
		case "error":
			msg, _ := e.Data["text"].(string)
			if msg == "" {
				msg = "unknown error"
			}
			return nil, fmt.Errorf("piper error: %s", msg)
		}
	}
}

// Close is a no-op; connections are per request.
func (s *Synthesizer) Close() error { return nil }
