// PathLight is the voice dispatch daemon. It transcribes uploaded speech,
// extracts pilot actions, replies with text and optional synthesized audio,
// and keeps a bounded log of spoken feedback.
//
// Usage:
//
//	pathlight [flags]
//	pathlight --config /path/to/pathlight.yaml
//
//	@title			PathLight Dispatch API
//	@version		1.0
//	@description	Voice dispatch: speech in, reply text, optional audio and a pilot action out.
//	@BasePath		/
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/nadzzz/pathlight/internal/config"
	"github.com/nadzzz/pathlight/internal/dispatch"
	"github.com/nadzzz/pathlight/internal/feedback"
	"github.com/nadzzz/pathlight/internal/health"
	"github.com/nadzzz/pathlight/internal/intent"
	"github.com/nadzzz/pathlight/internal/interpreter"
	localinterp "github.com/nadzzz/pathlight/internal/interpreter/local"
	openaiinterp "github.com/nadzzz/pathlight/internal/interpreter/openai"
	"github.com/nadzzz/pathlight/internal/transport"
	grpctransport "github.com/nadzzz/pathlight/internal/transport/grpc"
	httptransport "github.com/nadzzz/pathlight/internal/transport/http"
	natstransport "github.com/nadzzz/pathlight/internal/transport/nats"
	"github.com/nadzzz/pathlight/internal/tts"
	openaitts "github.com/nadzzz/pathlight/internal/tts/openai"
	"github.com/nadzzz/pathlight/internal/tts/piper"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configFile := flag.String("config", "", "path to config file (e.g. configs/pathlight.yaml)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("pathlight %s\n", version)
		os.Exit(0)
	}

	if err := run(*configFile); err != nil {
		slog.Error("pathlight failed", "error", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	config.LoadDotEnv()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logCloser := config.SetupLogging(cfg.Logging)
	defer logCloser.Close()
	slog.Info("pathlight starting", "version", version)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	interp, err := newInterpreter(cfg.Interpreter)
	if err != nil {
		return err
	}
	defer interp.Close()

	synth, err := newSynthesizer(cfg)
	if err != nil {
		return err
	}
	if synth != nil {
		defer synth.Close()
	}

	// One NATS connection serves both the transport and the feedback mirror.
	var nc *nats.Conn
	if cfg.Transports.NATS.Enabled || cfg.Feedback.NATS.Enabled {
		nc, err = nats.Connect(cfg.Transports.NATS.URL, nats.Name("pathlight"))
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer nc.Close()
		slog.Info("connected to NATS", "url", cfg.Transports.NATS.URL)
	}

	store, closeStore, err := newFeedbackStore(cfg.Feedback, nc)
	if err != nil {
		return err
	}
	defer closeStore()

	parser := intent.NewParser(intent.DefaultGrammar(), store)
	dispatcher := dispatch.New(interp, parser, synth)
	reads := transport.NewFeedback(store, feedback.NewGate(cfg.Feedback.Token))

	var transports []transport.Transport
	if cfg.Transports.HTTP.Enabled {
		transports = append(transports, httptransport.New(cfg.Transports.HTTP, reads))
	}
	if cfg.Transports.GRPC.Enabled {
		transports = append(transports, grpctransport.New(cfg.Transports.GRPC.Port, reads))
	}
	if cfg.Transports.NATS.Enabled {
		transports = append(transports, natstransport.New(nc, cfg.Transports.NATS.Subject, cfg.Transports.NATS.Queue))
	}
	if len(transports) == 0 {
		return fmt.Errorf("no transports enabled, enable at least one in config")
	}

	healthServer := health.New(cfg.Server.HealthPort)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return healthServer.ListenAndServe(gctx)
	})
	for _, t := range transports {
		g.Go(func() error {
			slog.Info("starting transport", "name", t.Name())
			if err := t.Listen(gctx, dispatcher.Handle); err != nil {
				return fmt.Errorf("%s transport: %w", t.Name(), err)
			}
			return nil
		})
	}

	healthServer.SetReady(true)
	slog.Info("pathlight ready",
		"transports", len(transports),
		"health_port", cfg.Server.HealthPort,
		"feedback_capacity", store.Capacity())

	<-gctx.Done()
	healthServer.SetReady(false)
	slog.Info("shutting down, draining transports")

	for _, t := range transports {
		if err := t.Close(); err != nil {
			slog.Error("transport close error", "name", t.Name(), "error", err)
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("pathlight stopped")
	return nil
}

func newInterpreter(cfg config.InterpreterConfig) (interpreter.Interpreter, error) {
	switch cfg.Backend {
	case "openai":
		slog.Info("using OpenAI interpreter",
			"transcription_model", cfg.OpenAI.TranscriptionModel,
			"completion_model", cfg.OpenAI.CompletionModel)
		return openaiinterp.New(cfg.OpenAI), nil
	case "local":
		slog.Info("using local interpreter",
			"whisper", cfg.Local.WhisperEndpoint,
			"llm", cfg.Local.LLMEndpoint)
		return localinterp.New(cfg.Local), nil
	default:
		return nil, fmt.Errorf("unknown interpreter backend %q", cfg.Backend)
	}
}

// newSynthesizer returns nil when speech synthesis is disabled.
func newSynthesizer(cfg *config.Config) (tts.Synthesizer, error) {
	if !cfg.TTS.Enabled {
		slog.Info("speech synthesis disabled")
		return nil, nil
	}
	switch cfg.TTS.Backend {
	case "openai":
		slog.Info("using OpenAI speech", "model", cfg.TTS.OpenAI.Model, "format", cfg.TTS.OpenAI.Format)
		return openaitts.New(cfg.Interpreter.OpenAI, cfg.TTS.OpenAI), nil
	case "piper":
		slog.Info("using Piper speech", "endpoint", cfg.TTS.Piper.Endpoint)
		return piper.New(cfg.TTS.Piper), nil
	default:
		return nil, fmt.Errorf("unknown tts backend %q", cfg.TTS.Backend)
	}
}

// newFeedbackStore builds the store and its mirrors, restoring the JSON Lines
// log when one is configured.
func newFeedbackStore(cfg config.FeedbackConfig, nc *nats.Conn) (*feedback.Store, func(), error) {
	var mirrors []feedback.Mirror
	closers := []func(){}
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	var restored []feedback.Item
	if cfg.Path != "" {
		items, err := feedback.LoadFile(cfg.Path)
		if err != nil {
			slog.Warn("feedback log partially restored", "path", cfg.Path, "error", err)
		}
		restored = items
		mirrors = append(mirrors, feedback.NewFileMirror(cfg.Path))
	}

	if cfg.Redis.Enabled {
		rm, err := feedback.NewRedisMirror(cfg.Redis.URL, cfg.Redis.Stream, cfg.Redis.MaxLen)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("feedback redis mirror: %w", err)
		}
		closers = append(closers, func() { _ = rm.Close() })
		mirrors = append(mirrors, rm)
	}

	if cfg.NATS.Enabled && nc != nil {
		mirrors = append(mirrors, feedback.NewNATSMirror(nc, cfg.NATS.Subject))
	}

	store := feedback.NewStore(cfg.Capacity, feedback.Combine(mirrors...))
	if len(restored) > 0 {
		store.Restore(restored)
		slog.Info("feedback log restored", "path", cfg.Path, "items", store.Len())
	}
	return store, cleanup, nil
}
