package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	slogmulti "github.com/samber/slog-multi"
)

// LoadDotEnv loads a .env file from the working directory when present.
// Variables already set in the environment win.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogHandler builds the handler for cfg writing to out. When cfg.File is
// set, records are also appended to that file as JSON. The returned closer
// releases the file.
func NewLogHandler(cfg LoggingConfig, out io.Writer) (slog.Handler, io.Closer, error) {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	if cfg.File == "" {
		return handler, io.NopCloser(nil), nil
	}

	if dir := filepath.Dir(cfg.File); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return slogmulti.Fanout(handler, slog.NewJSONHandler(f, opts)), f, nil
}

// SetupLogging configures the global slog logger based on config.
// A log file that cannot be opened is reported and skipped.
func SetupLogging(cfg LoggingConfig) io.Closer {
	handler, closer, err := NewLogHandler(cfg, os.Stdout)
	if err != nil {
		fileless := cfg
		fileless.File = ""
		handler, closer, _ = NewLogHandler(fileless, os.Stdout)
		slog.SetDefault(slog.New(handler))
		slog.Warn("log file disabled", "path", cfg.File, "error", err)
		return closer
	}
	slog.SetDefault(slog.New(handler))
	return closer
}
