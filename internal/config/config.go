// Package config handles loading and validating the PathLight configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root configuration for the dispatch daemon.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Transports  TransportsConfig  `mapstructure:"transports"`
	Interpreter InterpreterConfig `mapstructure:"interpreter"`
	TTS         TTSConfig         `mapstructure:"tts"`
	Feedback    FeedbackConfig    `mapstructure:"feedback"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig holds the health check server settings.
type ServerConfig struct {
	HealthPort int `mapstructure:"health_port"`
}

// TransportsConfig holds the configuration for each transport layer.
type TransportsConfig struct {
	GRPC GRPCConfig `mapstructure:"grpc"`
	HTTP HTTPConfig `mapstructure:"http"`
	NATS NATSConfig `mapstructure:"nats"`
}

// GRPCConfig configures the gRPC transport.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`

	// MaxUploadBytes caps the audio part of POST /dispatch.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

// NATSConfig configures the NATS request/reply transport.
type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
	Queue   string `mapstructure:"queue"`
}

// InterpreterConfig selects and configures the speech/LLM backend.
type InterpreterConfig struct {
	Backend string       `mapstructure:"backend"` // "openai" or "local"
	OpenAI  OpenAIConfig `mapstructure:"openai"`
	Local   LocalConfig  `mapstructure:"local"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	APIKey             string `mapstructure:"api_key"`
	BaseURL            string `mapstructure:"base_url"`
	TranscriptionModel string `mapstructure:"transcription_model"`
	CompletionModel    string `mapstructure:"completion_model"`
}

// LocalConfig holds self-hosted model settings.
type LocalConfig struct {
	WhisperEndpoint string `mapstructure:"whisper_endpoint"`
	WhisperType     string `mapstructure:"whisper_type"` // "openai" (default) or "asr" (whisper-asr-webservice)
	LLMEndpoint     string `mapstructure:"llm_endpoint"`
	LLMModel        string `mapstructure:"llm_model"` // Ollama model name (e.g., "llama3.2:1b")
	VADFilter       bool   `mapstructure:"vad_filter"`
	Language        string `mapstructure:"language"` // ISO-639-1 default language (e.g., "en", "fr")
}

// TTSConfig selects and configures the text-to-speech backend.
type TTSConfig struct {
	Enabled bool            `mapstructure:"enabled"`
	Backend string          `mapstructure:"backend"` // "openai" or "piper"
	OpenAI  OpenAITTSConfig `mapstructure:"openai"`
	Piper   PiperConfig     `mapstructure:"piper"`
}

// OpenAITTSConfig holds OpenAI speech settings. Credentials are shared with
// the interpreter's OpenAI section.
type OpenAITTSConfig struct {
	Model  string `mapstructure:"model"`
	Format string `mapstructure:"format"` // mp3, aac, wav
}

// PiperConfig holds Piper TTS settings (Wyoming protocol).
//
// For a single Piper instance that serves all languages, set Endpoint.
// For per-language instances, set Endpoints which maps ISO-639-1 codes to
// individual Wyoming TCP endpoints. If both are set, Endpoints takes
// precedence and Endpoint is the fallback.
type PiperConfig struct {
	Endpoint  string            `mapstructure:"endpoint"`  // Default Wyoming TCP endpoint (host:port)
	Endpoints map[string]string `mapstructure:"endpoints"` // ISO-639-1 language code -> Wyoming TCP endpoint
	Voices    map[string]string `mapstructure:"voices"`    // language code or voice alias -> Piper voice model name
}

// FeedbackConfig holds the feedback store settings.
type FeedbackConfig struct {
	// Capacity bounds the in-memory log (MAX_FEEDBACK_ITEMS).
	Capacity int `mapstructure:"capacity"`

	// Token gates reads of /feedback. Empty leaves them open.
	Token string `mapstructure:"token"`

	// Path enables the JSON Lines mirror and startup restore.
	Path string `mapstructure:"path"`

	Redis RedisMirrorConfig `mapstructure:"redis"`
	NATS  NATSMirrorConfig  `mapstructure:"nats"`
}

// RedisMirrorConfig configures the Redis stream mirror.
type RedisMirrorConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Stream  string `mapstructure:"stream"`
	MaxLen  int64  `mapstructure:"max_len"`
}

// NATSMirrorConfig configures the NATS mirror. It reuses the NATS
// transport's URL.
type NATSMirrorConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Subject string `mapstructure:"subject"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
	File   string `mapstructure:"file"`   // optional extra JSON log file
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./pathlight.yaml, ./configs/pathlight.yaml, /etc/pathlight/pathlight.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("transports.grpc.enabled", false)
	v.SetDefault("transports.grpc.port", 50051)
	v.SetDefault("transports.http.enabled", true)
	v.SetDefault("transports.http.port", 8080)
	v.SetDefault("transports.http.max_upload_bytes", 25<<20)
	v.SetDefault("transports.nats.enabled", false)
	v.SetDefault("transports.nats.url", "nats://localhost:4222")
	v.SetDefault("transports.nats.subject", "pathlight.dispatch")
	v.SetDefault("transports.nats.queue", "pathlight")
	v.SetDefault("interpreter.backend", "openai")
	v.SetDefault("interpreter.openai.api_key", "${OPENAI_API_KEY}")
	v.SetDefault("interpreter.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("interpreter.openai.transcription_model", "whisper-1")
	v.SetDefault("interpreter.openai.completion_model", "gpt-4o-mini")
	v.SetDefault("interpreter.local.whisper_endpoint", "http://localhost:8000/v1/audio/transcriptions")
	v.SetDefault("interpreter.local.whisper_type", "openai")
	v.SetDefault("interpreter.local.llm_endpoint", "http://localhost:11434/api/generate")
	v.SetDefault("interpreter.local.llm_model", "llama3")
	v.SetDefault("interpreter.local.vad_filter", false)
	v.SetDefault("interpreter.local.language", "")
	v.SetDefault("tts.enabled", true)
	v.SetDefault("tts.backend", "openai")
	v.SetDefault("tts.openai.model", "tts-1")
	v.SetDefault("tts.openai.format", "mp3")
	v.SetDefault("tts.piper.endpoint", "localhost:10200")
	v.SetDefault("feedback.capacity", 200)
	v.SetDefault("feedback.token", "")
	v.SetDefault("feedback.path", "")
	v.SetDefault("feedback.redis.enabled", false)
	v.SetDefault("feedback.redis.url", "redis://localhost:6379/0")
	v.SetDefault("feedback.redis.stream", "pathlight:feedback")
	v.SetDefault("feedback.redis.max_len", 10000)
	v.SetDefault("feedback.nats.enabled", false)
	v.SetDefault("feedback.nats.subject", "pathlight.feedback")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("pathlight")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/pathlight")
	}

	// Environment variables: PATHLIGHT_SERVER_HEALTH_PORT, PATHLIGHT_FEEDBACK_TOKEN, etc.
	v.SetEnvPrefix("PATHLIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Short names used by existing deployments.
	_ = v.BindEnv("feedback.token", "PATHLIGHT_FEEDBACK_TOKEN", "FEEDBACK_TOKEN")
	_ = v.BindEnv("feedback.path", "PATHLIGHT_FEEDBACK_PATH", "FEEDBACK_PATH")
	_ = v.BindEnv("feedback.capacity", "PATHLIGHT_FEEDBACK_CAPACITY", "MAX_FEEDBACK_ITEMS")

	// Read config file (optional: env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${OPENAI_API_KEY}")
	cfg.Interpreter.OpenAI.APIKey = resolveEnvRef(cfg.Interpreter.OpenAI.APIKey)
	cfg.Feedback.Token = resolveEnvRef(cfg.Feedback.Token)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Feedback.Capacity <= 0 {
		return fmt.Errorf("feedback.capacity must be positive, got %d", c.Feedback.Capacity)
	}
	if c.Transports.HTTP.MaxUploadBytes <= 0 {
		return fmt.Errorf("transports.http.max_upload_bytes must be positive")
	}
	switch c.Interpreter.Backend {
	case "openai", "local":
	default:
		return fmt.Errorf("unknown interpreter backend %q", c.Interpreter.Backend)
	}
	if c.TTS.Enabled {
		switch c.TTS.Backend {
		case "openai", "piper":
		default:
			return fmt.Errorf("unknown tts backend %q", c.TTS.Backend)
		}
	}
	return nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		envKey := val[2 : len(val)-1]
		return os.Getenv(envKey)
	}
	return val
}
