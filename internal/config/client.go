package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ClientConfig configures the pilot-side client (pilotctl).
type ClientConfig struct {
	// Endpoint is the POST /dispatch URL.
	Endpoint string `envconfig:"ENDPOINT" default:"http://localhost:8080/dispatch"`

	Mode  string `envconfig:"MODE" default:"pathlight_dispatch_v1"`
	Voice string `envconfig:"VOICE" default:"nova"`

	// ServerTTS asks the server to synthesize the reply.
	ServerTTS bool `envconfig:"TTS" default:"true"`

	// PlaybackDelay is how long reply audio waits so the screen reader can
	// finish announcing the transcript first.
	PlaybackDelay time.Duration `envconfig:"PLAYBACK_DELAY" default:"3s"`

	Volume float64 `envconfig:"VOLUME" default:"0.5"`

	Timeout    time.Duration `envconfig:"TIMEOUT" default:"45s"`
	RetryDelay time.Duration `envconfig:"RETRY_DELAY" default:"1.5s"`

	// Player is the command used to play reply audio. "{file}", "{volume}"
	// and "{volume100}" are substituted.
	Player string `envconfig:"PLAYER" default:"ffplay -nodisp -autoexit -loglevel quiet -volume {volume100} {file}"`

	// FeedbackFile receives feedback notes captured on the pilot.
	FeedbackFile string `envconfig:"FEEDBACK_FILE" default:"pathlight-feedback.jsonl"`

	// FeedbackToken is sent with feedback reads.
	FeedbackToken string `envconfig:"FEEDBACK_TOKEN"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"warn"`
}

// LoadClient reads PILOT_* variables, after loading a .env file if present.
func LoadClient() (*ClientConfig, error) {
	LoadDotEnv()

	var cfg ClientConfig
	if err := envconfig.Process("PILOT", &cfg); err != nil {
		return nil, fmt.Errorf("loading client config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects client settings that cannot work.
func (c *ClientConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("PILOT_ENDPOINT is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("PILOT_TIMEOUT must be positive")
	}
	if c.RetryDelay < 0 || c.PlaybackDelay < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	if c.Volume < 0 || c.Volume > 1 {
		return fmt.Errorf("PILOT_VOLUME must be within [0, 1], got %v", c.Volume)
	}
	return nil
}
