// Package tts defines the interface for reply speech synthesis.
//
// When a dispatch asks for server TTS, the reply text is rendered to audio
// in the pilot's selected voice and returned base64-encoded alongside the
// transcript. Synthesis failures never fail the dispatch.
package tts

import (
	"context"
	"strings"
)

// Voices lists the voice names pilots can select. Backends map them onto
// their own models.
var Voices = []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}

// KnownVoice reports whether name is one of Voices.
func KnownVoice(name string) bool {
	name = strings.ToLower(name)
	for _, v := range Voices {
		if v == name {
			return true
		}
	}
	return false
}

// Opts controls synthesis.
type Opts struct {
	// Voice is the pilot-selected voice name.
	Voice string

	// Language is the ISO-639-1 code detected during transcription.
	Language string
}

// Result holds synthesized audio.
type Result struct {
	Audio []byte

	// MIME is the audio type (e.g., "audio/mpeg", "audio/wav").
	MIME string
}

// Synthesizer converts reply text to audio.
type Synthesizer interface {
	// Name returns the backend identifier (e.g., "openai", "piper").
	Name() string

	Synthesize(ctx context.Context, text string, opts Opts) (*Result, error)

	// Close releases any resources held by the synthesizer.
	Close() error
}
