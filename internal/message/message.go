// Package message defines the data types flowing through the dispatch pipeline.
package message

import (
	"encoding/base64"
	"path/filepath"
	"strings"
	"time"

	"github.com/nadzzz/pathlight/internal/action"
)

// Request defaults.
const (
	DefaultMode  = "talk"
	DefaultVoice = "nova"
)

// MaxAudioBytes is the upload size limit for one utterance.
const MaxAudioBytes = 25 << 20

// AllowedExtensions lists the accepted audio file extensions.
var AllowedExtensions = []string{".m4a", ".mp3", ".wav", ".webm", ".aac"}

// Message represents one dispatch request from any transport.
type Message struct {
	// ID is a unique identifier for this request (UUID).
	ID string `json:"id"`

	// Mode selects the reply persona (e.g., "talk", "pathlight_dispatch_v1").
	Mode string `json:"mode"`

	// Voice is the TTS voice requested by the client.
	Voice string `json:"voice"`

	// TTS asks for synthesized reply audio.
	TTS bool `json:"tts"`

	// Audio is the recorded utterance.
	Audio []byte `json:"audio,omitempty"`

	// Filename is the uploaded file name; its extension identifies the format.
	Filename string `json:"filename,omitempty"`

	// ContentType is the MIME type of the audio (e.g., "audio/mp4").
	ContentType string `json:"content_type,omitempty"`

	// Timestamp is when the request was received.
	Timestamp time.Time `json:"timestamp"`
}

// HasAudio returns true if the message contains an audio payload.
func (m *Message) HasAudio() bool {
	return len(m.Audio) > 0
}

// ApplyDefaults fills unset mode and voice.
func (m *Message) ApplyDefaults() {
	if strings.TrimSpace(m.Mode) == "" {
		m.Mode = DefaultMode
	}
	if strings.TrimSpace(m.Voice) == "" {
		m.Voice = DefaultVoice
	}
}

// AllowedExtension reports whether filename has an accepted audio extension.
func AllowedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, a := range AllowedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

// DispatchResult is the reply to one dispatch request.
type DispatchResult struct {
	// Transcript is the recognized speech, or the no-speech sentinel.
	Transcript string `json:"transcript"`

	// Reply is the text answer.
	Reply string `json:"reply"`

	// AudioB64 is the synthesized reply as base64. Empty when TTS is off or failed.
	AudioB64 string `json:"audio_b64,omitempty"`

	// AudioMIME is the MIME type of AudioB64 (e.g., "audio/mpeg").
	AudioMIME string `json:"audio_mime,omitempty"`

	// Action is the pilot action extracted from the transcript, if any.
	Action *action.Action `json:"action,omitempty"`
}

// SetAudio base64-encodes raw audio bytes into AudioB64.
func (r *DispatchResult) SetAudio(audio []byte, mime string) {
	if len(audio) > 0 {
		r.AudioB64 = base64.StdEncoding.EncodeToString(audio)
		r.AudioMIME = mime
	}
}

// AudioBytes decodes AudioB64. It returns nil if there is no audio or the
// payload is not valid base64.
func (r *DispatchResult) AudioBytes() ([]byte, error) {
	if r.AudioB64 == "" {
		return nil, nil
	}
	b, err := base64.StdEncoding.DecodeString(r.AudioB64)
	if err != nil {
		return nil, err
	}
	return b, nil
}
