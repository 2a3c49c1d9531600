// Package interpreter defines the interface for the speech and language
// provider behind a dispatch.
//
// An interpreter transcribes the recorded utterance and writes the text
// reply for transcripts that carry no pilot action. PathLight ships with two
// backends: OpenAI (cloud) and Local (self-hosted whisper + Ollama).
package interpreter

import (
	"context"
	"strings"
)

// TranscribeOpts controls transcription behavior.
type TranscribeOpts struct {
	// Language is the ISO-639-1 code (e.g., "en", "fr") to guide transcription.
	Language string

	// Prompt provides context to improve recognition of domain-specific terms.
	Prompt string

	// Model overrides the default transcription model.
	Model string
}

// TranscribeResult holds the output of transcription.
type TranscribeResult struct {
	// Text is the recognized speech. Empty when nothing was recognized.
	Text string

	// Language is the ISO-639-1 code of the detected language, if known.
	Language string
}

// ReplyOpts controls reply generation.
type ReplyOpts struct {
	// Mode selects the persona (see SystemPrompt).
	Mode string

	// Language is the detected language of the transcript.
	Language string
}

// Interpreter is the interface for transcription and reply generation.
type Interpreter interface {
	// Name returns the backend identifier (e.g., "openai", "local").
	Name() string

	// Transcribe converts audio bytes to text. filename carries the format.
	Transcribe(ctx context.Context, audio []byte, filename string, opts TranscribeOpts) (*TranscribeResult, error)

	// Reply produces the spoken/text answer for a transcript.
	Reply(ctx context.Context, transcript string, opts ReplyOpts) (string, error)

	// Close releases any resources held by the interpreter.
	Close() error
}

// SystemPrompt returns the reply persona for a dispatch mode.
func SystemPrompt(mode string) string {
	var sb strings.Builder
	switch mode {
	case "pathlight_dispatch_v1":
		sb.WriteString("You are PathLight Dispatch, the voice companion of a navigation aid used by blind and low-vision pilots.\n")
		sb.WriteString("The user is listening with a screen reader running, so keep answers to one or two short sentences.\n")
		sb.WriteString("Never describe the screen; describe actions and outcomes.\n")
	default:
		sb.WriteString("You are a concise, friendly voice assistant.\n")
		sb.WriteString("Answer in at most three short sentences suitable for speech.\n")
	}
	sb.WriteString("The user can also say: repeat that, help, speech on or off, volume up or down, volume to a percentage, voice to a name, or feedback followed by a note.\n")
	sb.WriteString("Reply in the same language the user spoke.\n")
	return sb.String()
}

// ExtFromContentType maps an audio MIME type to a file extension.
func ExtFromContentType(ct string) string {
	switch {
	case strings.Contains(ct, "wav"):
		return ".wav"
	case strings.Contains(ct, "ogg"):
		return ".ogg"
	case strings.Contains(ct, "mp3"), strings.Contains(ct, "mpeg"):
		return ".mp3"
	case strings.Contains(ct, "webm"):
		return ".webm"
	case strings.Contains(ct, "aac"):
		return ".aac"
	case strings.Contains(ct, "mp4"), strings.Contains(ct, "m4a"):
		return ".m4a"
	default:
		return ".wav"
	}
}

// NormalizeLanguage converts full language names (as returned by Whisper)
// to ISO-639-1 codes.
func NormalizeLanguage(lang string) string {
	if len(lang) == 2 {
		return strings.ToLower(lang)
	}
	known := map[string]string{
		"english":    "en",
		"french":     "fr",
		"spanish":    "es",
		"german":     "de",
		"italian":    "it",
		"portuguese": "pt",
		"dutch":      "nl",
		"polish":     "pl",
		"russian":    "ru",
		"japanese":   "ja",
		"korean":     "ko",
		"chinese":    "zh",
	}
	if code, ok := known[strings.ToLower(lang)]; ok {
		return code
	}
	return strings.ToLower(lang)
}
