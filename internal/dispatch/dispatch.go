// Package dispatch implements the server-side dispatch pipeline.
//
// The dispatcher receives requests from transports and runs each through
// transcribe → intent → reply → optional speech. The sender always receives
// the result on the transport that delivered the request.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/nadzzz/pathlight/internal/action"
	"github.com/nadzzz/pathlight/internal/apierror"
	"github.com/nadzzz/pathlight/internal/intent"
	"github.com/nadzzz/pathlight/internal/interpreter"
	"github.com/nadzzz/pathlight/internal/message"
	"github.com/nadzzz/pathlight/internal/metrics"
	"github.com/nadzzz/pathlight/internal/tts"
)

// NoSpeechReply is returned when the utterance contained no recognizable speech.
const NoSpeechReply = "I didn't catch that. Please try again."

// HelpReply lists the pilot commands.
const HelpReply = "You can say: repeat that, speech on, speech off, volume up, volume down, " +
	"volume to a percentage, voice followed by a name, or feedback followed by your note."

// Intents turns a transcript into at most one pilot action.
type Intents interface {
	Interpret(ctx context.Context, transcript, requestID string) *action.Action
}

// Dispatcher is the central pipeline.
type Dispatcher struct {
	interpreter interpreter.Interpreter
	intents     Intents
	synthesizer tts.Synthesizer // nil if TTS is disabled
}

// New creates a Dispatcher. synthesizer may be nil.
func New(interp interpreter.Interpreter, intents Intents, synthesizer tts.Synthesizer) *Dispatcher {
	return &Dispatcher{
		interpreter: interp,
		intents:     intents,
		synthesizer: synthesizer,
	}
}

// Validate checks the audio part of msg. Transports call it before reading
// further; Handle calls it again so every transport gets the same rules.
func Validate(msg *message.Message) error {
	if !msg.HasAudio() {
		return apierror.Input(http.StatusBadRequest, "missing audio file")
	}
	if len(msg.Audio) > message.MaxAudioBytes {
		return apierror.Input(http.StatusRequestEntityTooLarge, "audio file too large")
	}
	if msg.Filename != "" && !message.AllowedExtension(msg.Filename) {
		return apierror.Input(http.StatusUnsupportedMediaType, "unsupported audio format")
	}
	return nil
}

// Handle processes a single request through the full pipeline.
// This function is passed as the transport.Handler to each transport.
func (d *Dispatcher) Handle(ctx context.Context, msg *message.Message) (*message.DispatchResult, error) {
	start := time.Now()
	msg.ApplyDefaults()
	logger := slog.With("request_id", msg.ID)

	if err := Validate(msg); err != nil {
		return nil, err
	}

	filename := msg.Filename
	if filename == "" {
		filename = "speech" + interpreter.ExtFromContentType(msg.ContentType)
	}

	// Step 1: Transcribe.
	logger.Debug("transcribing audio", "filename", filename, "bytes", len(msg.Audio))
	tr, err := d.interpreter.Transcribe(ctx, msg.Audio, filename, interpreter.TranscribeOpts{})
	if err != nil {
		logger.Error("transcription failed", "error", err)
		return nil, fmt.Errorf("transcribing: %w", err)
	}

	result := &message.DispatchResult{Transcript: strings.TrimSpace(tr.Text)}
	if result.Transcript == "" {
		result.Transcript = intent.NoSpeech
		result.Reply = NoSpeechReply
		d.speak(ctx, logger, msg, result, tr.Language)
		logger.Info("dispatch complete", "no_speech", true, "duration", time.Since(start))
		return result, nil
	}

	// Step 2: Pilot action.
	act := d.intents.Interpret(ctx, result.Transcript, msg.ID)
	result.Action = act
	if act != nil {
		metrics.RecordAction(string(act.Name))
		logger.Info("pilot action", "action", act.Name)
	}

	// Step 3: Reply text.
	if reply, ok := CannedReply(act); ok {
		result.Reply = reply
	} else {
		reply, err := d.interpreter.Reply(ctx, result.Transcript, interpreter.ReplyOpts{
			Mode:     msg.Mode,
			Language: tr.Language,
		})
		if err != nil {
			logger.Error("reply failed", "error", err)
			return nil, fmt.Errorf("generating reply: %w", err)
		}
		result.Reply = reply
	}

	// Step 4: Speech. repeat_last replays the client's cached clip instead.
	if act == nil || act.Name != action.RepeatLast {
		d.speak(ctx, logger, msg, result, tr.Language)
	}

	logger.Info("dispatch complete", "duration", time.Since(start), "has_audio", result.AudioB64 != "")
	return result, nil
}

// speak attaches synthesized reply audio. Failure degrades to text only.
func (d *Dispatcher) speak(ctx context.Context, logger *slog.Logger, msg *message.Message, result *message.DispatchResult, lang string) {
	if !msg.TTS || d.synthesizer == nil || result.Reply == "" {
		return
	}
	res, err := d.synthesizer.Synthesize(ctx, result.Reply, tts.Opts{Voice: msg.Voice, Language: lang})
	if err != nil {
		metrics.RecordSynthesisFailure()
		logger.Warn("TTS synthesis failed, continuing without audio", "backend", d.synthesizer.Name(), "error", err)
		return
	}
	result.SetAudio(res.Audio, res.MIME)
}

// CannedReply returns the fixed confirmation for a pilot action. Requests
// without an action (or with an unknown one) get an interpreter reply.
func CannedReply(act *action.Action) (string, bool) {
	if act == nil {
		return "", false
	}
	switch act.Name {
	case action.RepeatLast:
		return "Repeating the last reply.", true
	case action.Help:
		return HelpReply, true
	case action.SetTTS:
		if on, _ := act.Bool(action.ArgEnabled); on {
			return "Speech on.", true
		}
		return "Speech off.", true
	case action.SetVoice:
		voice, _ := act.Str(action.ArgVoice)
		return fmt.Sprintf("Voice set to %s.", voice), true
	case action.AdjustVolume:
		if delta, _ := act.Number(action.ArgDelta); delta < 0 {
			return "Volume down.", true
		}
		return "Volume up.", true
	case action.SetVolume:
		v, _ := act.Number(action.ArgValue)
		return fmt.Sprintf("Volume set to %d percent.", int(math.Round(v*100))), true
	case action.SaveFeedback:
		return "Thanks, your feedback was saved.", true
	default:
		return "", false
	}
}
