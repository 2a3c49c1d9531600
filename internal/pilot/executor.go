package pilot

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/nadzzz/pathlight/internal/action"
	"github.com/nadzzz/pathlight/internal/playback"
)

// RepeatDelay is the short pause before a repeated clip plays.
const RepeatDelay = 200 * time.Millisecond

// NoteSaver persists feedback notes captured on the pilot.
type NoteSaver interface {
	SaveNote(ctx context.Context, note string) error
}

// Audio is the slice of the playback sequencer the executor drives.
type Audio interface {
	Last() (playback.Clip, bool)
	PlayDelayed(ctx context.Context, clip playback.Clip, delay time.Duration)
}

// Effect describes what Apply changed.
type Effect struct {
	Action   action.Kind
	Applied  bool
	Replayed bool
	Volume   float64 // master volume after the action
	Note     string  // saved note, if any
}

// Executor applies pilot actions to a State.
type Executor struct {
	state *State
	notes NoteSaver
	audio Audio
}

// NewExecutor creates an executor. notes and audio may be nil; the actions
// that need them become no-ops.
func NewExecutor(state *State, notes NoteSaver, audio Audio) *Executor {
	return &Executor{state: state, notes: notes, audio: audio}
}

// State returns the executor's state.
func (e *Executor) State() *State { return e.state }

// Apply executes act. Unknown or malformed actions are logged and ignored;
// Apply never fails.
func (e *Executor) Apply(ctx context.Context, act *action.Action, reply string) Effect {
	if act == nil {
		return Effect{Volume: e.state.Snapshot().Volume}
	}
	eff := Effect{Action: act.Name}
	log := slog.With("action", act.Name)

	switch act.Name {
	case action.RepeatLast:
		if e.audio == nil {
			break
		}
		clip, ok := e.audio.Last()
		if !ok {
			log.Debug("nothing to repeat")
			break
		}
		e.audio.PlayDelayed(ctx, clip, RepeatDelay)
		eff.Applied, eff.Replayed = true, true

	case action.Help:
		// The reply text carries the explanation.
		eff.Applied = true

	case action.SetTTS:
		enabled, ok := act.Bool(action.ArgEnabled)
		if !ok {
			log.Warn("ignoring malformed action", "args", act.Args)
			break
		}
		e.state.SetServerTTS(enabled)
		eff.Applied = true

	case action.SetVoice:
		voice, ok := act.Str(action.ArgVoice)
		voice = strings.TrimSpace(voice)
		if !ok || voice == "" {
			log.Warn("ignoring malformed action", "args", act.Args)
			break
		}
		e.state.SetVoice(voice)
		eff.Applied = true

	case action.AdjustVolume:
		delta, ok := act.Number(action.ArgDelta)
		if !ok {
			log.Warn("ignoring malformed action", "args", act.Args)
			break
		}
		e.state.AdjustVolume(delta)
		eff.Applied = true

	case action.SetVolume:
		value, ok := act.Number(action.ArgValue)
		if !ok {
			log.Warn("ignoring malformed action", "args", act.Args)
			break
		}
		e.state.SetVolume(value)
		eff.Applied = true

	case action.SaveFeedback:
		note, _ := act.Str(action.ArgNote)
		note = strings.TrimSpace(note)
		if note == "" {
			note = strings.TrimSpace(reply)
		}
		if note == "" || e.notes == nil {
			break
		}
		if err := e.notes.SaveNote(ctx, note); err != nil {
			log.Warn("saving feedback note failed", "error", err)
			break
		}
		eff.Applied = true
		eff.Note = note

	default:
		log.Info("ignoring unknown action", "args", act.Args)
	}

	eff.Volume = e.state.Snapshot().Volume
	if eff.Applied {
		log.Debug("action applied", "volume", eff.Volume)
	}
	return eff
}
