// Package session runs one pilot utterance end to end: record, dispatch,
// apply the returned action, then play the reply.
//
// A failed dispatch never reaches the executor, and an action always takes
// effect before the reply audio it came with is scheduled.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nadzzz/pathlight/internal/apierror"
	"github.com/nadzzz/pathlight/internal/client"
	"github.com/nadzzz/pathlight/internal/pilot"
	"github.com/nadzzz/pathlight/internal/playback"
)

// Status lines.
const (
	StatusRecording = "Recording…"
	StatusUploading = "Uploading…"
	StatusWaking    = "Waking server…"
	StatusDone      = "Done"
)

// Dispatcher sends one utterance to the server.
type Dispatcher interface {
	Send(ctx context.Context, req client.Request) (*client.Result, error)
}

// Audio schedules reply playback.
type Audio interface {
	PlayDelayed(ctx context.Context, clip playback.Clip, delay time.Duration)
	Stop()
}

// Options configures a Session.
type Options struct {
	Dispatcher Dispatcher
	Executor   *pilot.Executor
	Audio      Audio
	Mode       string

	// Status receives user-facing status lines. A screen reader announces
	// them, which is why reply audio is delayed.
	Status func(string)
}

// Outcome is the result of one utterance.
type Outcome struct {
	Result *client.Result
	Effect pilot.Effect
}

// Session runs utterances one at a time.
type Session struct {
	dispatcher Dispatcher
	exec       *pilot.Executor
	audio      Audio
	mode       string
	status     func(string)
}

// New creates a session.
func New(opts Options) *Session {
	status := opts.Status
	if status == nil {
		status = func(string) {}
	}
	return &Session{
		dispatcher: opts.Dispatcher,
		exec:       opts.Executor,
		audio:      opts.Audio,
		mode:       opts.Mode,
		status:     status,
	}
}

// OnClientState maps orchestrator transitions to status lines. Wire it into
// client.Options.OnState.
func (s *Session) OnClientState(st client.State, attempt int) {
	switch st {
	case client.Uploading:
		s.status(StatusUploading)
	case client.WaitingRetry:
		s.status(StatusWaking)
	case client.Done:
		s.status(StatusDone)
	}
}

// Run records one utterance with rec and carries it through dispatch,
// action execution and playback. Dispatch failures are returned after the
// matching status line has been emitted; local state is left untouched.
func (s *Session) Run(ctx context.Context, rec Recorder) (*Outcome, error) {
	state := s.exec.State()
	if err := state.BeginRecording(); err != nil {
		return nil, err
	}
	s.status(StatusRecording)
	recording, err := rec.Record(ctx)
	state.EndRecording()
	if err != nil {
		s.status("Recording error: " + err.Error())
		return nil, fmt.Errorf("recording: %w", err)
	}
	return s.Dispatch(ctx, recording)
}

// Dispatch sends an already recorded utterance.
func (s *Session) Dispatch(ctx context.Context, rec Recording) (*Outcome, error) {
	snap := s.exec.State().Snapshot()

	// A new utterance supersedes whatever reply is still pending.
	if s.audio != nil {
		s.audio.Stop()
	}

	res, err := s.dispatcher.Send(ctx, client.Request{
		Audio:    rec.Audio,
		Filename: rec.Filename,
		Mode:     s.mode,
		Voice:    snap.Voice,
		TTS:      snap.ServerTTS,
	})
	if err != nil {
		s.status(FailureStatus(err))
		return nil, err
	}

	eff := s.exec.Apply(ctx, res.Action, res.Reply)
	slog.Info("dispatch complete", "transcript", res.Transcript, "action", eff.Action, "applied", eff.Applied, "audio", res.HasAudio())

	if res.HasAudio() && s.audio != nil && !eff.Replayed {
		s.audio.PlayDelayed(ctx, playback.Clip{Data: res.Audio, MIME: res.AudioMIME}, snap.PlaybackDelay)
	}
	return &Outcome{Result: res, Effect: eff}, nil
}

// FailureStatus renders a dispatch failure as a status line.
func FailureStatus(err error) string {
	if apierror.Is(err, apierror.KindBusy) {
		return apierror.BusyMessage
	}
	if errors.Is(err, context.Canceled) {
		return "Dispatch cancelled"
	}
	return "Dispatch error: " + err.Error()
}
