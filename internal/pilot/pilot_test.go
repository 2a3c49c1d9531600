package pilot

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/pathlight/internal/action"
	"github.com/nadzzz/pathlight/internal/feedback"
	"github.com/nadzzz/pathlight/internal/playback"
)

type fakeMixer struct{ writes []float64 }

func (m *fakeMixer) SetVolume(v float64) { m.writes = append(m.writes, v) }

type fakeNotes struct {
	notes []string
	err   error
}

func (n *fakeNotes) SaveNote(_ context.Context, note string) error {
	if n.err != nil {
		return n.err
	}
	n.notes = append(n.notes, note)
	return nil
}

type fakeAudio struct {
	last   *playback.Clip
	played []playback.Clip
	delays []time.Duration
}

func (a *fakeAudio) Last() (playback.Clip, bool) {
	if a.last == nil {
		return playback.Clip{}, false
	}
	return *a.last, true
}

func (a *fakeAudio) PlayDelayed(_ context.Context, clip playback.Clip, delay time.Duration) {
	a.played = append(a.played, clip)
	a.delays = append(a.delays, delay)
}

func newExecutor(volume float64) (*Executor, *fakeMixer, *fakeNotes, *fakeAudio) {
	mixer := &fakeMixer{}
	notes := &fakeNotes{}
	audio := &fakeAudio{}
	st := NewState(Settings{ServerTTS: true, Voice: "nova", Volume: volume}, mixer)
	return NewExecutor(st, notes, audio), mixer, notes, audio
}

func TestClampVolume(t *testing.T) {
	for _, v := range []float64{-10, -0.01, 0, 0.3, 0.5, 1, 1.01, 7, math.Inf(1), math.Inf(-1), math.NaN()} {
		got := ClampVolume(v)
		assert.GreaterOrEqual(t, got, MinVolume, "v=%v", v)
		assert.LessOrEqual(t, got, MaxVolume, "v=%v", v)
		assert.Equal(t, got, ClampVolume(got), "idempotent for v=%v", v)
	}
	assert.Equal(t, 0.3, ClampVolume(0.3))
}

func TestVolumeActions(t *testing.T) {
	tests := []struct {
		name  string
		start float64
		act   *action.Action
		want  float64
	}{
		{"up", 0.5, action.New(action.AdjustVolume, action.Args{action.ArgDelta: action.Number(0.1)}), 0.6},
		{"down", 0.5, action.New(action.AdjustVolume, action.Args{action.ArgDelta: action.Number(-0.1)}), 0.4},
		{"up at max", 1, action.New(action.AdjustVolume, action.Args{action.ArgDelta: action.Number(0.1)}), 1},
		{"down at min", 0.05, action.New(action.AdjustVolume, action.Args{action.ArgDelta: action.Number(-0.1)}), 0},
		{"absolute", 0.5, action.New(action.SetVolume, action.Args{action.ArgValue: action.Number(0.3)}), 0.3},
		{"absolute over", 0.5, action.New(action.SetVolume, action.Args{action.ArgValue: action.Number(1.5)}), 1},
		{"absolute under", 0.5, action.New(action.SetVolume, action.Args{action.ArgValue: action.Number(-2)}), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, mixer, _, _ := newExecutor(tt.start)
			eff := ex.Apply(context.Background(), tt.act, "")

			assert.True(t, eff.Applied)
			assert.InDelta(t, tt.want, eff.Volume, 1e-9)
			require.NotEmpty(t, mixer.writes)
			assert.InDelta(t, tt.want, mixer.writes[len(mixer.writes)-1], 1e-9, "mixer sees the clamped volume")
		})
	}
}

func TestInitialVolumeIsClamped(t *testing.T) {
	mixer := &fakeMixer{}
	st := NewState(Settings{Volume: 3}, mixer)
	assert.Equal(t, 1.0, st.Snapshot().Volume)
	assert.Equal(t, []float64{1}, mixer.writes)
}

func TestSettingsActions(t *testing.T) {
	ex, _, _, _ := newExecutor(0.5)
	ctx := context.Background()

	eff := ex.Apply(ctx, action.New(action.SetTTS, action.Args{action.ArgEnabled: action.Bool(false)}), "Speech off.")
	assert.True(t, eff.Applied)
	assert.False(t, ex.State().Snapshot().ServerTTS)

	eff = ex.Apply(ctx, action.New(action.SetVoice, action.Args{action.ArgVoice: action.String("shimmer")}), "")
	assert.True(t, eff.Applied)
	assert.Equal(t, "shimmer", ex.State().Snapshot().Voice)

	eff = ex.Apply(ctx, action.New(action.SetVoice, action.Args{action.ArgVoice: action.String("  ")}), "")
	assert.False(t, eff.Applied)
	assert.Equal(t, "shimmer", ex.State().Snapshot().Voice)

	eff = ex.Apply(ctx, action.New(action.SetTTS, action.Args{action.ArgEnabled: action.String("yes")}), "")
	assert.False(t, eff.Applied, "malformed args are ignored")
	assert.False(t, ex.State().Snapshot().ServerTTS)

	eff = ex.Apply(ctx, action.New(action.Help, nil), "You can say...")
	assert.True(t, eff.Applied)
}

func TestUnknownAndNilActionsAreNoOps(t *testing.T) {
	ex, mixer, notes, audio := newExecutor(0.5)
	before := ex.State().Snapshot()
	writes := len(mixer.writes)

	eff := ex.Apply(context.Background(), action.New("launch_rocket", action.Args{"value": action.Number(9)}), "")
	assert.False(t, eff.Applied)
	eff = ex.Apply(context.Background(), nil, "")
	assert.False(t, eff.Applied)

	assert.Equal(t, before, ex.State().Snapshot())
	assert.Len(t, mixer.writes, writes)
	assert.Empty(t, notes.notes)
	assert.Empty(t, audio.played)
}

func TestSaveFeedback(t *testing.T) {
	ctx := context.Background()

	t.Run("trimmed note", func(t *testing.T) {
		ex, _, notes, _ := newExecutor(0.5)
		eff := ex.Apply(ctx, action.New(action.SaveFeedback, action.Args{action.ArgNote: action.String("  door was locked  ")}), "Thanks")
		assert.True(t, eff.Applied)
		assert.Equal(t, "door was locked", eff.Note)
		assert.Equal(t, []string{"door was locked"}, notes.notes)
	})

	t.Run("falls back to reply", func(t *testing.T) {
		ex, _, notes, _ := newExecutor(0.5)
		ex.Apply(ctx, action.New(action.SaveFeedback, nil), " the reply text ")
		assert.Equal(t, []string{"the reply text"}, notes.notes)
	})

	t.Run("empty discarded", func(t *testing.T) {
		ex, _, notes, _ := newExecutor(0.5)
		eff := ex.Apply(ctx, action.New(action.SaveFeedback, action.Args{action.ArgNote: action.String("   ")}), "  ")
		assert.False(t, eff.Applied)
		assert.Empty(t, notes.notes)
	})

	t.Run("saver failure is swallowed", func(t *testing.T) {
		st := NewState(Settings{Volume: 0.5}, nil)
		ex := NewExecutor(st, &fakeNotes{err: errors.New("disk full")}, nil)
		eff := ex.Apply(ctx, action.New(action.SaveFeedback, action.Args{action.ArgNote: action.String("x")}), "")
		assert.False(t, eff.Applied)
	})
}

func TestRepeatLast(t *testing.T) {
	ex, _, _, audio := newExecutor(0.5)
	ctx := context.Background()

	eff := ex.Apply(ctx, action.New(action.RepeatLast, nil), "")
	assert.False(t, eff.Replayed, "no cached audio")
	assert.Empty(t, audio.played)

	audio.last = &playback.Clip{Data: []byte("mp3"), MIME: "audio/mpeg"}
	eff = ex.Apply(ctx, action.New(action.RepeatLast, nil), "")
	assert.True(t, eff.Replayed)
	require.Len(t, audio.played, 1)
	assert.Equal(t, []byte("mp3"), audio.played[0].Data)
	assert.Equal(t, RepeatDelay, audio.delays[0])
}

func TestRecordingIsExclusive(t *testing.T) {
	st := NewState(Settings{}, nil)
	require.NoError(t, st.BeginRecording())
	assert.ErrorIs(t, st.BeginRecording(), ErrAlreadyRecording)
	assert.True(t, st.Snapshot().Recording)
	st.EndRecording()
	assert.NoError(t, st.BeginRecording())
}

func TestFileNotes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes", "pilot.jsonl")
	n := NewFileNotes(path)
	require.NoError(t, n.SaveNote(context.Background(), "first"))
	require.NoError(t, n.SaveNote(context.Background(), "second"))

	items, err := feedback.LoadFile(path)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "first", items[0].Note)
	assert.Equal(t, "second", items[1].Note)
	assert.NotEmpty(t, items[0].ID)
}
