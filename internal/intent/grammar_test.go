package intent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/pathlight/internal/action"
	"github.com/nadzzz/pathlight/internal/feedback"
)

func TestParse(t *testing.T) {
	g := DefaultGrammar()

	tests := []struct {
		transcript string
		want       action.Kind
		key        string
		value      any
	}{
		{"repeat", action.RepeatLast, "", nil},
		{"Repeat that.", action.RepeatLast, "", nil},
		{"say that again", action.RepeatLast, "", nil},
		{"Again, please!", action.RepeatLast, "", nil},
		{"help", action.Help, "", nil},
		{"What can I say?", action.Help, "", nil},
		{"pilot controls", action.Help, "", nil},
		{"speech off", action.SetTTS, action.ArgEnabled, false},
		{"please turn speech off now", action.SetTTS, action.ArgEnabled, false},
		{"voice on", action.SetTTS, action.ArgEnabled, true},
		{"volume up", action.AdjustVolume, action.ArgDelta, VolumeStep},
		{"Louder.", action.AdjustVolume, action.ArgDelta, VolumeStep},
		{"turn it up", action.AdjustVolume, action.ArgDelta, VolumeStep},
		{"quieter please", action.AdjustVolume, action.ArgDelta, -VolumeStep},
		{"volume down", action.AdjustVolume, action.ArgDelta, -VolumeStep},
		{"volume to 70%", action.SetVolume, action.ArgValue, 0.7},
		{"volume 70%", action.SetVolume, action.ArgValue, 0.7},
		{"set volume to 40 percent", action.SetVolume, action.ArgValue, 0.4},
		{"Volume to 100.", action.SetVolume, action.ArgValue, 1.0},
		{"volume to 1", action.SetVolume, action.ArgValue, 1.0},
		{"volume to 0", action.SetVolume, action.ArgValue, 0.0},
		{"volume to 0.7", action.SetVolume, action.ArgValue, 0.7},
		{"volume .25", action.SetVolume, action.ArgValue, 0.25},
		{"volume to 250", action.SetVolume, action.ArgValue, 1.0},
		{"volume to 1000", action.SetVolume, action.ArgValue, 1.0},
		{"volume 5000%", action.SetVolume, action.ArgValue, 1.0},
		{"volume to 1.5", action.SetVolume, action.ArgValue, 1.0},
		{"voice to Nova", action.SetVoice, action.ArgVoice, "nova"},
		{"change the voice alloy", action.SetVoice, action.ArgVoice, "alloy"},
		{"voice en_US-lessac-medium", action.SetVoice, action.ArgVoice, "en_us-lessac-medium"},
		{"feedback: button is hard to tap", action.SaveFeedback, action.ArgNote, "button is hard to tap"},
		{"Feedback - menu too slow", action.SaveFeedback, action.ArgNote, "menu too slow"},
		{"I have some feedback about the map", action.SaveFeedback, action.ArgNote, "i have some feedback about the map"},
		{"feedback: the map, not the list, is slow; fix it!", action.SaveFeedback, action.ArgNote, "the map, not the list, is slow; fix it!"},
		{`feedback: the "help" screen is confusing`, action.SaveFeedback, action.ArgNote, `the "help" screen is confusing`},
		{"Feedback-form is broken", action.SaveFeedback, action.ArgNote, "feedback-form is broken"},
		{"feedback -", action.SaveFeedback, "", nil},
		{"Feedback:", action.SaveFeedback, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.transcript, func(t *testing.T) {
			act := g.Parse(tt.transcript)
			require.NotNil(t, act)
			assert.Equal(t, tt.want, act.Name)
			if tt.key == "" {
				assert.Empty(t, act.Args)
				return
			}
			assert.Len(t, act.Args, 1, "only meaningful keys")
			switch want := tt.value.(type) {
			case bool:
				got, ok := act.Bool(tt.key)
				require.True(t, ok)
				assert.Equal(t, want, got)
			case float64:
				got, ok := act.Number(tt.key)
				require.True(t, ok)
				assert.InDelta(t, want, got, 1e-9)
			case string:
				got, ok := act.Str(tt.key)
				require.True(t, ok)
				assert.Equal(t, want, got)
			}
		})
	}
}

func TestParseNoAction(t *testing.T) {
	g := DefaultGrammar()
	for _, transcript := range []string{
		"",
		"   ",
		"...",
		NoSpeech,
		"what's the weather like",
		"repeat after me the alphabet",
		"voice to",
		"commands are great",
	} {
		assert.Nil(t, g.Parse(transcript), "%q", transcript)
	}
}

func TestFeedbackNoteDigitsNeverBecomeVolume(t *testing.T) {
	act := DefaultGrammar().Parse("feedback: volume 70 is way too loud")
	require.NotNil(t, act)
	assert.Equal(t, action.SaveFeedback, act.Name)
	note, _ := act.Str(action.ArgNote)
	assert.Equal(t, "volume 70 is way too loud", note)
}

func TestFeedbackNoteKeepsPunctuationButCommandsIgnoreIt(t *testing.T) {
	u, ok := Prepare("Feedback: volume up, please!")
	require.True(t, ok)
	assert.Equal(t, "feedback: volume up, please!", u.Raw)
	assert.Empty(t, u.Head)

	act, rule := DefaultGrammar().Match("Feedback: volume up, please!")
	require.NotNil(t, act)
	assert.Equal(t, "feedback", rule)
	note, _ := act.Str(action.ArgNote)
	assert.Equal(t, "volume up, please!", note)
}

func TestFirstRuleWins(t *testing.T) {
	g := DefaultGrammar()

	// speech-off precedes the voice rule.
	act, rule := g.Match("voice off")
	require.NotNil(t, act)
	assert.Equal(t, "speech-off", rule)

	// relative volume precedes absolute volume.
	act, rule = g.Match("volume up to 80")
	require.NotNil(t, act)
	assert.Equal(t, "volume-up", rule)
	assert.Equal(t, action.AdjustVolume, act.Name)

	// every transcript yields exactly the first matching rule.
	for _, transcript := range []string{"louder", "volume 30", "voice to echo", "help", "feedback x"} {
		u, ok := Prepare(transcript)
		require.True(t, ok)
		_, winner := g.Match(transcript)
		for _, r := range g.Rules() {
			if _, ok := r.Match(u); ok {
				assert.Equal(t, r.Name, winner, transcript)
				break
			}
		}
	}
}

func TestRuleOrderIsInspectable(t *testing.T) {
	var names []string
	for _, r := range DefaultGrammar().Rules() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{
		"repeat", "help", "speech-off", "speech-on", "volume-up", "volume-down",
		"volume-percent", "volume-fraction", "voice", "feedback",
	}, names)
}

func TestCustomGrammar(t *testing.T) {
	g := NewGrammar(Rule{
		Name: "always-help",
		Kind: action.Help,
		Match: func(Utterance) (*action.Action, bool) {
			return action.New(action.Help, nil), true
		},
	})
	act := g.Parse("anything")
	require.NotNil(t, act)
	assert.Equal(t, action.Help, act.Name)
}

func TestParserRecordsFeedback(t *testing.T) {
	store := feedback.NewStore(10, nil)
	p := NewParser(nil, store)

	act := p.Interpret(context.Background(), "feedback: button is hard to tap", "req-1")
	require.NotNil(t, act)
	assert.Equal(t, action.SaveFeedback, act.Name)

	it, ok := store.Latest()
	require.True(t, ok)
	assert.Equal(t, "button is hard to tap", it.Note)
	assert.Equal(t, "feedback: button is hard to tap", it.Transcript)
	assert.Equal(t, "req-1", it.RequestID)
	assert.NotEmpty(t, it.ID)
	assert.False(t, it.Timestamp.IsZero())
}

func TestParserSkipsEmptyFeedbackNote(t *testing.T) {
	store := feedback.NewStore(10, nil)
	p := NewParser(nil, store)

	act := p.Interpret(context.Background(), "feedback:", "req-4")
	require.NotNil(t, act)
	assert.Equal(t, action.SaveFeedback, act.Name)
	assert.Empty(t, act.Args)
	assert.Equal(t, 0, store.Len())
}

func TestParserOnlyRecordsFeedbackActions(t *testing.T) {
	store := feedback.NewStore(10, nil)
	p := NewParser(nil, store)

	assert.NotNil(t, p.Interpret(context.Background(), "volume to 70%", "req-2"))
	assert.Nil(t, p.Interpret(context.Background(), "hello there", "req-3"))
	assert.Equal(t, 0, store.Len())
}
