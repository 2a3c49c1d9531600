// Package action defines pilot actions: structured commands extracted from
// an utterance and executed locally by the client.
package action

import (
	"encoding/json"
	"fmt"
)

// Kind names an action. The set is closed; Known reports membership.
type Kind string

const (
	RepeatLast   Kind = "repeat_last"
	Help         Kind = "help"
	SetTTS       Kind = "set_tts"
	SetVoice     Kind = "set_voice"
	AdjustVolume Kind = "adjust_volume"
	SetVolume    Kind = "set_volume"
	SaveFeedback Kind = "save_feedback"
)

// Kinds lists every known kind.
var Kinds = []Kind{RepeatLast, Help, SetTTS, SetVoice, AdjustVolume, SetVolume, SaveFeedback}

// Known reports whether k is one of the kinds this build understands.
// Consumers must ignore unknown kinds rather than fail.
func (k Kind) Known() bool {
	switch k {
	case RepeatLast, Help, SetTTS, SetVoice, AdjustVolume, SetVolume, SaveFeedback:
		return true
	}
	return false
}

// Argument names.
const (
	ArgEnabled = "enabled"
	ArgVoice   = "voice"
	ArgDelta   = "delta"
	ArgValue   = "value"
	ArgNote    = "note"
)

// Action is one pilot command.
type Action struct {
	Name Kind `json:"name"`
	Args Args `json:"args"`
}

// New creates an action with the given arguments.
func New(name Kind, args Args) *Action {
	if args == nil {
		args = Args{}
	}
	return &Action{Name: name, Args: args}
}

// Bool returns a boolean argument; ok is false if absent or not a bool.
func (a *Action) Bool(key string) (bool, bool) {
	return a.Args[key].AsBool()
}

// Number returns a numeric argument; ok is false if absent or not a number.
func (a *Action) Number(key string) (float64, bool) {
	return a.Args[key].AsNumber()
}

// Str returns a string argument; ok is false if absent or not a string.
func (a *Action) Str(key string) (string, bool) {
	return a.Args[key].AsString()
}

func (a *Action) String() string {
	if a == nil {
		return "none"
	}
	return fmt.Sprintf("%s%s", a.Name, Object(a.Args))
}

// UnmarshalJSON decodes an action leniently: a missing or non-object "args"
// leaves the action with empty arguments instead of failing the envelope.
func (a *Action) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name Kind            `json:"name"`
		Args json.RawMessage `json:"args"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a.Name = raw.Name
	a.Args = Args{}
	if len(raw.Args) > 0 {
		var args Args
		if err := json.Unmarshal(raw.Args, &args); err == nil && args != nil {
			a.Args = args
		}
	}
	return nil
}
