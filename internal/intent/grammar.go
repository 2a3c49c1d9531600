// Package intent turns a transcript into at most one pilot action.
//
// The grammar is an ordered list of rules; the first rule that matches
// wins. Order is the only conflict-resolution mechanism: there is no
// semantic analysis beyond literal patterns.
package intent

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/nadzzz/pathlight/internal/action"
)

// NoSpeech is the transcript sentinel for an utterance with no recognisable
// speech.
const NoSpeech = "[no speech detected]"

// Utterance is a transcript prepared for matching.
type Utterance struct {
	// Raw is the lower-cased, trimmed transcript with punctuation intact.
	// Feedback notes are cut from Raw.
	Raw string

	// Text is the lower-cased, trimmed transcript with clause punctuation
	// and a trailing period removed.
	Text string

	// Head is the part of Text before a feedback delimiter. Command rules
	// match against Head so a feedback note can never trigger a command.
	Head string
}

// Rule is one grammar entry.
type Rule struct {
	Name  string
	Kind  action.Kind
	Match func(u Utterance) (*action.Action, bool)
}

// Grammar is an ordered rule set.
type Grammar struct {
	rules []Rule
}

// Volume step applied by the relative volume phrases.
const VolumeStep = 0.1

var (
	repeatPhrases = []string{"repeat", "repeat that", "say that again", "again please"}
	helpPhrases   = []string{"help", "what can i say", "commands", "pilot controls"}

	speechOffPhrases = []string{
		"speech off", "voice off", "stop talking", "mute speech", "mute voice",
		"text only", "disable speech", "turn off speech", "turn speech off",
	}
	speechOnPhrases = []string{
		"speech on", "voice on", "start talking", "unmute speech", "unmute voice",
		"enable speech", "turn on speech", "turn speech on", "talk to me",
	}

	volumeUpPhrases = []string{
		"volume up", "louder", "turn it up", "turn up the volume", "turn the volume up",
		"increase volume", "increase the volume", "raise volume", "raise the volume",
	}
	volumeDownPhrases = []string{
		"volume down", "quieter", "softer", "turn it down", "turn down the volume",
		"turn the volume down", "decrease volume", "decrease the volume",
		"lower volume", "lower the volume",
	}

	// "volume to 70", "volume 70%", "volume at 70 percent"
	volumePercentRe = regexp.MustCompile(`\bvolume\s+(?:to\s+|at\s+)?(\d+)\s*(?:%|percent)?(?:[^\d.%]|$)`)
	// "volume to 0.7", "volume .5"
	volumeFractionRe = regexp.MustCompile(`\bvolume\s+(?:to\s+|at\s+)?(\d*\.\d+)`)

	voiceRe = regexp.MustCompile(`\bvoice\s+(?:to\s+)?([a-z0-9_-]+)`)

	feedbackWordRe  = regexp.MustCompile(`\bfeedback\b`)
	// "feedback: x", "feedback - x"; a hyphen only counts when followed by a
	// space or the end, so "feedback-form" stays one word.
	feedbackDelimRe = regexp.MustCompile(`\bfeedback(?:\s*:|\s*-(?:\s|$))\s*`)

	// dropped anywhere; "." survives inside numbers and is only trimmed at the end.
	clausePunct = "!?,;\""
)

// voice names that are really filler words picked up by voiceRe.
var voiceStopWords = map[string]bool{"to": true, "is": true, "please": true, "the": true}

// DefaultGrammar returns the standard pilot grammar.
func DefaultGrammar() *Grammar {
	return &Grammar{rules: []Rule{
		{Name: "repeat", Kind: action.RepeatLast, Match: matchExact(repeatPhrases, action.RepeatLast, nil)},
		{Name: "help", Kind: action.Help, Match: matchExact(helpPhrases, action.Help, nil)},
		{Name: "speech-off", Kind: action.SetTTS, Match: matchContains(speechOffPhrases, action.SetTTS,
			action.Args{action.ArgEnabled: action.Bool(false)})},
		{Name: "speech-on", Kind: action.SetTTS, Match: matchContains(speechOnPhrases, action.SetTTS,
			action.Args{action.ArgEnabled: action.Bool(true)})},
		{Name: "volume-up", Kind: action.AdjustVolume, Match: matchContains(volumeUpPhrases, action.AdjustVolume,
			action.Args{action.ArgDelta: action.Number(VolumeStep)})},
		{Name: "volume-down", Kind: action.AdjustVolume, Match: matchContains(volumeDownPhrases, action.AdjustVolume,
			action.Args{action.ArgDelta: action.Number(-VolumeStep)})},
		{Name: "volume-percent", Kind: action.SetVolume, Match: matchVolume(volumePercentRe, percentVolume)},
		{Name: "volume-fraction", Kind: action.SetVolume, Match: matchVolume(volumeFractionRe, clampVolume)},
		{Name: "voice", Kind: action.SetVoice, Match: matchVoice},
		{Name: "feedback", Kind: action.SaveFeedback, Match: matchFeedback},
	}}
}

// NewGrammar builds a grammar from an explicit rule list.
func NewGrammar(rules ...Rule) *Grammar {
	return &Grammar{rules: append([]Rule(nil), rules...)}
}

// Rules returns a copy of the rules in evaluation order.
func (g *Grammar) Rules() []Rule {
	return append([]Rule(nil), g.rules...)
}

// Parse returns the action for transcript, or nil if no rule matches.
func (g *Grammar) Parse(transcript string) *action.Action {
	act, _ := g.Match(transcript)
	return act
}

// Match is Parse that also reports the name of the winning rule.
func (g *Grammar) Match(transcript string) (*action.Action, string) {
	u, ok := Prepare(transcript)
	if !ok {
		return nil, ""
	}
	for _, r := range g.rules {
		if act, ok := r.Match(u); ok {
			return act, r.Name
		}
	}
	return nil, ""
}

// Prepare normalises a transcript. It reports false for transcripts that can
// never carry an action.
func Prepare(transcript string) (Utterance, bool) {
	raw := strings.ToLower(strings.TrimSpace(transcript))
	if raw == "" || raw == NoSpeech {
		return Utterance{}, false
	}
	text := strings.Map(func(r rune) rune {
		if strings.ContainsRune(clausePunct, r) {
			return ' '
		}
		return r
	}, raw)
	text = strings.TrimRight(strings.TrimSpace(text), ".")
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return Utterance{}, false
	}

	head := text
	if loc := feedbackDelimRe.FindStringIndex(text); loc != nil {
		head = strings.TrimSpace(text[:loc[0]])
	}
	return Utterance{Raw: raw, Text: text, Head: head}, true
}

func matchExact(phrases []string, kind action.Kind, args action.Args) func(Utterance) (*action.Action, bool) {
	return func(u Utterance) (*action.Action, bool) {
		for _, p := range phrases {
			if u.Head == p {
				return action.New(kind, cloneArgs(args)), true
			}
		}
		return nil, false
	}
}

func matchContains(phrases []string, kind action.Kind, args action.Args) func(Utterance) (*action.Action, bool) {
	return func(u Utterance) (*action.Action, bool) {
		for _, p := range phrases {
			if containsPhrase(u.Head, p) {
				return action.New(kind, cloneArgs(args)), true
			}
		}
		return nil, false
	}
}

func matchVolume(re *regexp.Regexp, normalize func(float64) float64) func(Utterance) (*action.Action, bool) {
	return func(u Utterance) (*action.Action, bool) {
		m := re.FindStringSubmatch(u.Head)
		if m == nil {
			return nil, false
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil, false
		}
		return action.New(action.SetVolume, action.Args{
			action.ArgValue: action.Number(normalize(v)),
		}), true
	}
}

func matchVoice(u Utterance) (*action.Action, bool) {
	m := voiceRe.FindStringSubmatch(u.Head)
	if m == nil {
		return nil, false
	}
	name := NormalizeVoice(m[1])
	if name == "" || voiceStopWords[name] {
		return nil, false
	}
	return action.New(action.SetVoice, action.Args{action.ArgVoice: action.String(name)}), true
}

// matchFeedback cuts the note from the raw transcript. A delimiter with
// nothing after it yields save_feedback without a note.
func matchFeedback(u Utterance) (*action.Action, bool) {
	if !feedbackWordRe.MatchString(u.Text) {
		return nil, false
	}
	note := u.Raw
	if loc := feedbackDelimRe.FindStringIndex(u.Raw); loc != nil {
		note = strings.TrimSpace(u.Raw[loc[1]:])
	}
	if note == "" {
		return action.New(action.SaveFeedback, nil), true
	}
	return action.New(action.SaveFeedback, action.Args{action.ArgNote: action.String(note)}), true
}

// NormalizeVoice lower-cases name and drops everything outside [a-z0-9_-].
func NormalizeVoice(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// percentVolume treats values above 1 as percentages and clamps to [0,1].
func percentVolume(v float64) float64 {
	if v > 1 {
		v /= 100
	}
	return clampVolume(v)
}

// clampVolume bounds v to [0,1] at three decimals.
func clampVolume(v float64) float64 {
	v = math.Max(0, math.Min(1, v))
	return math.Round(v*1000) / 1000
}

// containsPhrase reports whether phrase occurs in text on word boundaries.
func containsPhrase(text, phrase string) bool {
	for i := 0; ; {
		j := strings.Index(text[i:], phrase)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(phrase)
		if (start == 0 || !isWordByte(text[start-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		i = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '_' || b == '\''
}

func cloneArgs(args action.Args) action.Args {
	out := make(action.Args, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}
