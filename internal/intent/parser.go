package intent

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nadzzz/pathlight/internal/action"
	"github.com/nadzzz/pathlight/internal/feedback"
)

// FeedbackAppender is the part of the feedback store the parser writes to.
type FeedbackAppender interface {
	Append(ctx context.Context, item feedback.Item)
}

// Parser applies a grammar to transcripts and records save_feedback notes.
// It holds no per-request state and is safe for concurrent use.
type Parser struct {
	grammar *Grammar
	store   FeedbackAppender
	now     func() time.Time
}

// NewParser creates a parser. store may be nil, in which case feedback
// actions are still returned but nothing is recorded.
func NewParser(g *Grammar, store FeedbackAppender) *Parser {
	if g == nil {
		g = DefaultGrammar()
	}
	return &Parser{grammar: g, store: store, now: time.Now}
}

// Interpret parses transcript and, for save_feedback with a note, appends a
// feedback item tagged with requestID.
func (p *Parser) Interpret(ctx context.Context, transcript, requestID string) *action.Action {
	act, rule := p.grammar.Match(transcript)
	if act == nil {
		return nil
	}
	slog.Debug("intent matched", "rule", rule, "action", act.Name, "request_id", requestID)

	if act.Name == action.SaveFeedback && p.store != nil {
		note, _ := act.Str(action.ArgNote)
		if note == "" {
			return act
		}
		p.store.Append(ctx, feedback.Item{
			ID:         uuid.NewString(),
			Timestamp:  p.now().UTC(),
			Note:       note,
			Transcript: transcript,
			RequestID:  requestID,
		})
	}
	return act
}
