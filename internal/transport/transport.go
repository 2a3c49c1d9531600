// Package transport defines the interface for pluggable request transports.
//
// Each transport (HTTP, gRPC, NATS) implements this interface and hands
// requests to the dispatcher. The dispatcher doesn't care how requests
// arrive; it only works with the Handler contract.
package transport

import (
	"context"
	"net/http"

	"github.com/nadzzz/pathlight/internal/apierror"
	"github.com/nadzzz/pathlight/internal/feedback"
	"github.com/nadzzz/pathlight/internal/message"
)

// Handler is a function that processes an incoming request and returns a result.
// The dispatcher provides this handler to each transport.
type Handler func(ctx context.Context, msg *message.Message) (*message.DispatchResult, error)

// Transport is the interface that every transport adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "grpc", "http", "nats").
	Name() string

	// Listen starts accepting requests and dispatches them to the handler.
	// It blocks until the context is cancelled.
	Listen(ctx context.Context, handler Handler) error

	// Close gracefully shuts down the transport, draining in-flight work.
	Close() error
}

// Feedback read limits.
const (
	DefaultFeedbackLimit = 50
	MaxFeedbackLimit     = 200
)

// FeedbackSource is the read side of the feedback store.
type FeedbackSource interface {
	ListRecent(limit int) []feedback.Item
	Latest() (feedback.Item, bool)
}

// Feedback serves token-gated feedback reads to transports.
type Feedback struct {
	source FeedbackSource
	gate   feedback.Gate
}

// NewFeedback wraps a store with a gate.
func NewFeedback(source FeedbackSource, gate feedback.Gate) *Feedback {
	return &Feedback{source: source, gate: gate}
}

// Authorize checks token against the gate.
func (f *Feedback) Authorize(token string) error {
	return f.gate.Authorize(token)
}

// List returns up to limit items, newest first. limit 0 means the default.
func (f *Feedback) List(token string, limit int) ([]feedback.Item, error) {
	if err := f.Authorize(token); err != nil {
		return nil, err
	}
	if limit == 0 {
		limit = DefaultFeedbackLimit
	}
	if limit < 1 || limit > MaxFeedbackLimit {
		return nil, apierror.Input(http.StatusBadRequest, "limit must be between 1 and 200")
	}
	items := f.source.ListRecent(limit)
	if items == nil {
		items = []feedback.Item{}
	}
	return items, nil
}

// Latest returns the newest item, or nil when the store is empty.
func (f *Feedback) Latest(token string) (*feedback.Item, error) {
	if err := f.gate.Authorize(token); err != nil {
		return nil, err
	}
	item, ok := f.source.Latest()
	if !ok {
		return nil, nil
	}
	return &item, nil
}
