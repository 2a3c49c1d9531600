// Package nats implements a request/reply transport over NATS.
//
// Requests arrive on a queue-group subscription as JSON; the audio travels
// base64-encoded inside the JSON body. Each request is answered on its reply
// subject with either the dispatch result or an error envelope.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/nadzzz/pathlight/internal/apierror"
	"github.com/nadzzz/pathlight/internal/message"
	"github.com/nadzzz/pathlight/internal/metrics"
	"github.com/nadzzz/pathlight/internal/transport"
)

// requestTimeout bounds one dispatch handled from the subscription.
const requestTimeout = 60 * time.Second

// Request is the JSON body of a dispatch request. TTS defaults to true.
type Request struct {
	ID          string `json:"id,omitempty"`
	Mode        string `json:"mode,omitempty"`
	Voice       string `json:"voice,omitempty"`
	TTS         *bool  `json:"tts,omitempty"`
	Audio       []byte `json:"audio"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// ErrorReply is sent instead of a result when dispatch fails.
type ErrorReply struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Status int    `json:"status"`
}

// Transport implements transport.Transport over NATS. The connection is
// owned by the caller.
type Transport struct {
	conn    *nats.Conn
	subject string
	queue   string

	mu     sync.Mutex
	sub    *nats.Subscription
	closed bool
	wg     sync.WaitGroup
}

// New creates a transport subscribing to subject in queue group queue.
func New(conn *nats.Conn, subject, queue string) *Transport {
	return &Transport{conn: conn, subject: subject, queue: queue}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "nats" }

// Listen subscribes and serves requests until ctx is cancelled.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	sub, err := t.conn.QueueSubscribe(t.subject, t.queue, func(m *nats.Msg) {
		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			_ = m.Respond(t.errorReply(apierror.New(apierror.KindUnavailable, http.StatusServiceUnavailable, "shutting down"), time.Now()))
			return
		}
		t.wg.Add(1)
		t.mu.Unlock()
		go func() {
			defer t.wg.Done()
			reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), requestTimeout)
			defer cancel()
			if err := m.Respond(t.respond(reqCtx, m.Data, handler)); err != nil {
				slog.Error("nats respond failed", "subject", m.Subject, "error", err)
			}
		}()
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	t.mu.Lock()
	t.sub = sub
	t.mu.Unlock()

	slog.Info("nats transport listening", "subject", t.subject, "queue", t.queue)
	<-ctx.Done()
	return t.Close()
}

// respond decodes one request, runs the handler and encodes the reply.
func (t *Transport) respond(ctx context.Context, data []byte, handler transport.Handler) []byte {
	start := time.Now()
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return t.errorReply(apierror.Wrap(apierror.KindInput, http.StatusBadRequest, "invalid request json", err), start)
	}
	msg := &message.Message{
		ID:          req.ID,
		Mode:        req.Mode,
		Voice:       req.Voice,
		TTS:         req.TTS == nil || *req.TTS,
		Audio:       req.Audio,
		Filename:    req.Filename,
		ContentType: req.ContentType,
		Timestamp:   time.Now().UTC(),
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	res, err := handler(ctx, msg)
	if err != nil {
		slog.Warn("nats dispatch failed", "request_id", msg.ID, "error", err)
		return t.errorReply(err, start)
	}
	out, err := json.Marshal(res)
	if err != nil {
		return t.errorReply(fmt.Errorf("encoding result: %w", err), start)
	}
	metrics.RecordDispatch(t.Name(), http.StatusOK, time.Since(start))
	return out
}

func (t *Transport) errorReply(err error, start time.Time) []byte {
	status := apierror.HTTPStatus(err)
	metrics.RecordDispatch(t.Name(), status, time.Since(start))
	out, _ := json.Marshal(ErrorReply{
		Error:  apierror.PublicMessage(err),
		Kind:   apierror.KindOf(err).String(),
		Status: status,
	})
	return out
}

// Close drains the subscription and waits for in-flight requests.
func (t *Transport) Close() error {
	t.mu.Lock()
	sub := t.sub
	t.sub = nil
	t.closed = true
	t.mu.Unlock()
	if sub == nil {
		return nil
	}
	err := sub.Drain()
	t.wg.Wait()
	if err != nil {
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}
