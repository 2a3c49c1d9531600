package feedback

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSMirror publishes every item on a subject.
type NATSMirror struct {
	conn    *nats.Conn
	subject string
}

// NewNATSMirror publishes on subject over an existing connection.
func NewNATSMirror(conn *nats.Conn, subject string) *NATSMirror {
	return &NATSMirror{conn: conn, subject: subject}
}

// Name returns the mirror identifier.
func (m *NATSMirror) Name() string { return "nats" }

// Write publishes item.
func (m *NATSMirror) Write(_ context.Context, item Item) error {
	rec, err := encodeRecord(item)
	if err != nil {
		return err
	}
	if err := m.conn.Publish(m.subject, rec); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}
