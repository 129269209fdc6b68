// Package events publishes learner progress to NATS so other services can
// follow lesson activity.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"
)

// DefaultSubject is the subject progress events are published on.
const DefaultSubject = "lusa.progress"

// FlushTimeout bounds the flush when the caller's context has no deadline.
var FlushTimeout = 5 * time.Second

// Event types.
const (
	TypeXPEarned         = "xp_earned"
	TypeStepCompleted    = "step_completed"
	TypeSubjectCompleted = "subject_completed"
)

// Event is one progress change of a learner.
type Event struct {
	Type      string    `json:"type"`
	Email     string    `json:"email"`
	SubjectID string    `json:"subjectId"`
	StepIndex int       `json:"stepIndex"`
	XP        int       `json:"xp"`
	At        time.Time `json:"at"`
}

// Publisher delivers progress events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards events. It is used when no NATS URL is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// NATSPublisher publishes JSON events on a NATS subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// Connect dials url and returns a publisher for subject.
func Connect(url, subject string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("lusa"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return NewNATSPublisher(conn, subject), nil
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(conn *nats.Conn, subject string) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{conn: conn, subject: subject}
}

// Publish sends ev and waits for the server to acknowledge the flush.
func (p *NATSPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, FlushTimeout)
		defer cancel()
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s event: %w", ev.Type, err)
	}
	log.Debug("Published progress event", "type", ev.Type, "subject", ev.SubjectID, "step", ev.StepIndex)
	return nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// New returns a NATS publisher when url is set and Nop otherwise.
func New(url, subject string) (Publisher, error) {
	if url == "" {
		return Nop{}, nil
	}
	return Connect(url, subject)
}
