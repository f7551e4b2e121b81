// Package notification delivers verification codes. Codes leave the auth
// flows as verification.issued events and reach a Mailer either directly or
// through a RabbitMQ queue drained by the notifications worker.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/auth-rbac/internal/core/events"
)

const (
	TransportDirect = "direct"
	TransportQueue  = "queue"

	OutcomeDelivered = "delivered"
	OutcomeQueued    = "queued"
	OutcomeFailed    = "failed"
)

// Message is one code to deliver. It is the JSON body of queued messages.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Purpose   string    `json:"purpose"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	IssuedAt  time.Time `json:"issued_at"`
}

func FromEvent(e *events.VerificationIssuedEvent) Message {
	return Message{
		ID:        e.EventID(),
		UserID:    e.UserID,
		Email:     e.Email,
		Purpose:   e.Purpose,
		Code:      e.Code,
		ExpiresAt: e.ExpiresAt,
		IssuedAt:  e.OccurredAt(),
	}
}

// Mailer performs the final delivery to the address owner.
type Mailer interface {
	Deliver(ctx context.Context, msg Message) error
}

// Sender hands a message to a transport.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Recorder interface {
	Notification(transport, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) Notification(string, string) {}

// LogMailer delivers by writing the message to the log. Development only.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Deliver(ctx context.Context, msg Message) error {
	m.logger.InfoContext(ctx, "verification code delivered",
		"to", msg.Email,
		"purpose", msg.Purpose,
		"code", msg.Code,
		"expires_at", msg.ExpiresAt)
	return nil
}

// DirectSender delivers in-process, used when no broker is configured.
type DirectSender struct {
	mailer   Mailer
	recorder Recorder
}

func NewDirectSender(mailer Mailer, recorder Recorder) *DirectSender {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &DirectSender{mailer: mailer, recorder: recorder}
}

func (s *DirectSender) Send(ctx context.Context, msg Message) error {
	if err := s.mailer.Deliver(ctx, msg); err != nil {
		s.recorder.Notification(TransportDirect, OutcomeFailed)
		return err
	}
	s.recorder.Notification(TransportDirect, OutcomeDelivered)
	return nil
}

// Subscribe forwards every verification.issued event on bus to sender.
func Subscribe(bus *events.EventBus, sender Sender) {
	bus.Subscribe(events.EventTypeVerificationIssued, func(ctx context.Context, event events.Event) error {
		issued, ok := event.(*events.VerificationIssuedEvent)
		if !ok {
			return fmt.Errorf("notification: unexpected event %T", event)
		}
		return sender.Send(ctx, FromEvent(issued))
	})
}
