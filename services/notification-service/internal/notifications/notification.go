// Package notifications tracks delivery of appointment notifications per
// (appointment, type, channel) and decides when a send is attempted.
package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeAppointment         Type = "APPOINTMENT"
	TypeAppointmentReminder Type = "APPOINTMENT_REMINDER"
)

type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

// ErrDuplicate is returned by Store.Create when the key already exists.
var ErrDuplicate = errors.New("notification already exists")

// Key identifies one logical notification.
type Key struct {
	AppointmentID string
	Type          Type
	Channel       Channel
}

type Record struct {
	ID            uuid.UUID
	AppointmentID string
	PatientID     string
	Type          Type
	Channel       Channel
	Status        Status
	Attempts      int
	ScheduledFor  time.Time
	SentAt        *time.Time
	CreatedAt     time.Time
	LastError     *string
	EventID       string
}

func (r Record) Key() Key {
	return Key{AppointmentID: r.AppointmentID, Type: r.Type, Channel: r.Channel}
}

type Store interface {
	Find(ctx context.Context, key Key) (Record, bool, error)
	Create(ctx context.Context, rec Record) error
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastError string) error
}

// Message is a rendered notification ready for a channel sender.
type Message struct {
	To      string
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}
