package appointments

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/clinicflow/libs/events"
	"github.com/md-rashed-zaman/clinicflow/services/scheduler-service/internal/outbox"
	"github.com/md-rashed-zaman/clinicflow/services/scheduler-service/internal/users"
)

type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusNoShow    Status = "NO_SHOW"
	StatusCancelled Status = "CANCELLED"
)

var (
	ErrNotFound          = errors.New("appointment not found")
	ErrForbidden         = errors.New("caller may not perform this action")
	ErrInvalid           = errors.New("invalid appointment request")
	ErrInvalidTransition = errors.New("status transition not allowed")
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusNoShow, StatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalid, s)
	}
}

// Terminal statuses accept no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusNoShow || s == StatusCancelled
}

type Appointment struct {
	ID              uuid.UUID
	PatientID       uuid.UUID
	DoctorID        uuid.UUID
	AppointmentDate time.Time
	Status          Status
	Reason          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Details is an appointment with the parties events describe.
type Details struct {
	Appointment
	Patient users.Patient
	Doctor  users.Doctor
}

// NewEvent renders d as an outbox event of the given type. The event id is
// minted here and shared by the payload and the outbox row.
func NewEvent(d Details, eventType string, now time.Time) (outbox.Event, error) {
	payload := events.AppointmentEvent{
		EventID:         events.NewEventID(),
		EventType:       eventType,
		AppointmentID:   d.ID.String(),
		PatientID:       d.PatientID.String(),
		PatientName:     d.Patient.FullName(),
		PatientEmail:    d.Patient.Email,
		PatientPhone:    d.Patient.Phone,
		DoctorID:        d.DoctorID.String(),
		DoctorName:      d.Doctor.FullName(),
		DoctorSpecialty: d.Doctor.Specialty,
		Status:          string(d.Status),
		AppointmentDate: events.FormatTime(d.AppointmentDate),
		Timestamp:       events.FormatTime(now),
	}
	raw, err := payload.Marshal()
	if err != nil {
		return outbox.Event{}, err
	}
	return outbox.Event{
		EventID:       payload.EventID,
		AggregateType: events.AggregateAppointment,
		AggregateID:   payload.AppointmentID,
		EventType:     eventType,
		Payload:       raw,
	}, nil
}
