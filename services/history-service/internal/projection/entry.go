// Package projection maintains the appointment history read model from
// appointment events and serves role-scoped queries over it.
package projection

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/clinicflow/libs/events"
)

// Entry is one appointment's latest known state.
type Entry struct {
	AppointmentID   string    `json:"appointmentId"`
	PatientID       string    `json:"patientId"`
	PatientName     string    `json:"patientName"`
	DoctorID        uuid.UUID `json:"doctorId"`
	DoctorName      string    `json:"doctorName"`
	Status          string    `json:"status"`
	EventType       string    `json:"eventType"`
	AppointmentDate time.Time `json:"appointmentDate"`
	LastEventID     string    `json:"-"`
	LastEventAt     time.Time `json:"lastEventAt"`
}

var errInvalidEvent = errors.New("invalid event")

// entryFrom validates evt. An unparsable or missing timestamp falls back to now.
func entryFrom(evt events.AppointmentEvent, now time.Time) (Entry, error) {
	if strings.TrimSpace(evt.AppointmentID) == "" {
		return Entry{}, fmt.Errorf("%w: appointmentId is empty", errInvalidEvent)
	}
	if strings.TrimSpace(evt.PatientID) == "" {
		return Entry{}, fmt.Errorf("%w: patientId is empty", errInvalidEvent)
	}
	doctorID, err := uuid.Parse(strings.TrimSpace(evt.DoctorID))
	if err != nil {
		return Entry{}, fmt.Errorf("%w: doctorId %q is not a uuid", errInvalidEvent, evt.DoctorID)
	}
	if evt.AppointmentDate == "" {
		return Entry{}, fmt.Errorf("%w: appointmentDate is empty", errInvalidEvent)
	}
	date, err := time.Parse(time.RFC3339, evt.AppointmentDate)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: appointmentDate %q: %v", errInvalidEvent, evt.AppointmentDate, err)
	}
	at, err := time.Parse(time.RFC3339, evt.Timestamp)
	if err != nil {
		at = now
	}
	return Entry{
		AppointmentID:   evt.AppointmentID,
		PatientID:       strings.TrimSpace(evt.PatientID),
		PatientName:     evt.PatientName,
		DoctorID:        doctorID,
		DoctorName:      evt.DoctorName,
		Status:          strings.ToUpper(evt.Status),
		EventType:       evt.EventType,
		AppointmentDate: date.UTC(),
		LastEventID:     evt.EventID,
		LastEventAt:     at.UTC(),
	}, nil
}
