// Package events defines the appointment event contract shared by the
// scheduler (producer), history and notification services (consumers).
package events

import (
	"crypto/rand"
	"encoding/json"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const AggregateAppointment = "Appointment"

const (
	TypeAppointmentCreated           = "AppointmentCreated"
	TypeAppointmentStatusChanged     = "AppointmentStatusChanged"
	TypeAppointmentCancelled         = "AppointmentCancelled"
	TypeAppointmentReminderRequested = "AppointmentReminderRequested"
)

// AppointmentEvent is the JSON payload published for every appointment fact.
// Timestamps are RFC3339 strings so consumers can apply their own fallback
// when a producer sends something unparsable.
type AppointmentEvent struct {
	EventID         string `json:"eventId,omitempty"`
	EventType       string `json:"eventType"`
	AppointmentID   string `json:"appointmentId"`
	PatientID       string `json:"patientId"`
	PatientName     string `json:"patientName"`
	PatientEmail    string `json:"patientEmail,omitempty"`
	PatientPhone    string `json:"patientPhone,omitempty"`
	DoctorID        string `json:"doctorId"`
	DoctorName      string `json:"doctorName"`
	DoctorSpecialty string `json:"doctorSpecialty,omitempty"`
	Status          string `json:"status"`
	AppointmentDate string `json:"appointmentDate"`
	Timestamp       string `json:"timestamp"`
}

func (e AppointmentEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func Unmarshal(raw []byte) (AppointmentEvent, error) {
	var e AppointmentEvent
	err := json.Unmarshal(raw, &e)
	return e, err
}

// FormatTime renders t the way producers write timestamps.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewEventID returns a ULID: unique and sortable by creation time.
func NewEventID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
