package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clinicflow/libs/events"
)

// TypeFor maps an event type to the notification it triggers.
func TypeFor(eventType string) (Type, bool) {
	switch eventType {
	case events.TypeAppointmentCreated:
		return TypeAppointment, true
	case events.TypeAppointmentReminderRequested:
		return TypeAppointmentReminder, true
	default:
		return "", false
	}
}

func compose(t Type, ch Channel, evt events.AppointmentEvent) Message {
	when := evt.AppointmentDate
	if ts, err := time.Parse(time.RFC3339, evt.AppointmentDate); err == nil {
		when = ts.UTC().Format("Mon, 02 Jan 2006 15:04 MST")
	}
	doctor := evt.DoctorName
	if evt.DoctorSpecialty != "" {
		doctor = fmt.Sprintf("%s (%s)", evt.DoctorName, evt.DoctorSpecialty)
	}
	name := strings.TrimSpace(evt.PatientName)
	if name == "" {
		name = "patient"
	}

	var subject, lead string
	switch t {
	case TypeAppointmentReminder:
		subject = "Reminder: your appointment is tomorrow"
		lead = "This is a reminder of your upcoming appointment"
	default:
		subject = "Your appointment is booked"
		lead = "Your appointment has been booked"
	}

	if ch == ChannelSMS {
		return Message{
			To:   evt.PatientPhone,
			Body: fmt.Sprintf("%s with Dr. %s on %s.", lead, evt.DoctorName, when),
		}
	}
	body := fmt.Sprintf("Hello %s,\n\n%s with Dr. %s on %s.\n\nAppointment reference: %s\n",
		name, lead, doctor, when, evt.AppointmentID)
	return Message{To: evt.PatientEmail, Subject: subject, Body: body}
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
