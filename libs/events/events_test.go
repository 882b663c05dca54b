package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventID_UniqueAndOrdered(t *testing.T) {
	prev := NewEventID()
	for i := 0; i < 1000; i++ {
		next := NewEventID()
		require.Len(t, next, 26)
		require.Greater(t, next, prev)
		prev = next
	}
}

func TestUnmarshal_OptionalEventID(t *testing.T) {
	evt, err := Unmarshal([]byte(`{"eventType":"AppointmentCreated","appointmentId":"a1","patientId":"p1","doctorId":"d1"}`))
	require.NoError(t, err)
	assert.Empty(t, evt.EventID)
	assert.Equal(t, TypeAppointmentCreated, evt.EventType)
	assert.Equal(t, "a1", evt.AppointmentID)
}
