package deadletter

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/clinicflow/libs/kafkax"
	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/retry"
)

func TestHandle_LogsTriageDetail(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := l.Handle(context.Background(), kafka.Message{
		Partition: 0,
		Offset:    7,
		Key:       []byte("appt-1"),
		Value:     []byte(`{"appointmentId":"appt-1","patientId":"p1","doctorId":"d1","doctorName":"House"}`),
		Headers: []kafka.Header{
			{Key: kafkax.HeaderEventID, Value: []byte("01JEVT")},
			{Key: retry.HeaderOriginalPartition, Value: []byte("3")},
			{Key: retry.HeaderOriginalOffset, Value: []byte("99")},
			{Key: retry.HeaderExceptionMessage, Value: []byte("smtp down")},
		},
	})
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "appt-1", entry["aggregate_id"])
	assert.Equal(t, "01JEVT", entry["event_id"])
	assert.Equal(t, "p1", entry["patient_id"])
	assert.Equal(t, "d1", entry["doctor_id"])
	assert.Equal(t, "3", entry["original_partition"])
	assert.Equal(t, "99", entry["original_offset"])
	assert.Equal(t, "smtp down", entry["exception"])
	assert.EqualValues(t, 7, entry["dlt_offset"])
}

func TestHandle_UndecodablePayload(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, l.Handle(context.Background(), kafka.Message{Value: []byte("not json")}))
	assert.Contains(t, buf.String(), `"raw":"not json"`)
}
