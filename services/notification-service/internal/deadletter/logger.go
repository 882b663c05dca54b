// Package deadletter consumes the dead-letter topic for manual triage.
// Records are logged and committed; nothing is reprocessed.
package deadletter

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/clinicflow/libs/events"
	"github.com/md-rashed-zaman/clinicflow/libs/kafkax"
	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/retry"
)

type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

// Handle never fails so a dead letter is never redelivered.
func (l *Logger) Handle(_ context.Context, msg kafka.Message) error {
	attrs := []any{
		"aggregate_id", string(msg.Key),
		"event_id", kafkax.HeaderValue(msg.Headers, kafkax.HeaderEventID),
		"event_type", kafkax.HeaderValue(msg.Headers, kafkax.HeaderEventType),
		"dlt_partition", msg.Partition,
		"dlt_offset", msg.Offset,
		"original_topic", kafkax.HeaderValue(msg.Headers, retry.HeaderOriginalTopic),
		"original_partition", kafkax.HeaderValue(msg.Headers, retry.HeaderOriginalPartition),
		"original_offset", kafkax.HeaderValue(msg.Headers, retry.HeaderOriginalOffset),
		"exception", kafkax.HeaderValue(msg.Headers, retry.HeaderExceptionMessage),
	}

	evt, err := events.Unmarshal(msg.Value)
	if err != nil {
		attrs = append(attrs, "decode_err", err, "raw", string(msg.Value))
	} else {
		attrs = append(attrs,
			"appointment_id", evt.AppointmentID,
			"patient_id", evt.PatientID,
			"patient_name", evt.PatientName,
			"doctor_id", evt.DoctorID,
			"doctor_name", evt.DoctorName,
			"appointment_date", evt.AppointmentDate,
		)
	}
	l.logger.Error("dead-lettered record", attrs...)
	return nil
}
