package notifications

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/clinicflow/libs/events"
	"github.com/md-rashed-zaman/clinicflow/libs/kafkax"
)

// HandleMessage decodes an appointment-events record and dispatches it.
// Undecodable payloads are dropped since a retry cannot fix them.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg kafka.Message) error {
	evt, err := events.Unmarshal(msg.Value)
	if err != nil {
		d.logger.Warn("dropping undecodable event", "err", err,
			"partition", msg.Partition, "offset", msg.Offset, "key", string(msg.Key))
		return nil
	}
	meta := kafkax.ExtractEventMeta(msg)
	if evt.EventID == "" {
		evt.EventID = meta.EventID
	}
	if evt.EventType == "" {
		evt.EventType = meta.EventType
	}
	return d.Handle(ctx, evt)
}
