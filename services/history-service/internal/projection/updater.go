package projection

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/clinicflow/libs/db"
	"github.com/md-rashed-zaman/clinicflow/libs/events"
	"github.com/md-rashed-zaman/clinicflow/libs/kafkax"
	"github.com/md-rashed-zaman/clinicflow/libs/metrics"
)

type Ledger interface {
	ShouldProcess(ctx context.Context, tx pgx.Tx, eventID string) bool
	MarkProcessed(ctx context.Context, tx pgx.Tx, eventID, eventType string) error
}

type Writer interface {
	// Upsert reports false when the stored entry is newer than e.
	Upsert(ctx context.Context, tx pgx.Tx, e Entry) (bool, error)
}

type Updater struct {
	tx      db.TxRunner
	ledger  Ledger
	store   Writer
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewUpdater(tx db.TxRunner, ledger Ledger, store Writer, logger *slog.Logger, m *metrics.Metrics) *Updater {
	return &Updater{tx: tx, ledger: ledger, store: store, logger: logger, metrics: m, now: time.Now}
}

// Apply folds evt into the projection. Failures are logged and counted,
// never returned, so one bad record does not stall the partition.
func (u *Updater) Apply(ctx context.Context, evt events.AppointmentEvent) {
	log := u.logger.With("event_id", evt.EventID, "event_type", evt.EventType, "appointment_id", evt.AppointmentID)

	entry, err := entryFrom(evt, u.now())
	if err != nil {
		log.Warn("dropping invalid event", "err", err)
		u.outcome("invalid")
		return
	}

	// Each event lands in exactly one outcome; unkeyed stands in for applied.
	outcome := "applied"
	if evt.EventID == "" {
		log.Warn("event has no event id, applying without duplicate check")
		outcome = "unkeyed"
	}
	err = u.tx.InTx(ctx, func(tx pgx.Tx) error {
		if evt.EventID != "" && !u.ledger.ShouldProcess(ctx, tx, evt.EventID) {
			outcome = "duplicate"
			return nil
		}
		applied, err := u.store.Upsert(ctx, tx, entry)
		if err != nil {
			return err
		}
		if !applied {
			outcome = "stale"
		}
		if evt.EventID != "" {
			return u.ledger.MarkProcessed(ctx, tx, evt.EventID, evt.EventType)
		}
		return nil
	})
	if err != nil {
		log.Error("projection update failed", "err", err)
		u.outcome("failed")
		return
	}
	u.outcome(outcome)
	switch outcome {
	case "duplicate":
		log.Info("event already processed, skipping")
	case "stale":
		log.Info("event older than stored state, ledger updated only")
	default:
		log.Debug("projection updated", "status", entry.Status)
	}
}

// HandleMessage is the kafka handler. It always acknowledges the record.
func (u *Updater) HandleMessage(ctx context.Context, msg kafka.Message) error {
	evt, err := events.Unmarshal(msg.Value)
	if err != nil {
		u.logger.Warn("dropping undecodable event", "err", err,
			"partition", msg.Partition, "offset", msg.Offset, "key", string(msg.Key))
		u.outcome("invalid")
		return nil
	}
	meta := kafkax.ExtractEventMeta(msg)
	if evt.EventID == "" {
		evt.EventID = meta.EventID
	}
	if evt.EventType == "" {
		evt.EventType = meta.EventType
	}
	u.Apply(ctx, evt)
	return nil
}

func (u *Updater) outcome(o string) {
	if u.metrics != nil {
		u.metrics.HistoryEvents.WithLabelValues(o).Inc()
	}
}
