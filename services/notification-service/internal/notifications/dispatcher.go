package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/clinicflow/libs/events"
	"github.com/md-rashed-zaman/clinicflow/libs/metrics"
)

type Config struct {
	MaxAttempts     int
	LastErrorMaxLen int
}

// Dispatcher applies the per-notification state machine:
//
//	PENDING -> SENT
//	PENDING -> FAILED -> ... -> SENT
//	FAILED[attempts=MaxAttempts] is terminal
//
// A send failure is returned so the transport can retry the record.
type Dispatcher struct {
	store   Store
	senders map[Channel]Sender
	logger  *slog.Logger
	metrics *metrics.Metrics
	cfg     Config
	now     func() time.Time
}

// NewDispatcher requires an email sender. sms may be nil when SMS delivery is off.
func NewDispatcher(store Store, email, sms Sender, logger *slog.Logger, m *metrics.Metrics, cfg Config) *Dispatcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.LastErrorMaxLen <= 0 {
		cfg.LastErrorMaxLen = 500
	}
	senders := map[Channel]Sender{ChannelEmail: email}
	if sms != nil {
		senders[ChannelSMS] = sms
	}
	return &Dispatcher{
		store:   store,
		senders: senders,
		logger:  logger,
		metrics: m,
		cfg:     cfg,
		now:     time.Now,
	}
}

func (d *Dispatcher) Handle(ctx context.Context, evt events.AppointmentEvent) error {
	typ, ok := TypeFor(evt.EventType)
	if !ok {
		d.logger.Debug("event does not trigger a notification", "event_type", evt.EventType, "event_id", evt.EventID)
		return nil
	}
	if evt.AppointmentID == "" {
		d.logger.Warn("dropping event without appointment id", "event_type", evt.EventType, "event_id", evt.EventID)
		return nil
	}

	var errs []error
	for _, ch := range d.channelsFor(evt) {
		key := Key{AppointmentID: evt.AppointmentID, Type: typ, Channel: ch}
		if err := d.dispatch(ctx, key, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) channelsFor(evt events.AppointmentEvent) []Channel {
	var out []Channel
	if evt.PatientEmail != "" {
		out = append(out, ChannelEmail)
	} else {
		d.logger.Warn("event has no patient email", "appointment_id", evt.AppointmentID, "event_id", evt.EventID)
	}
	if _, ok := d.senders[ChannelSMS]; ok && evt.PatientPhone != "" {
		out = append(out, ChannelSMS)
	}
	return out
}

func (d *Dispatcher) dispatch(ctx context.Context, key Key, evt events.AppointmentEvent) error {
	log := d.logger.With("appointment_id", key.AppointmentID, "type", key.Type, "channel", key.Channel, "event_id", evt.EventID)

	rec, found, err := d.store.Find(ctx, key)
	if err != nil {
		return fmt.Errorf("find notification: %w", err)
	}
	if !found {
		rec = Record{
			ID:            uuid.New(),
			AppointmentID: key.AppointmentID,
			PatientID:     evt.PatientID,
			Type:          key.Type,
			Channel:       key.Channel,
			Status:        StatusPending,
			ScheduledFor:  d.now().UTC(),
			EventID:       evt.EventID,
		}
		if err := d.store.Create(ctx, rec); err != nil {
			if errors.Is(err, ErrDuplicate) {
				log.Info("notification created concurrently, skipping")
				d.outcome(key.Channel, "duplicate")
				return nil
			}
			return fmt.Errorf("create notification: %w", err)
		}
	}

	switch rec.Status {
	case StatusSent:
		log.Debug("notification already sent")
		d.outcome(key.Channel, "duplicate")
		return nil
	case StatusFailed:
		if rec.Attempts >= d.cfg.MaxAttempts {
			log.Warn("notification permanently failed, manual intervention required", "attempts", rec.Attempts)
			d.outcome(key.Channel, "exhausted")
			return nil
		}
		log.Info("retrying failed notification", "attempts", rec.Attempts)
	}

	return d.attempt(ctx, log, rec, evt)
}

func (d *Dispatcher) attempt(ctx context.Context, log *slog.Logger, rec Record, evt events.AppointmentEvent) error {
	sender := d.senders[rec.Channel]
	msg := compose(rec.Type, rec.Channel, evt)

	if sendErr := sender.Send(ctx, msg); sendErr != nil {
		attempts := rec.Attempts + 1
		lastErr := truncate(sendErr.Error(), d.cfg.LastErrorMaxLen)
		d.outcome(rec.Channel, "failed")
		log.Error("notification send failed", "err", sendErr, "attempts", attempts)
		if err := d.store.MarkFailed(ctx, rec.ID, attempts, lastErr); err != nil {
			return errors.Join(
				fmt.Errorf("send notification: %w", sendErr),
				fmt.Errorf("mark notification failed: %w", err),
			)
		}
		return fmt.Errorf("send %s notification for appointment %s: %w", rec.Channel, rec.AppointmentID, sendErr)
	}

	if err := d.store.MarkSent(ctx, rec.ID, d.now().UTC()); err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	d.outcome(rec.Channel, "sent")
	log.Info("notification sent", "attempts", rec.Attempts+1)
	return nil
}

func (d *Dispatcher) outcome(ch Channel, outcome string) {
	if d.metrics != nil {
		d.metrics.Notifications.WithLabelValues(string(ch), outcome).Inc()
	}
}
