// Package reminders queues AppointmentReminderRequested events for the next
// day's appointments.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clinicflow/libs/db"
	"github.com/md-rashed-zaman/clinicflow/libs/events"
	"github.com/md-rashed-zaman/clinicflow/libs/lock"
	"github.com/md-rashed-zaman/clinicflow/libs/metrics"
	"github.com/md-rashed-zaman/clinicflow/services/scheduler-service/internal/appointments"
	"github.com/md-rashed-zaman/clinicflow/services/scheduler-service/internal/outbox"
	"github.com/robfig/cron/v3"
)

const JobName = "appointment-reminders"

type Source interface {
	ListActiveBetween(ctx context.Context, tx pgx.Tx, from, to time.Time) ([]appointments.Details, error)
}

type Claimer interface {
	Claim(ctx context.Context, tx pgx.Tx, appointmentID uuid.UUID, day time.Time) (bool, error)
}

type OutboxWriter interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

type Config struct {
	Location *time.Location
	Lock     lock.Options
}

type Job struct {
	tx      db.TxRunner
	source  Source
	ledger  Claimer
	outbox  OutboxWriter
	locker  lock.Locker
	logger  *slog.Logger
	metrics *metrics.Metrics
	cfg     Config
	now     func() time.Time
}

func NewJob(tx db.TxRunner, source Source, ledger Claimer, ob OutboxWriter, locker lock.Locker, logger *slog.Logger, m *metrics.Metrics, cfg Config) *Job {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Job{
		tx:      tx,
		source:  source,
		ledger:  ledger,
		outbox:  ob,
		locker:  locker,
		logger:  logger.With("job", JobName),
		metrics: m,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Schedule registers the job on c under the given cron expression.
func (j *Job) Schedule(ctx context.Context, c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		if _, err := j.RunOnce(ctx); err != nil && ctx.Err() == nil {
			j.logger.Error("reminder run failed", "err", err)
		}
	})
}

// RunOnce queues one reminder per active appointment dated tomorrow in the
// configured location. Re-running on the same day queues nothing new.
func (j *Job) RunOnce(ctx context.Context) (int, error) {
	lease, acquired, err := j.locker.TryLock(ctx, JobName, j.cfg.Lock)
	if err != nil {
		return 0, fmt.Errorf("acquire reminder lock: %w", err)
	}
	if !acquired {
		j.logger.Debug("reminder run skipped, another instance holds the lock")
		return 0, nil
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, lock.ErrNotHeld) {
			j.logger.Error("release reminder lock", "err", err)
		}
	}()

	now := j.now().In(j.cfg.Location)
	from := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, j.cfg.Location)
	to := from.AddDate(0, 0, 1)

	queued := 0
	err = j.tx.InTx(ctx, func(tx pgx.Tx) error {
		queued = 0
		due, err := j.source.ListActiveBetween(ctx, tx, from, to)
		if err != nil {
			return fmt.Errorf("list appointments: %w", err)
		}
		for _, d := range due {
			claimed, err := j.ledger.Claim(ctx, tx, d.ID, from)
			if err != nil {
				return fmt.Errorf("claim reminder %s: %w", d.ID, err)
			}
			if !claimed {
				continue
			}
			evt, err := appointments.NewEvent(d, events.TypeAppointmentReminderRequested, now)
			if err != nil {
				return fmt.Errorf("encode reminder %s: %w", d.ID, err)
			}
			if err := j.outbox.Insert(ctx, tx, evt); err != nil {
				return fmt.Errorf("write reminder %s: %w", d.ID, err)
			}
			queued++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	j.metrics.RemindersQueued.Add(float64(queued))
	j.logger.Info("reminders queued", "count", queued, "day", from.Format(time.DateOnly))
	return queued, nil
}
