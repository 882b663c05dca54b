package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clinicflow/libs/db"
	"github.com/md-rashed-zaman/clinicflow/libs/kafkax"
	"github.com/md-rashed-zaman/clinicflow/libs/lock"
	"github.com/md-rashed-zaman/clinicflow/libs/metrics"
	otelx "github.com/md-rashed-zaman/clinicflow/libs/otel"
	"github.com/segmentio/kafka-go"
)

// RelayJobName keys the distributed lock shared by every scheduler replica.
const RelayJobName = "outbox-relay"

// Store is the part of Repository the relay drives.
type Store interface {
	FetchUnprocessed(ctx context.Context, tx pgx.Tx, limit int) ([]Record, error)
	MarkProcessed(ctx context.Context, tx pgx.Tx, ids []int64) error
}

type RelayConfig struct {
	BatchSize    int
	PollDelay    time.Duration
	InitialDelay time.Duration
	Lock         lock.Options
}

// Relay publishes outbox rows to Kafka. One poll cycle is one transaction: the
// batch is marked processed only when every row in it was acknowledged.
type Relay struct {
	tx      db.TxRunner
	store   Store
	writer  kafkax.MessageWriter
	locker  lock.Locker
	logger  *slog.Logger
	metrics *metrics.Metrics
	cfg     RelayConfig
}

func NewRelay(tx db.TxRunner, store Store, writer kafkax.MessageWriter, locker lock.Locker, logger *slog.Logger, m *metrics.Metrics, cfg RelayConfig) *Relay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.PollDelay <= 0 {
		cfg.PollDelay = 5 * time.Second
	}
	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = 0
	}
	return &Relay{
		tx:      tx,
		store:   store,
		writer:  writer,
		locker:  locker,
		logger:  logger.With("job", RelayJobName),
		metrics: m,
		cfg:     cfg,
	}
}

// Run polls after InitialDelay and then PollDelay after each completed cycle,
// so cycles on one instance never overlap.
func (r *Relay) Run(ctx context.Context) error {
	timer := time.NewTimer(r.cfg.InitialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		n, err := r.PollAndRelay(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			r.logger.Error("outbox relay cycle failed", "err", err)
		case n > 0:
			r.logger.Debug("outbox relay cycle published", "count", n)
		}
		timer.Reset(r.cfg.PollDelay)
	}
}

// PollAndRelay runs one cycle and returns the number of rows published. A
// cycle that loses the lock race publishes nothing and is not an error.
func (r *Relay) PollAndRelay(ctx context.Context) (int, error) {
	lease, acquired, err := r.locker.TryLock(ctx, RelayJobName, r.cfg.Lock)
	if err != nil {
		r.metrics.OutboxCycles.WithLabelValues("failed").Inc()
		return 0, fmt.Errorf("acquire relay lock: %w", err)
	}
	if !acquired {
		r.metrics.OutboxCycles.WithLabelValues("skipped").Inc()
		return 0, nil
	}
	defer r.release(ctx, lease)

	start := time.Now()
	published := 0
	err = r.tx.InTx(ctx, func(tx pgx.Tx) error {
		records, err := r.store.FetchUnprocessed(ctx, tx, r.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		if len(records) == 0 {
			return nil
		}

		ids := make([]int64, 0, len(records))
		for _, rec := range records {
			if err := r.publish(ctx, rec); err != nil {
				return fmt.Errorf("publish event %s (aggregate %s): %w", rec.EventID, rec.AggregateID, err)
			}
			ids = append(ids, rec.ID)
		}
		if err := r.store.MarkProcessed(ctx, tx, ids); err != nil {
			return fmt.Errorf("mark outbox batch processed: %w", err)
		}
		published = len(ids)
		return nil
	})
	r.metrics.OutboxCycleDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		r.metrics.OutboxCycles.WithLabelValues("failed").Inc()
		return 0, err
	}
	if published == 0 {
		r.metrics.OutboxCycles.WithLabelValues("empty").Inc()
		return 0, nil
	}
	r.metrics.OutboxCycles.WithLabelValues("published").Inc()
	r.metrics.OutboxPublished.Add(float64(published))
	return published, nil
}

func (r *Relay) publish(ctx context.Context, rec Record) error {
	msgCtx := otelx.ContextWithTraceContext(ctx, rec.Traceparent, rec.Tracestate)
	meta := kafkax.EventMeta{
		EventID:       rec.EventID,
		EventType:     rec.EventType,
		AggregateType: rec.AggregateType,
	}
	msg := kafka.Message{
		Key:     []byte(rec.AggregateID),
		Value:   rec.Payload,
		Headers: kafkax.InjectTraceHeaders(msgCtx, meta.Headers()),
	}
	return r.writer.WriteMessages(ctx, msg)
}

func (r *Relay) release(ctx context.Context, lease lock.Lease) {
	err := lease.Release(context.WithoutCancel(ctx))
	switch {
	case errors.Is(err, lock.ErrNotHeld):
		r.logger.Warn("relay lock expired before the cycle finished")
	case err != nil:
		r.logger.Error("release relay lock", "err", err)
	}
}
