// Package retry is the transport-level error handler of the notification
// consumer: a failing record is retried with a constant backoff and, once
// the attempts are exhausted, copied to the dead-letter topic so the
// partition can move on.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/clinicflow/libs/kafkax"
	"github.com/md-rashed-zaman/clinicflow/libs/metrics"
)

const (
	HeaderExceptionMessage  = "x-exception-message"
	HeaderOriginalTopic     = "x-original-topic"
	HeaderOriginalPartition = "x-original-partition"
	HeaderOriginalOffset    = "x-original-offset"
)

type Config struct {
	Backoff    time.Duration
	MaxRetries int
}

type Handler struct {
	next    kafkax.Handler
	dlt     kafkax.MessageWriter
	logger  *slog.Logger
	metrics *metrics.Metrics
	cfg     Config
}

// New wraps next. dlt must be bound to the dead-letter topic.
func New(next kafkax.Handler, dlt kafkax.MessageWriter, logger *slog.Logger, m *metrics.Metrics, cfg Config) *Handler {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Handler{next: next, dlt: dlt, logger: logger, metrics: m, cfg: cfg}
}

// Handle returns nil once the record was handled or dead-lettered. An error
// means neither happened and the record must not be committed.
func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	log := h.logger.With("topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset,
		"event_id", kafkax.HeaderValue(msg.Headers, kafkax.HeaderEventID))

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, h.next(ctx, msg)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(h.cfg.Backoff)),
		backoff.WithMaxTries(uint(h.cfg.MaxRetries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			h.metrics.ConsumerRetries.WithLabelValues(msg.Topic).Inc()
			log.Warn("handler failed, retrying", "err", err, "backoff", next)
		}),
	)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return h.deadLetter(ctx, log, msg, err)
}

func (h *Handler) deadLetter(ctx context.Context, log *slog.Logger, msg kafka.Message, cause error) error {
	headers := make([]kafka.Header, 0, len(msg.Headers)+4)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: HeaderExceptionMessage, Value: []byte(cause.Error())},
		kafka.Header{Key: HeaderOriginalTopic, Value: []byte(msg.Topic)},
		kafka.Header{Key: HeaderOriginalPartition, Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: HeaderOriginalOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
	)
	out := kafka.Message{Key: msg.Key, Value: msg.Value, Headers: headers}
	if err := h.dlt.WriteMessages(ctx, out); err != nil {
		return fmt.Errorf("dead-letter record %s/%d@%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
	}
	h.metrics.DeadLetters.WithLabelValues(msg.Topic).Inc()
	log.Error("record dead-lettered after exhausting retries", "err", cause, "attempts", h.cfg.MaxRetries+1)
	return nil
}
