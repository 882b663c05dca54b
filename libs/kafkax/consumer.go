package kafkax

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Handler processes one record. A nil return acknowledges (commits) it.
type Handler func(ctx context.Context, msg kafka.Message) error

// Reader is the subset of *kafka.Reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ConsumerConfig struct {
	Brokers []string
	GroupID string
	Topic   string
	// RestartDelay is the pause before re-reading from the last committed
	// offset after a handler failure.
	RestartDelay time.Duration
}

// Consumer commits each record only after its handler succeeded. When the
// handler fails the reader is reopened, so consumption resumes from the last
// committed offset and the failed record is delivered again.
type Consumer struct {
	logger       *slog.Logger
	topic        string
	handler      Handler
	newReader    func() Reader
	restartDelay time.Duration
}

func NewConsumer(logger *slog.Logger, cfg ConsumerConfig, handler Handler) *Consumer {
	brokers := SplitBrokers(cfg.Brokers...)
	return newConsumer(logger, cfg, handler, func() Reader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			GroupID:        cfg.GroupID,
			Topic:          cfg.Topic,
			MinBytes:       1,
			MaxBytes:       10e6,
			CommitInterval: 0,
		})
	})
}

func newConsumer(logger *slog.Logger, cfg ConsumerConfig, handler Handler, newReader func() Reader) *Consumer {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = time.Second
	}
	return &Consumer{
		logger:       logger.With("topic", cfg.Topic, "group", cfg.GroupID),
		topic:        cfg.Topic,
		handler:      handler,
		newReader:    newReader,
		restartDelay: cfg.RestartDelay,
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	for {
		reader := c.newReader()
		err := c.consume(ctx, reader)
		_ = reader.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("consumer restarting from last committed offset", "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.restartDelay):
		}
	}
}

// consume returns the first handler error; fetch errors are retried in place.
func (c *Consumer) consume(ctx context.Context, reader Reader) error {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("kafka fetch error", "err", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		if err := c.process(ctx, msg); err != nil {
			return err
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("kafka commit error", "err", err, "partition", msg.Partition, "offset", msg.Offset)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	ctxMsg := ExtractTraceContext(ctx, msg)
	ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.Int("messaging.kafka.partition", msg.Partition),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
		),
	)
	defer span.End()

	if err := c.handler(ctxSpan, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler failed")
		c.logger.Error("handler error", "err", err,
			"event_id", HeaderValue(msg.Headers, HeaderEventID),
			"partition", msg.Partition, "offset", msg.Offset)
		return err
	}
	return nil
}
