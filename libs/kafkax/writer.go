package kafkax

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type WriterConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// NewWriter returns a synchronous writer: WriteMessages returns only after
// every in-sync replica acknowledged the batch. Keys are hash-partitioned so
// one aggregate always lands on one partition.
func NewWriter(cfg WriterConfig) *kafka.Writer {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(SplitBrokers(cfg.Brokers...)...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
	}
}
