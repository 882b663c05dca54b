// Package metrics holds the Prometheus instruments of the event pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "clinicflow"

type Metrics struct {
	OutboxPublished     prometheus.Counter
	OutboxCycles        *prometheus.CounterVec
	OutboxCycleDuration prometheus.Histogram
	OutboxPurged        prometheus.Counter
	RemindersQueued     prometheus.Counter

	ConsumerRetries *prometheus.CounterVec
	DeadLetters     *prometheus.CounterVec

	Notifications *prometheus.CounterVec
	HistoryEvents *prometheus.CounterVec
}

// NewRegistry returns a registry preloaded with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// MustRegister creates every instrument on reg. It panics on duplicate registration.
func MustRegister(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		OutboxPublished: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "published_total",
			Help:      "Outbox rows published to Kafka and marked processed.",
		}),
		OutboxCycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "cycles_total",
			Help:      "Relay poll cycles by result (published, empty, skipped, failed).",
		}, []string{"result"}),
		OutboxCycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of relay poll cycles that acquired the lock.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		OutboxPurged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "purged_total",
			Help:      "Processed outbox rows removed by retention.",
		}),
		RemindersQueued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "queued_total",
			Help:      "Reminder events written to the outbox.",
		}),
		ConsumerRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consumer",
			Name:      "retries_total",
			Help:      "Handler retries performed by the transport-level error handler.",
		}, []string{"topic"}),
		DeadLetters: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consumer",
			Name:      "dead_letters_total",
			Help:      "Records routed to a dead-letter topic.",
		}, []string{"topic"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "outcomes_total",
			Help:      "Notification dispatch outcomes by channel.",
		}, []string{"channel", "outcome"}),
		HistoryEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "events_total",
			Help:      "Inbound events seen by the projection updater by outcome.",
		}, []string{"outcome"}),
	}
}
