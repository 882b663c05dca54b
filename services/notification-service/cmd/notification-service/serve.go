package main

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/clinicflow/libs/db"
	"github.com/md-rashed-zaman/clinicflow/libs/grpcx"
	"github.com/md-rashed-zaman/clinicflow/libs/httpx"
	"github.com/md-rashed-zaman/clinicflow/libs/kafkax"
	"github.com/md-rashed-zaman/clinicflow/libs/metrics"
	otelx "github.com/md-rashed-zaman/clinicflow/libs/otel"
	"github.com/md-rashed-zaman/clinicflow/libs/runtime"
	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/breaker"
	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/deadletter"
	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/email"
	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/notifications"
	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/retry"
	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/sms"
	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/storage"
	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := runtime.NewLogger(cfg.Service, cfg.Log.Level)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, cfg.Service, cfg.Otel)
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	pool, err := db.Open(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	reg := metrics.NewRegistry()
	m := metrics.MustRegister(reg)

	emailSender := breaker.Wrap("smtp", email.NewSMTPSender(email.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		From:     cfg.SMTP.From,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		Timeout:  cfg.SMTP.Timeout,
	}), cfg.Breaker, logger)

	var smsSender notifications.Sender
	if cfg.SMS.Enabled {
		smsSender = breaker.Wrap("sms", sms.NewWebhookSender(cfg.SMS), cfg.Breaker, logger)
	}

	dispatcher := notifications.NewDispatcher(storage.NewRepository(pool), emailSender, smsSender, logger, m, notifications.Config{
		MaxAttempts:     cfg.Notifications.MaxAttempts,
		LastErrorMaxLen: cfg.Notifications.LastErrorMaxLen,
	})

	dltTopic := kafkax.DeadLetterTopic(cfg.Kafka.Topic)
	dltWriter := kafkax.NewWriter(kafkax.WriterConfig{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        dltTopic,
		WriteTimeout: cfg.Consumer.DLTWriteTimeout,
	})
	defer dltWriter.Close()

	retrying := retry.New(dispatcher.HandleMessage, dltWriter, logger, m, retry.Config{
		Backoff:    cfg.Consumer.RetryBackoff,
		MaxRetries: cfg.Consumer.RetryMaxRetries,
	})
	events := kafkax.NewConsumer(logger, kafkax.ConsumerConfig{
		Brokers:      cfg.Kafka.Brokers,
		GroupID:      cfg.Kafka.GroupID,
		Topic:        cfg.Kafka.Topic,
		RestartDelay: cfg.Consumer.RestartDelay,
	}, retrying.Handle)
	deadLetters := kafkax.NewConsumer(logger, kafkax.ConsumerConfig{
		Brokers:      cfg.Kafka.Brokers,
		GroupID:      cfg.Consumer.DLTGroupID,
		Topic:        dltTopic,
		RestartDelay: cfg.Consumer.RestartDelay,
	}, deadletter.NewLogger(logger).Handle)

	base := runtime.NewBaseMux(reg,
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.Kafka.Brokers)},
	)
	router := httpx.NewRouter(logger, base)

	grpcSrv, health := grpcx.NewServer(logger)
	health.SetServingStatus(cfg.Service, healthpb.HealthCheckResponse_SERVING)

	return runtime.RunTasks(ctx, logger,
		runtime.Task{Name: "http", Run: func(ctx context.Context) error {
			return httpx.Serve(ctx, logger, cfg.Service, cfg.HTTP.Addr, router)
		}},
		runtime.Task{Name: "grpc", Run: func(ctx context.Context) error {
			return grpcx.Serve(ctx, logger, cfg.GRPC.Addr, grpcSrv)
		}},
		runtime.Task{Name: "appointment-events-consumer", Run: events.Run},
		runtime.Task{Name: "dead-letter-consumer", Run: deadLetters.Run},
	)
}
