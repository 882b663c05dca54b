package main

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/clinicflow/libs/auth"
	"github.com/md-rashed-zaman/clinicflow/libs/db"
	"github.com/md-rashed-zaman/clinicflow/libs/grpcx"
	"github.com/md-rashed-zaman/clinicflow/libs/httpx"
	"github.com/md-rashed-zaman/clinicflow/libs/kafkax"
	"github.com/md-rashed-zaman/clinicflow/libs/lock"
	"github.com/md-rashed-zaman/clinicflow/libs/metrics"
	otelx "github.com/md-rashed-zaman/clinicflow/libs/otel"
	"github.com/md-rashed-zaman/clinicflow/libs/redisx"
	"github.com/md-rashed-zaman/clinicflow/libs/runtime"
	"github.com/md-rashed-zaman/clinicflow/services/scheduler-service/internal/appointments"
	"github.com/md-rashed-zaman/clinicflow/services/scheduler-service/internal/handlers"
	"github.com/md-rashed-zaman/clinicflow/services/scheduler-service/internal/outbox"
	"github.com/md-rashed-zaman/clinicflow/services/scheduler-service/internal/reminders"
	"github.com/md-rashed-zaman/clinicflow/services/scheduler-service/internal/users"
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

	rdb := redisx.NewClient(cfg.Redis)
	defer rdb.Close()

	reg := metrics.NewRegistry()
	m := metrics.MustRegister(reg)

	writer := kafkax.NewWriter(kafkax.WriterConfig{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.Topic,
		WriteTimeout: cfg.Relay.WriteTimeout,
	})
	defer writer.Close()

	locker := lock.NewRedisLocker(rdb, cfg.Service)
	outboxRepo := outbox.NewRepository(pool)
	apptRepo := appointments.NewRepository(pool)
	userRepo := users.NewRepository(pool)
	svc := appointments.NewService(pool, apptRepo, outboxRepo, userRepo, logger)

	relay := outbox.NewRelay(pool, outboxRepo, writer, locker, logger, m, outbox.RelayConfig{
		BatchSize:    cfg.Relay.BatchSize,
		PollDelay:    cfg.Relay.PollDelay,
		InitialDelay: cfg.Relay.InitialDelay,
		Lock:         lock.Options{MinHold: cfg.Relay.LockMinHold, MaxHold: cfg.Relay.LockMaxHold},
	})

	scheduler := runtime.NewCron(logger, cfg.ReminderLocation())
	if cfg.Reminders.Enabled {
		job := reminders.NewJob(pool, apptRepo, reminders.NewLedger(), outboxRepo, locker, logger, m, reminders.Config{
			Location: cfg.ReminderLocation(),
			Lock:     lock.Options{MinHold: cfg.Reminders.LockMinHold, MaxHold: cfg.Reminders.LockMaxHold},
		})
		if _, err := job.Schedule(ctx, scheduler, cfg.Reminders.Schedule); err != nil {
			return err
		}
	}
	if _, err := scheduler.AddFunc(cfg.Relay.PurgeSchedule, func() {
		n, err := outboxRepo.PurgeProcessed(ctx, cfg.Relay.Retention)
		if err != nil {
			logger.Error("outbox purge failed", "err", err)
			return
		}
		m.OutboxPurged.Add(float64(n))
		logger.Info("outbox purged", "rows", n)
	}); err != nil {
		return err
	}

	base := runtime.NewBaseMux(reg,
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "redis", Check: redisx.ReadyCheck(rdb)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.Kafka.Brokers)},
	)
	limiter := httpx.NewRedisRateLimiter(logger, rdb, cfg.RateLimit, cfg.Service+":rl")
	router := handlers.NewRouter(logger, base, auth.NewVerifier(cfg.Auth.JWTSecret), limiter.Middleware,
		handlers.NewAppointmentHandler(svc, logger),
		handlers.NewUserHandler(userRepo, logger),
	)

	grpcSrv, health := grpcx.NewServer(logger)
	health.SetServingStatus(cfg.Service, healthpb.HealthCheckResponse_SERVING)

	return runtime.RunTasks(ctx, logger,
		runtime.Task{Name: "http", Run: func(ctx context.Context) error {
			return httpx.Serve(ctx, logger, cfg.Service, cfg.HTTP.Addr, router)
		}},
		runtime.Task{Name: "grpc", Run: func(ctx context.Context) error {
			return grpcx.Serve(ctx, logger, cfg.GRPC.Addr, grpcSrv)
		}},
		runtime.Task{Name: outbox.RelayJobName, Run: relay.Run},
		runtime.Task{Name: "cron", Run: runtime.CronTask(scheduler)},
	)
}
