package main

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/clinicflow/libs/auth"
	"github.com/md-rashed-zaman/clinicflow/libs/db"
	"github.com/md-rashed-zaman/clinicflow/libs/grpcx"
	"github.com/md-rashed-zaman/clinicflow/libs/httpx"
	"github.com/md-rashed-zaman/clinicflow/libs/kafkax"
	"github.com/md-rashed-zaman/clinicflow/libs/metrics"
	otelx "github.com/md-rashed-zaman/clinicflow/libs/otel"
	"github.com/md-rashed-zaman/clinicflow/libs/redisx"
	"github.com/md-rashed-zaman/clinicflow/libs/runtime"
	"github.com/md-rashed-zaman/clinicflow/services/history-service/internal/handlers"
	"github.com/md-rashed-zaman/clinicflow/services/history-service/internal/ledger"
	"github.com/md-rashed-zaman/clinicflow/services/history-service/internal/projection"
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

	repo := projection.NewRepository(pool)
	updater := projection.NewUpdater(pool, ledger.NewGuard(logger), repo, logger, m)
	consumer := kafkax.NewConsumer(logger, kafkax.ConsumerConfig{
		Brokers:      cfg.Kafka.Brokers,
		GroupID:      cfg.Kafka.GroupID,
		Topic:        cfg.Kafka.Topic,
		RestartDelay: cfg.Consumer.RestartDelay,
	}, updater.HandleMessage)

	retention := ledger.NewRetention(pool)
	scheduler := runtime.NewCron(logger, time.UTC)
	if _, err := scheduler.AddFunc(cfg.Ledger.PruneSchedule, func() {
		n, err := retention.Prune(ctx, cfg.Ledger.Retention)
		if err != nil {
			logger.Error("ledger prune failed", "err", err)
			return
		}
		logger.Info("ledger pruned", "rows", n)
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
		handlers.NewHistoryHandler(projection.NewService(repo), logger),
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
		runtime.Task{Name: "appointment-events-consumer", Run: consumer.Run},
		runtime.Task{Name: "cron", Run: runtime.CronTask(scheduler)},
	)
}
