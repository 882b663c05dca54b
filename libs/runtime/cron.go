package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "err", err)...)
}

// NewCron returns a scheduler that skips a run while the previous one is
// still going and recovers panicking jobs.
func NewCron(logger *slog.Logger, loc *time.Location) *cron.Cron {
	if loc == nil {
		loc = time.UTC
	}
	l := cronLogger{logger: logger.With("component", "cron")}
	return cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
}

// CronTask runs c until ctx is cancelled and waits for running jobs to finish.
func CronTask(c *cron.Cron) func(context.Context) error {
	return func(ctx context.Context) error {
		c.Start()
		<-ctx.Done()
		<-c.Stop().Done()
		return ctx.Err()
	}
}
