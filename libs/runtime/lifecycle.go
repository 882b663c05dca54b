package runtime

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
)

func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// Task is a long-running component that returns when ctx is cancelled.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// RunTasks starts every task and waits for all of them. The first task to fail
// cancels the others; context cancellation is treated as a clean stop.
func RunTasks(ctx context.Context, logger *slog.Logger, tasks ...Task) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		g.Go(func() error {
			logger.Info("task starting", "task", task.Name)
			err := task.Run(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("task stopped", "task", task.Name, "err", err)
				return err
			}
			logger.Info("task stopped", "task", task.Name)
			return nil
		})
	}
	return g.Wait()
}
