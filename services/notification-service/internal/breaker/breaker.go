// Package breaker guards a notification channel with a circuit breaker so a
// dead provider fails fast instead of holding consumer goroutines on timeouts.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/notifications"
)

type Config struct {
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
	MinRequests         uint32        `mapstructure:"min_requests"`
	FailureRatio        float64       `mapstructure:"failure_ratio"`
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
}

// ErrUnavailable wraps rejections made while the breaker is open or half-open.
var ErrUnavailable = errors.New("notification channel unavailable")

type Sender struct {
	next    notifications.Sender
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

var _ notifications.Sender = (*Sender)(nil)

func Wrap(name string, next notifications.Sender, cfg Config, logger *slog.Logger) *Sender {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	s := &Sender{next: next, logger: logger.With("breaker", name)}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= cfg.ConsecutiveFailures {
				return true
			}
			if cfg.MinRequests == 0 || counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("circuit breaker state changed", "from", from.String(), "to", to.String())
		},
	})
	return s
}

func (s *Sender) Send(ctx context.Context, msg notifications.Message) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.next.Send(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, s.breaker.Name(), err)
	}
	return err
}

func (s *Sender) State() gobreaker.State {
	return s.breaker.State()
}
