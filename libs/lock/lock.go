// Package lock provides a Redis-backed job lock with minimum and maximum hold
// times, used to keep periodic jobs single-active across service replicas.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

var (
	ErrEmptyName      = errors.New("lock name cannot be empty")
	ErrInvalidOptions = errors.New("lock max hold must be positive and not below min hold")
	ErrNotHeld        = errors.New("lock was not held or already expired")
)

// Options bound how long a lock is held.
//
// MaxHold is the expiry set at acquisition: a stuck holder loses the lock after
// MaxHold. MinHold keeps the lock after an early release so that a fast cycle
// cannot be repeated immediately by another replica.
type Options struct {
	MinHold time.Duration
	MaxHold time.Duration
}

func (o Options) validate() error {
	if o.MaxHold <= 0 || o.MinHold < 0 || o.MinHold > o.MaxHold {
		return ErrInvalidOptions
	}
	return nil
}

// Lease is a held lock.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker acquires named locks without waiting.
type Locker interface {
	TryLock(ctx context.Context, name string, opts Options) (Lease, bool, error)
}

type RedisLocker struct {
	rdb    redis.UniversalClient
	rs     *redsync.Redsync
	prefix string
	now    func() time.Time
}

func NewRedisLocker(rdb redis.UniversalClient, prefix string) *RedisLocker {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "lock"
	}
	return &RedisLocker{
		rdb:    rdb,
		rs:     redsync.New(goredis.NewPool(rdb)),
		prefix: prefix,
		now:    time.Now,
	}
}

// TryLock makes one acquisition attempt. A lock held elsewhere yields
// (nil, false, nil); only infrastructure failures return an error.
func (l *RedisLocker) TryLock(ctx context.Context, name string, opts Options) (Lease, bool, error) {
	if strings.TrimSpace(name) == "" {
		return nil, false, ErrEmptyName
	}
	if err := opts.validate(); err != nil {
		return nil, false, err
	}

	mutex := l.rs.NewMutex(l.prefix+":"+name,
		redsync.WithExpiry(opts.MaxHold),
		redsync.WithTries(1),
	)
	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) ||
			strings.Contains(err.Error(), "lock already taken") {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("acquire lock %s: %w", name, err)
	}

	return &lease{
		locker:     l,
		mutex:      mutex,
		minHold:    opts.MinHold,
		acquiredAt: l.now(),
	}, true, nil
}

// releaseScript deletes the key when the hold reached MinHold, otherwise
// shortens its TTL to the MinHold remainder. Ownership is checked by token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
  return 0
end
local remaining = tonumber(ARGV[2])
if remaining > 0 then
  redis.call("PEXPIRE", KEYS[1], remaining)
else
  redis.call("DEL", KEYS[1])
end
return 1
`)

type lease struct {
	locker     *RedisLocker
	mutex      *redsync.Mutex
	minHold    time.Duration
	acquiredAt time.Time
}

func (s *lease) Release(ctx context.Context) error {
	remaining := s.minHold - s.locker.now().Sub(s.acquiredAt)
	if remaining < 0 {
		remaining = 0
	}
	res, err := releaseScript.Run(ctx, s.locker.rdb,
		[]string{s.mutex.Name()},
		s.mutex.Value(), remaining.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", s.mutex.Name(), err)
	}
	if res == 0 {
		return ErrNotHeld
	}
	return nil
}
