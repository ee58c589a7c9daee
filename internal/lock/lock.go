package lock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/order-financials/internal/resilience"
)

// Locker serialises work on a key. Implementations release the lock once fn returns.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}

// Redis holds a SETNX lease per key so replicas sharing the same Redis edit a draft one at a time.
type Redis struct {
	R            *redis.Client
	Prefix       string
	TTL          time.Duration
	RetryBackoff time.Duration
}

const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`

// WithLock runs fn while holding the lease for key. It keeps retrying with jittered backoff
// until the lease is free or ctx is done.
func (l Redis) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	ttl := l.TTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	base := l.RetryBackoff
	if base <= 0 {
		base = 20 * time.Millisecond
	}
	redisKey := l.Prefix + key
	token := uuid.NewString()

	for attempt := 1; ; attempt++ {
		ok, err := l.R.SetNX(ctx, redisKey, token, ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			defer l.release(redisKey, token)
			return fn(ctx)
		}
		// cap the exponent so waits stay short
		wait := resilience.Backoff(base, min(attempt, 5), 0.2)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l Redis) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.R.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unknown command") {
			_ = l.R.Del(ctx, key).Err()
		}
	}
}

// Local serialises work per key within one process.
type Local struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// NewLocal constructs an in-process locker.
func NewLocal() *Local {
	return &Local{locks: make(map[string]*entry)}
}

// WithLock runs fn while holding the mutex for key. Entries are dropped once unused.
func (l *Local) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*entry)
	}
	e, ok := l.locks[key]
	if !ok {
		e = &entry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	defer func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}()
	return fn(ctx)
}
