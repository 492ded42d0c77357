package ratelimitsvc

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

// mockable
var nowFunc = time.Now

// Limiter allows at most a fixed number of hits per key and window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type window struct {
	start time.Time
	hits  int
}

type memoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]*window
}

var _ Limiter = (*memoryLimiter)(nil)

func NewMemoryLimiter(limit int, win time.Duration) Limiter {
	return &memoryLimiter{limit: limit, window: win, windows: make(map[string]*window)}
}

func (l *memoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	now := nowFunc()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.window {
		l.gc(now)
		w = &window{start: now}
		l.windows[key] = w
	}
	w.hits++
	return w.hits <= l.limit, nil
}

// gc drops expired windows; callers hold the lock.
func (l *memoryLimiter) gc(now time.Time) {
	for k, w := range l.windows {
		if now.Sub(w.start) >= l.window {
			delete(l.windows, k)
		}
	}
}

type redisLimiter struct {
	rdb    goredis.Cmdable
	prefix string
	limit  int
	window time.Duration
}

var _ Limiter = (*redisLimiter)(nil)

// NewRedisLimiter shares its counters with every instance using the same prefix.
func NewRedisLimiter(rdb goredis.Cmdable, prefix string, limit int, win time.Duration) Limiter {
	return &redisLimiter{rdb: rdb, prefix: prefix, limit: limit, window: win}
}

func (l *redisLimiter) key(key string) string {
	slot := nowFunc().UnixNano() / int64(l.window)
	return l.prefix + ":" + key + ":" + strconv.FormatInt(slot, 10)
}

func (l *redisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	k := l.key(key)

	var incr *goredis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.Expire(ctx, k, l.window)
		return nil
	})
	if err != nil {
		return false, errors.Wrap(err, "counting hits")
	}
	return incr.Val() <= int64(l.limit), nil
}
