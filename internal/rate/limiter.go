package rate

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goGuard/attempt"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "ggu"

// Config holds limiter tuning parameters.
type Config struct {
	Limit  int
	Window time.Duration
	// Prefix namespaces Redis keys; empty = "ggu".
	Prefix string
}

// Validate checks Limit and Window.
func (c Config) Validate() error {
	if c.Limit <= 0 {
		return errors.New("upstream Limit must be > 0")
	}
	if c.Window <= 0 {
		return errors.New("upstream Window must be > 0")
	}
	return nil
}

// Result is the outcome of one Allow call.
type Result struct {
	Allowed bool
	Count   int64
	// RetryAfter is set when Allowed is false.
	RetryAfter time.Duration
}

// Limiter counts requests per key in a fixed window.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// RedisLimiter enforces the window with Redis counters, shared by every
// process using the same prefix.
type RedisLimiter struct {
	redis  redis.UniversalClient
	config Config
}

// NewRedis creates a [RedisLimiter] backed by the given Redis client.
func NewRedis(redisClient redis.UniversalClient, cfg Config) *RedisLimiter {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	return &RedisLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Allow records one request for key and reports whether it fits the window.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	redisKey := l.config.Prefix + ":" + key

	count, err := l.incrementWithTTL(ctx, redisKey, l.config.Window)
	if err != nil {
		return Result{Allowed: true}, err
	}
	if count <= int64(l.config.Limit) {
		return Result{Allowed: true, Count: count}, nil
	}

	ttl, err := l.redis.PTTL(ctx, redisKey).Result()
	if err != nil || ttl < 0 {
		ttl = l.config.Window
	}
	return Result{Allowed: false, Count: count, RetryAfter: ttl}, nil
}

func (l *RedisLimiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.PExpire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

// pruneEvery is how many Allow calls pass between idle-window sweeps.
const pruneEvery = 4096

// MemoryLimiter enforces the window in process memory. Keys live in a sharded
// [attempt.MemoryStore], so requests for different keys never share a lock.
type MemoryLimiter struct {
	config Config
	clock  func() time.Time
	window attempt.Window
	store  *attempt.MemoryStore
	calls  atomic.Uint64
}

// NewMemory creates a [MemoryLimiter]. clock may be nil.
func NewMemory(cfg Config, clock func() time.Time) *MemoryLimiter {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryLimiter{
		config: cfg,
		clock:  clock,
		window: attempt.Window{Duration: cfg.Window},
		store:  attempt.NewMemoryStore(),
	}
}

// Allow records one request for key and reports whether it fits the window.
// The window restarts once more than Window has passed since its first request.
func (l *MemoryLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := l.clock()

	if l.calls.Add(1)%pruneEvery == 0 {
		if _, err := l.store.EvictIdle(ctx, now, l.config.Window); err != nil {
			return Result{}, err
		}
	}

	rec, err := l.store.IncrementAndGet(ctx, key, now, l.window)
	if err != nil {
		return Result{}, err
	}

	count := int64(rec.Count)
	if count <= int64(l.config.Limit) {
		return Result{Allowed: true, Count: count}, nil
	}
	return Result{
		Allowed:    false,
		Count:      count,
		RetryAfter: l.window.ResetAt(rec).Sub(now),
	}, nil
}

// Len returns the number of tracked keys, expired or not.
func (l *MemoryLimiter) Len() int {
	n, _ := l.store.Len(context.Background())
	return n
}
