package attempt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces attempt keys when no prefix is configured.
const DefaultRedisPrefix = "gga"

const scanBatch = 256

// Fields: c = count, s = window start (unix ms), l = last attempt (unix ms).
const incrementScript = `
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local idle = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local v = redis.call('HMGET', KEYS[1], 'c', 's', 'l')
local count = tonumber(v[1]) or 0
local start = tonumber(v[2]) or now
local last = tonumber(v[3]) or now

if (window > 0 and now - start > window) or (idle > 0 and now - last > idle) then
  count = 0
  start = now
end

count = count + 1
if now > last then
  last = now
end
if start > last then
  last = start
end

redis.call('HSET', KEYS[1], 'c', count, 's', start, 'l', last)
redis.call('PEXPIRE', KEYS[1], ttl)
return {count, start, last}
`

var incrementLua = redis.NewScript(incrementScript)

const getOrCreateScript = `
local now = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])
if redis.call('EXISTS', KEYS[1]) == 0 then
  redis.call('HSET', KEYS[1], 'c', 0, 's', now, 'l', now)
  redis.call('PEXPIRE', KEYS[1], ttl)
end
local v = redis.call('HMGET', KEYS[1], 'c', 's', 'l')
return {tonumber(v[1]) or 0, tonumber(v[2]) or now, tonumber(v[3]) or now}
`

var getOrCreateLua = redis.NewScript(getOrCreateScript)

const touchScript = `
local now = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])
local last = redis.call('HGET', KEYS[1], 'l')
if not last then
  return 0
end
if now > tonumber(last) then
  redis.call('HSET', KEYS[1], 'l', now)
end
redis.call('PEXPIRE', KEYS[1], ttl)
return 1
`

var touchLua = redis.NewScript(touchScript)

const evictScript = `
local now = tonumber(ARGV[1])
local idle = tonumber(ARGV[2])
local last = redis.call('HGET', KEYS[1], 'l')
if not last then
  return 0
end
if now - tonumber(last) > idle then
  redis.call('DEL', KEYS[1])
  return 1
end
return 0
`

var evictLua = redis.NewScript(evictScript)

// RedisStore keeps records in Redis so several processes can share one view
// of each identity. Every mutation is a single Lua script, which Redis runs
// atomically, so per-identity increments are linearizable without client locks.
//
// Keys carry a TTL one second past the window horizon; a key that expires
// would have been reset by the window policy anyway.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a [RedisStore]. ttl should cover the longest window the
// caller will pass to IncrementAndGet; values <= 0 default to 24h.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{
		redis:  client,
		prefix: prefix,
		ttl:    ttl + time.Second,
	}
}

func (s *RedisStore) key(identity string) string {
	return s.prefix + ":" + identity
}

func (s *RedisStore) pattern() string {
	return s.prefix + ":*"
}

// GetOrCreate implements [Store].
func (s *RedisStore) GetOrCreate(ctx context.Context, identity string, now time.Time) (Record, error) {
	if err := ValidateIdentity(identity); err != nil {
		return Record{}, err
	}

	vals, err := getOrCreateLua.Run(ctx, s.redis, []string{s.key(identity)}, now.UnixMilli(), s.ttl.Milliseconds()).Int64Slice()
	if err != nil {
		return Record{}, unavailable(ctx, err)
	}
	return recordFromTriple(identity, vals)
}

// Get implements [Store].
func (s *RedisStore) Get(ctx context.Context, identity string) (Record, bool, error) {
	if err := ValidateIdentity(identity); err != nil {
		return Record{}, false, err
	}

	vals, err := s.redis.HMGet(ctx, s.key(identity), "c", "s", "l").Result()
	if err != nil {
		return Record{}, false, unavailable(ctx, err)
	}
	if len(vals) != 3 || vals[0] == nil {
		return Record{}, false, nil
	}

	triple := make([]int64, 3)
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			return Record{}, false, fmt.Errorf("%w: malformed field", ErrStoreUnavailable)
		}
		n, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return Record{}, false, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		triple[i] = n
	}

	rec, err := recordFromTriple(identity, triple)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// IncrementAndGet implements [Store].
func (s *RedisStore) IncrementAndGet(ctx context.Context, identity string, now time.Time, w Window) (Record, error) {
	if err := ValidateIdentity(identity); err != nil {
		return Record{}, err
	}

	vals, err := incrementLua.Run(
		ctx,
		s.redis,
		[]string{s.key(identity)},
		now.UnixMilli(),
		w.Duration.Milliseconds(),
		w.IdleReset.Milliseconds(),
		s.ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Record{}, unavailable(ctx, err)
	}
	return recordFromTriple(identity, vals)
}

// Touch implements [Store].
func (s *RedisStore) Touch(ctx context.Context, identity string, now time.Time) error {
	if err := ValidateIdentity(identity); err != nil {
		return err
	}

	if err := touchLua.Run(ctx, s.redis, []string{s.key(identity)}, now.UnixMilli(), s.ttl.Milliseconds()).Err(); err != nil {
		return unavailable(ctx, err)
	}
	return nil
}

// Reset implements [Store].
func (s *RedisStore) Reset(ctx context.Context, identity string) error {
	if err := ValidateIdentity(identity); err != nil {
		return err
	}

	if err := s.redis.Del(ctx, s.key(identity)).Err(); err != nil {
		return unavailable(ctx, err)
	}
	return nil
}

// EvictIdle implements [Store]. The idle check runs inside Redis per key, so a
// concurrent increment either lands before the check (and the key survives) or
// after the delete (and recreates a fresh record).
func (s *RedisStore) EvictIdle(ctx context.Context, now time.Time, idle time.Duration) (int, error) {
	evicted := 0
	err := s.scan(ctx, func(keys []string) error {
		for _, key := range keys {
			n, err := evictLua.Run(ctx, s.redis, []string{key}, now.UnixMilli(), idle.Milliseconds()).Int64()
			if err != nil {
				return err
			}
			evicted += int(n)
		}
		return nil
	})
	if err != nil {
		return evicted, unavailable(ctx, err)
	}
	return evicted, nil
}

// Clear implements [Store].
func (s *RedisStore) Clear(ctx context.Context) error {
	err := s.scan(ctx, func(keys []string) error {
		return s.redis.Del(ctx, keys...).Err()
	})
	if err != nil {
		return unavailable(ctx, err)
	}
	return nil
}

// Len implements [Store].
func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n := 0
	err := s.scan(ctx, func(keys []string) error {
		n += len(keys)
		return nil
	})
	if err != nil {
		return 0, unavailable(ctx, err)
	}
	return n, nil
}

func (s *RedisStore) scan(ctx context.Context, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, s.pattern(), scanBatch).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// unavailable wraps a Redis error. A done ctx wins so callers can tell a
// cancelled request from a store fault.
func unavailable(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

func recordFromTriple(identity string, vals []int64) (Record, error) {
	if len(vals) != 3 {
		return Record{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, errors.New("unexpected script reply"))
	}
	count := vals[0]
	if count < 0 {
		count = 0
	}
	return Record{
		Identity:    identity,
		Count:       int(count),
		WindowStart: time.UnixMilli(vals[1]),
		LastAttempt: time.UnixMilli(vals[2]),
	}, nil
}
