package rate

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestConfigValidate(t *testing.T) {
	if err := (Config{Limit: 1, Window: time.Second}).Validate(); err != nil {
		t.Fatalf("expected valid: %v", err)
	}
	if err := (Config{Limit: 0, Window: time.Second}).Validate(); err == nil {
		t.Fatal("expected zero limit to fail")
	}
	if err := (Config{Limit: 1}).Validate(); err == nil {
		t.Fatal("expected zero window to fail")
	}
}

func TestRedisLimiterFixedWindow(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	l := NewRedis(rdb, Config{Limit: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := l.Allow(ctx, "10.0.0.1")
		if err != nil || !res.Allowed || res.Count != int64(i) {
			t.Fatalf("request %d: unexpected result %+v err=%v", i, res, err)
		}
	}
	res, err := l.Allow(ctx, "10.0.0.1")
	if err != nil || res.Allowed {
		t.Fatalf("expected rejection, got %+v err=%v", res, err)
	}
	if res.RetryAfter <= 0 || res.RetryAfter > time.Minute {
		t.Fatalf("unexpected RetryAfter %v", res.RetryAfter)
	}

	if res, _ := l.Allow(ctx, "10.0.0.2"); !res.Allowed {
		t.Fatal("other keys must be independent")
	}
	if ttl := mr.TTL("ggu:10.0.0.1"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected TTL within window, got %v", ttl)
	}

	mr.FastForward(time.Minute + time.Second)
	if res, _ := l.Allow(ctx, "10.0.0.1"); !res.Allowed || res.Count != 1 {
		t.Fatalf("expected fresh window, got %+v", res)
	}
}

func TestRedisLimiterUnavailableAllows(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	res, err := NewRedis(rdb, Config{Limit: 1, Window: time.Minute, Prefix: "up"}).Allow(context.Background(), "k")
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if !res.Allowed {
		t.Fatal("outage result must not reject")
	}
}

func TestMemoryLimiterFixedWindow(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	clock := func() time.Time { return now }
	l := NewMemory(Config{Limit: 2, Window: 10 * time.Second}, clock)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if res, _ := l.Allow(ctx, "k"); !res.Allowed {
			t.Fatalf("request %d rejected", i+1)
		}
	}

	now = now.Add(4 * time.Second)
	res, _ := l.Allow(ctx, "k")
	if res.Allowed || res.RetryAfter != 6*time.Second {
		t.Fatalf("expected rejection with 6s retry, got %+v", res)
	}

	// Still inside the window at exactly Window after its start.
	now = now.Add(6 * time.Second)
	if res, _ := l.Allow(ctx, "k"); res.Allowed {
		t.Fatalf("expected window boundary to stay closed, got %+v", res)
	}

	now = now.Add(time.Millisecond)
	if res, _ := l.Allow(ctx, "k"); !res.Allowed || res.Count != 1 {
		t.Fatalf("expected fresh window, got %+v", res)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := l.Allow(cancelled, "k"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestMemoryLimiterPrunesExpired(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	l := NewMemory(Config{Limit: 1, Window: time.Second}, func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < pruneEvery-1; i++ {
		_, _ = l.Allow(ctx, "10.9."+strconv.Itoa(i/256)+"."+strconv.Itoa(i%256))
	}
	if n := l.Len(); n != pruneEvery-1 {
		t.Fatalf("expected %d keys before the sweep, got %d", pruneEvery-1, n)
	}

	now = now.Add(2 * time.Second)
	_, _ = l.Allow(ctx, "trigger")

	if n := l.Len(); n != 1 {
		t.Fatalf("expected expired windows pruned, %d left", n)
	}
}

func TestMemoryLimiterConcurrentKeys(t *testing.T) {
	l := NewMemory(Config{Limit: 10, Window: time.Minute}, nil)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		allowed atomic.Int64
	)
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				res, err := l.Allow(ctx, "10.8.0."+strconv.Itoa(w%4))
				if err == nil && res.Allowed {
					allowed.Add(1)
				}
			}
		}(w)
	}
	wg.Wait()

	if got := allowed.Load(); got != 40 {
		t.Fatalf("expected exactly 10 allowed per key across 4 keys, got %d", got)
	}
}
