package goGuard

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/attempt"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type failingStore struct{}

var errBackendDown = fmt.Errorf("%w: connection refused", attempt.ErrStoreUnavailable)

func (failingStore) GetOrCreate(context.Context, string, time.Time) (attempt.Record, error) {
	return attempt.Record{}, errBackendDown
}
func (failingStore) Get(context.Context, string) (attempt.Record, bool, error) {
	return attempt.Record{}, false, errBackendDown
}
func (failingStore) IncrementAndGet(context.Context, string, time.Time, attempt.Window) (attempt.Record, error) {
	return attempt.Record{}, errBackendDown
}
func (failingStore) Touch(context.Context, string, time.Time) error { return errBackendDown }
func (failingStore) Reset(context.Context, string) error            { return errBackendDown }
func (failingStore) EvictIdle(context.Context, time.Time, time.Duration) (int, error) {
	return 0, errBackendDown
}
func (failingStore) Clear(context.Context) error        { return errBackendDown }
func (failingStore) Len(context.Context) (int, error) { return 0, errBackendDown }

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

// testConfig is DefaultConfig with delays short enough to run in tests and no
// background sweeper.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Delay.Base = time.Millisecond
	cfg.Delay.Max = 20 * time.Millisecond
	cfg.Eviction.Enabled = false
	return cfg
}

func buildTestGuard(t *testing.T, cfg Config, clock *fakeClock, opts ...func(*Builder)) *Guard {
	t.Helper()

	b := New().WithConfig(cfg)
	if clock != nil {
		b.WithClock(clock.Now)
	}
	for _, opt := range opts {
		opt(b)
	}

	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(g.Close)
	return g
}
