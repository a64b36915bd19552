package attempt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// SweeperConfig controls background eviction.
type SweeperConfig struct {
	Interval time.Duration
	Idle     time.Duration
	Timeout  time.Duration // per-sweep deadline; 0 = Interval
	Clock    func() time.Time
	Logger   zerolog.Logger
	OnSweep  func(evicted int, err error)
}

// Sweeper periodically removes idle records from a [Store]. Runs never overlap:
// a sweep still in progress when the next tick fires causes that tick to be skipped.
type Sweeper struct {
	store Store
	cfg   SweeperConfig

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewSweeper creates a stopped [Sweeper].
func NewSweeper(store Store, cfg SweeperConfig) (*Sweeper, error) {
	if store == nil {
		return nil, errors.New("sweeper requires a store")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("sweeper Interval must be > 0")
	}
	if cfg.Idle <= 0 {
		return nil, errors.New("sweeper Idle must be > 0")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Interval
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Sweeper{store: store, cfg: cfg}, nil
}

// Start schedules sweeps every Interval. Calling Start on a running sweeper is a no-op.
func (s *Sweeper) Start() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc("@every "+s.cfg.Interval.String(), s.tick); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	c.Start()

	s.cron = c
	s.running = true
	s.cfg.Logger.Debug().Dur("interval", s.cfg.Interval).Dur("idle", s.cfg.Idle).Msg("attempt sweeper started")
	return nil
}

// Stop cancels future sweeps and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.running = false
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.cfg.Logger.Debug().Msg("attempt sweeper stopped")
}

// SweepOnce runs one eviction pass synchronously.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	if s == nil {
		return 0, nil
	}
	return s.store.EvictIdle(ctx, s.cfg.Clock(), s.cfg.Idle)
}

func (s *Sweeper) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	evicted, err := s.SweepOnce(ctx)
	if err != nil {
		s.cfg.Logger.Warn().Err(err).Int("evicted", evicted).Msg("attempt sweep failed")
	} else if evicted > 0 {
		s.cfg.Logger.Debug().Int("evicted", evicted).Msg("attempt sweep evicted idle records")
	}
	if s.cfg.OnSweep != nil {
		s.cfg.OnSweep(evicted, err)
	}
}
