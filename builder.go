package goGuard

import (
	"errors"
	"io"
	"time"

	"github.com/MrEthical07/goGuard/attempt"
	"github.com/MrEthical07/goGuard/internal/throttle"
	"github.com/MrEthical07/goGuard/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Builder assembles a [Guard]. Configure it during initialization, call Build
// once, and discard it.
type Builder struct {
	config Config
	store  attempt.Store
	redis  redis.UniversalClient

	logger    *zerolog.Logger
	auditSink AuditSink
	challenge ChallengeValidator
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore injects an attempt backend. Mutually exclusive with WithRedis.
func (b *Builder) WithStore(store attempt.Store) *Builder {
	b.store = store
	return b
}

// WithRedis backs the guard with an [attempt.RedisStore] on client, sharing
// attempt counts across every process that uses the same Redis and prefix.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the logger. Without it the builder creates one from
// Config.Logging, which is disabled by default.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = &logger
	return b
}

// WithAuditSink sets the audit destination. Audit must also be enabled in Config.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithChallengeValidator verifies challenge tokens. Without one, any non-empty
// token satisfies the challenge tier.
func (b *Builder) WithChallengeValidator(v ChallengeValidator) *Builder {
	b.challenge = v
	return b
}

// WithClock overrides time.Now for window and eviction decisions. Delays
// still run on real timers.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the delay histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and starts the guard's background work
// (eviction sweeper, audit dispatcher). A Builder can be built only once.
func (b *Builder) Build() (*Guard, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.store != nil && b.redis != nil {
		return nil, errors.New("WithStore and WithRedis are mutually exclusive")
	}

	// -------- STORE --------
	store := b.store
	backend := "custom"
	switch {
	case b.redis != nil:
		store = attempt.NewRedisStore(b.redis, cfg.Store.RedisPrefix, cfg.Window.Duration)
		backend = "redis"
	case store == nil:
		store = attempt.NewMemoryStore()
		backend = "memory"
	default:
		if _, ok := store.(*attempt.MemoryStore); ok {
			backend = "memory"
		} else if _, ok := store.(*attempt.RedisStore); ok {
			backend = "redis"
		}
	}

	// -------- LOGGER --------
	var (
		logger    zerolog.Logger
		logCloser io.Closer
	)
	if b.logger != nil {
		logger = *b.logger
	} else {
		l, closer, err := logging.New(cfg.Logging, nil)
		if err != nil {
			return nil, err
		}
		logger, logCloser = l, closer
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	g := &Guard{
		config:    cfg,
		store:     store,
		backend:   backend,
		window:    cfg.window(),
		policy:    throttle.Policy{ChallengeThreshold: cfg.Thresholds.Challenge, LockThreshold: cfg.Thresholds.Lock},
		delay:     throttle.Delay{Base: cfg.Delay.Base, Max: cfg.Delay.Max},
		challenge: b.challenge,
		clock:     clock,
		logger:    logger,
		logCloser: logCloser,
		metrics:   NewMetrics(cfg.Metrics),
	}
	g.audit = g.newAuditDispatcher(cfg.Audit, b.auditSink)

	// -------- EVICTION --------
	if cfg.Eviction.Enabled {
		sw, err := attempt.NewSweeper(store, attempt.SweeperConfig{
			Interval: cfg.Eviction.Interval,
			Idle:     cfg.Eviction.IdleThreshold,
			Clock:    clock,
			Logger:   logger,
			OnSweep:  g.onSweep,
		})
		if err != nil {
			g.Close()
			return nil, err
		}
		if err := sw.Start(); err != nil {
			g.Close()
			return nil, err
		}
		g.sweeper = sw
	}

	for _, w := range cfg.Lint().BySeverity(LintWarn) {
		logger.Warn().Str("code", w.Code).Str("severity", w.Severity.String()).Msg(w.Message)
	}
	logger.Info().
		Str("backend", backend).
		Int("challenge_threshold", cfg.Thresholds.Challenge).
		Int("lock_threshold", cfg.Thresholds.Lock).
		Dur("window", cfg.Window.Duration).
		Str("failure_policy", cfg.Store.FailurePolicy.String()).
		Msg("guard ready")

	b.built = true

	return g, nil
}
