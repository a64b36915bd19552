package goGuard

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/attempt"
	"github.com/MrEthical07/goGuard/logging"
)

// Config is the full guard configuration. Start from [DefaultConfig] and
// override fields; the zero value does not validate.
type Config struct {
	Thresholds ThresholdConfig
	Window     WindowConfig
	Delay      DelayConfig
	Store      StoreConfig
	Eviction   EvictionConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
	Logging    LoggingConfig
}

/*
====================================
THRESHOLDS
====================================
*/

// ThresholdConfig sets the escalation points. Counts are post-increment: with
// Challenge=3 the fourth attempt in a window is the first to need a token.
type ThresholdConfig struct {
	Challenge int
	Lock      int
}

/*
====================================
WINDOW
====================================
*/

// WindowConfig controls when counting restarts.
type WindowConfig struct {
	Duration  time.Duration
	IdleReset time.Duration // 0 = disabled
}

/*
====================================
DELAY
====================================
*/

// DelayConfig controls the progressive failure delay.
type DelayConfig struct {
	Base time.Duration
	Max  time.Duration // 0 = uncapped
}

/*
====================================
STORE
====================================
*/

// FailurePolicy decides what Check does when the attempt store errors.
type FailurePolicy int

const (
	// FailurePolicyUnset is invalid; a policy must be chosen explicitly.
	FailurePolicyUnset FailurePolicy = iota
	// FailOpen allows attempts unthrottled while the store is down.
	FailOpen
	// FailClosed denies attempts while the store is down.
	FailClosed
)

// String returns "open", "closed", or "unset".
func (p FailurePolicy) String() string {
	switch p {
	case FailOpen:
		return "open"
	case FailClosed:
		return "closed"
	default:
		return "unset"
	}
}

// ParseFailurePolicy parses "open" or "closed" (case-insensitive).
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open", "fail_open", "fail-open":
		return FailOpen, nil
	case "closed", "fail_closed", "fail-closed":
		return FailClosed, nil
	default:
		return FailurePolicyUnset, errors.New("Store FailurePolicy must be 'open' or 'closed'")
	}
}

// StoreConfig controls the attempt backend.
type StoreConfig struct {
	FailurePolicy FailurePolicy
	// RedisPrefix namespaces keys when the guard is built WithRedis.
	RedisPrefix string
}

/*
====================================
EVICTION
====================================
*/

// EvictionConfig controls the background idle sweep.
type EvictionConfig struct {
	Enabled       bool
	Interval      time.Duration
	IdleThreshold time.Duration
}

/*
====================================
AUDIT / METRICS / LOGGING
====================================
*/

// AuditConfig controls async audit dispatch.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// LoggingConfig controls the logger the builder creates when none is
// supplied through WithLogger.
type LoggingConfig = logging.Config

// DefaultConfig returns the recommended baseline: challenge after 3 attempts,
// deny after 5, 15 minute window, 1s doubling delay capped at 30s, fail closed.
func DefaultConfig() Config {
	return Config{
		Thresholds: ThresholdConfig{
			Challenge: 3,
			Lock:      5,
		},
		Window: WindowConfig{
			Duration:  15 * time.Minute,
			IdleReset: 0,
		},
		Delay: DelayConfig{
			Base: time.Second,
			Max:  30 * time.Second,
		},
		Store: StoreConfig{
			FailurePolicy: FailClosed,
			RedisPrefix:   attempt.DefaultRedisPrefix,
		},
		Eviction: EvictionConfig{
			Enabled:       true,
			Interval:      time.Minute,
			IdleThreshold: 15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		Logging: logging.DefaultConfig(),
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

func (c *Config) window() attempt.Window {
	return attempt.Window{Duration: c.Window.Duration, IdleReset: c.Window.IdleReset}
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for internal consistency. Build calls it;
// callers loading config from files should call it early to fail fast.
func (c *Config) Validate() error {
	// Thresholds
	if c.Thresholds.Challenge <= 0 {
		return errors.New("Thresholds Challenge must be > 0")
	}
	if c.Thresholds.Lock <= c.Thresholds.Challenge {
		return errors.New("Thresholds Lock must be > Thresholds Challenge")
	}

	// Window
	if c.Window.Duration <= 0 {
		return errors.New("Window Duration must be > 0")
	}
	if c.Window.IdleReset < 0 {
		return errors.New("Window IdleReset must be >= 0")
	}

	// Delay
	if c.Delay.Base < 0 {
		return errors.New("Delay Base must be >= 0")
	}
	if c.Delay.Max < 0 {
		return errors.New("Delay Max must be >= 0")
	}
	if c.Delay.Max > 0 && c.Delay.Max < c.Delay.Base {
		return errors.New("Delay Max must be >= Delay Base")
	}

	// Store
	switch c.Store.FailurePolicy {
	case FailOpen, FailClosed:
		// valid
	default:
		return errors.New("Store FailurePolicy must be FailOpen or FailClosed")
	}
	if strings.ContainsAny(c.Store.RedisPrefix, " *?[]") {
		return errors.New("Store RedisPrefix must not contain spaces or glob characters")
	}

	// Eviction
	if c.Eviction.Enabled {
		if c.Eviction.Interval <= 0 {
			return errors.New("Eviction Interval must be > 0 when Enabled is true")
		}
		if c.Eviction.IdleThreshold < c.window().Horizon() {
			return errors.New("Eviction IdleThreshold must be >= the window horizon")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Enabled is true")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	// Logging
	if c.Logging.Enabled {
		if err := c.Logging.Validate(); err != nil {
			return err
		}
	}

	return nil
}
