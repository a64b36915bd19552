package goGuard

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors [Config] for YAML and TOML files. Durations are strings
// accepted by time.ParseDuration; omitted fields keep their defaults.
type FileConfig struct {
	Thresholds ThresholdsFileConfig `yaml:"thresholds" toml:"thresholds"`
	Window     WindowFileConfig     `yaml:"window" toml:"window"`
	Delay      DelayFileConfig      `yaml:"delay" toml:"delay"`
	Store      StoreFileConfig      `yaml:"store" toml:"store"`
	Eviction   EvictionFileConfig   `yaml:"eviction" toml:"eviction"`
	Audit      AuditFileConfig      `yaml:"audit" toml:"audit"`
	Metrics    MetricsFileConfig    `yaml:"metrics" toml:"metrics"`
	Logging    LoggingFileConfig    `yaml:"logging" toml:"logging"`
}

// ThresholdsFileConfig is the file form of [ThresholdConfig].
type ThresholdsFileConfig struct {
	Challenge *int `yaml:"challenge" toml:"challenge"`
	Lock      *int `yaml:"lock" toml:"lock"`
}

// WindowFileConfig is the file form of [WindowConfig]. An empty idle_reset
// keeps the default; "0s" disables it.
type WindowFileConfig struct {
	Duration  string `yaml:"duration" toml:"duration"`
	IdleReset string `yaml:"idle_reset" toml:"idle_reset"`
}

// DelayFileConfig is the file form of [DelayConfig]. max "0s" means uncapped.
type DelayFileConfig struct {
	Base string `yaml:"base" toml:"base"`
	Max  string `yaml:"max" toml:"max"`
}

// StoreFileConfig is the file form of [StoreConfig]. failure_policy takes
// "open" or "closed".
type StoreFileConfig struct {
	FailurePolicy string `yaml:"failure_policy" toml:"failure_policy"`
	RedisPrefix   string `yaml:"redis_prefix" toml:"redis_prefix"`
}

// EvictionFileConfig is the file form of [EvictionConfig].
type EvictionFileConfig struct {
	Enabled       *bool  `yaml:"enabled" toml:"enabled"`
	Interval      string `yaml:"interval" toml:"interval"`
	IdleThreshold string `yaml:"idle_threshold" toml:"idle_threshold"`
}

// AuditFileConfig is the file form of [AuditConfig].
type AuditFileConfig struct {
	Enabled    *bool `yaml:"enabled" toml:"enabled"`
	BufferSize *int  `yaml:"buffer_size" toml:"buffer_size"`
	DropIfFull *bool `yaml:"drop_if_full" toml:"drop_if_full"`
}

// MetricsFileConfig is the file form of [MetricsConfig].
type MetricsFileConfig struct {
	Enabled                 *bool `yaml:"enabled" toml:"enabled"`
	EnableLatencyHistograms *bool `yaml:"latency_histograms" toml:"latency_histograms"`
}

// LoggingFileConfig is the file form of [LoggingConfig].
type LoggingFileConfig struct {
	Enabled    *bool  `yaml:"enabled" toml:"enabled"`
	Level      string `yaml:"level" toml:"level"`
	Format     string `yaml:"format" toml:"format"`
	File       string `yaml:"file" toml:"file"`
	MaxSizeMB  *int   `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups *int   `yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays *int   `yaml:"max_age_days" toml:"max_age_days"`
}

// LoadConfigFile reads a YAML (.yaml, .yml) or TOML (.toml) file, applies it
// over [DefaultConfig], and validates the result.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return Config{}, fmt.Errorf("parse yaml config: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &fc); err != nil {
			return Config{}, fmt.Errorf("parse toml config: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config extension: %s", filepath.Ext(path))
	}

	cfg := DefaultConfig()
	if err := ApplyFileConfig(&cfg, &fc); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyFileConfig overlays the set fields of fc onto cfg.
func ApplyFileConfig(cfg *Config, fc *FileConfig) error {
	if fc == nil {
		return nil
	}

	if fc.Thresholds.Challenge != nil {
		cfg.Thresholds.Challenge = *fc.Thresholds.Challenge
	}
	if fc.Thresholds.Lock != nil {
		cfg.Thresholds.Lock = *fc.Thresholds.Lock
	}

	durations := []struct {
		field string
		raw   string
		dst   *time.Duration
	}{
		{"window.duration", fc.Window.Duration, &cfg.Window.Duration},
		{"window.idle_reset", fc.Window.IdleReset, &cfg.Window.IdleReset},
		{"delay.base", fc.Delay.Base, &cfg.Delay.Base},
		{"delay.max", fc.Delay.Max, &cfg.Delay.Max},
		{"eviction.interval", fc.Eviction.Interval, &cfg.Eviction.Interval},
		{"eviction.idle_threshold", fc.Eviction.IdleThreshold, &cfg.Eviction.IdleThreshold},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := parseDurationField(d.field, d.raw)
		if err != nil {
			return err
		}
		*d.dst = parsed
	}

	if fc.Store.FailurePolicy != "" {
		p, err := ParseFailurePolicy(fc.Store.FailurePolicy)
		if err != nil {
			return fmt.Errorf("store.failure_policy: %w", err)
		}
		cfg.Store.FailurePolicy = p
	}
	if fc.Store.RedisPrefix != "" {
		cfg.Store.RedisPrefix = fc.Store.RedisPrefix
	}

	setBool(&cfg.Eviction.Enabled, fc.Eviction.Enabled)

	setBool(&cfg.Audit.Enabled, fc.Audit.Enabled)
	setInt(&cfg.Audit.BufferSize, fc.Audit.BufferSize)
	setBool(&cfg.Audit.DropIfFull, fc.Audit.DropIfFull)

	setBool(&cfg.Metrics.Enabled, fc.Metrics.Enabled)
	setBool(&cfg.Metrics.EnableLatencyHistograms, fc.Metrics.EnableLatencyHistograms)

	setBool(&cfg.Logging.Enabled, fc.Logging.Enabled)
	if fc.Logging.Level != "" {
		cfg.Logging.Level = fc.Logging.Level
	}
	if fc.Logging.Format != "" {
		cfg.Logging.Format = fc.Logging.Format
	}
	if fc.Logging.File != "" {
		cfg.Logging.File = fc.Logging.File
	}
	setInt(&cfg.Logging.MaxSizeMB, fc.Logging.MaxSizeMB)
	setInt(&cfg.Logging.MaxBackups, fc.Logging.MaxBackups)
	setInt(&cfg.Logging.MaxAgeDays, fc.Logging.MaxAgeDays)

	return nil
}

func parseDurationField(field, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", field, raw, err)
	}
	return d, nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
