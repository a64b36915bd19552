package logging

import (
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
)

// Config selects level, format, and destination.
type Config struct {
	Enabled    bool
	Level      string // zerolog level name; empty = info
	Format     string // "console" or "json"; empty = json
	File       string // empty = stdout
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DefaultConfig returns a disabled JSON config with rotation defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:    false,
		Level:      "info",
		Format:     "json",
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
}

// Validate checks format, level, and rotation bounds.
func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Format)) {
	case "", "json", "console":
	default:
		return errors.New("Logging Format must be 'json' or 'console'")
	}
	if _, err := parseLevel(c.Level); err != nil {
		return errors.New("Logging Level is not a valid level")
	}
	if c.File != "" && c.MaxSizeMB <= 0 {
		return errors.New("Logging MaxSizeMB must be > 0 when File is set")
	}
	if c.MaxBackups < 0 {
		return errors.New("Logging MaxBackups must be >= 0")
	}
	if c.MaxAgeDays < 0 {
		return errors.New("Logging MaxAgeDays must be >= 0")
	}
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds a logger from cfg. When File is empty output goes to stdout (or
// out, if non-nil). The returned closer releases the rotating file and must be
// called on shutdown. A disabled config yields zerolog.Nop().
func New(cfg Config, out io.Writer) (zerolog.Logger, io.Closer, error) {
	if !cfg.Enabled {
		return zerolog.Nop(), nopCloser{}, nil
	}
	if err := cfg.Validate(); err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}

	level, _ := parseLevel(cfg.Level)

	var (
		w      io.Writer = out
		closer io.Closer = nopCloser{}
	)
	if cfg.File != "" {
		rot := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		w, closer = rot, rot
	}
	if w == nil {
		w = os.Stdout
	}

	if strings.EqualFold(strings.TrimSpace(cfg.Format), "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: cfg.File != ""}
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Str("component", "goguard").Logger()
	return logger, closer, nil
}

func parseLevel(raw string) (zerolog.Level, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return zerolog.InfoLevel, nil
	}
	return zerolog.ParseLevel(raw)
}
