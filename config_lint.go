package goGuard

import "time"

// LintSeverity ranks a lint warning.
type LintSeverity int

const (
	// LintInfo is informational.
	LintInfo LintSeverity = iota
	// LintWarn flags a setting that weakens protection.
	LintWarn
	// LintHigh flags a setting an attacker can exploit directly.
	LintHigh
)

// String returns the severity name.
func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "info"
	case LintWarn:
		return "warn"
	case LintHigh:
		return "high"
	default:
		return "unknown"
	}
}

// LintWarning is one advisory finding. Lint never fails a config; Validate does.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered list of warnings from [Config.Lint].
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// Lint reports settings that are valid but trade protection for convenience.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.Store.FailurePolicy == FailOpen {
		add("fail_open", LintHigh, "store outages disable throttling entirely")
	}
	if c.Delay.Max == 0 && c.Delay.Base > 0 {
		add("delay_uncapped", LintWarn, "failure delay doubles without bound; slow requests pin goroutines")
	}
	if c.Delay.Base == 0 {
		add("delay_disabled", LintWarn, "failed verifications cost no time")
	}
	if c.Window.IdleReset > 0 && c.Window.IdleReset < c.Window.Duration {
		add("idle_reset_pacing", LintHigh, "an attacker pacing attempts slower than IdleReset is never throttled")
	}
	if c.Thresholds.Lock-c.Thresholds.Challenge > 20 {
		add("challenge_tier_wide", LintWarn, "challenge tier allows many guesses before denial")
	}
	if c.Window.Duration < time.Minute {
		add("window_short", LintWarn, "windows under a minute let counts reset quickly")
	}
	if !c.Eviction.Enabled {
		add("eviction_disabled", LintWarn, "idle records are never evicted from the memory store")
	}
	if c.Audit.Enabled && !c.Audit.DropIfFull {
		add("audit_blocking", LintInfo, "a slow audit sink adds latency to every attempt")
	}

	return ws
}
