package goGuard

import "github.com/MrEthical07/goGuard/internal/security"

// SecurityReport summarizes the guard's effective protection and flags
// weak settings. See [security.Report] for field meanings.
type SecurityReport = security.Report

// SecurityReport builds a report from the resolved configuration.
func (g *Guard) SecurityReport() SecurityReport {
	if g == nil {
		return SecurityReport{}
	}

	return security.BuildReport(security.ReportInput{
		ChallengeThreshold: g.config.Thresholds.Challenge,
		LockThreshold:      g.config.Thresholds.Lock,
		Window:             g.config.Window.Duration,
		IdleReset:          g.config.Window.IdleReset,
		DelayBase:          g.config.Delay.Base,
		DelayCap:           g.config.Delay.Max,
		MaxDelay:           g.delay.Compute(g.config.Thresholds.Lock),
		FailurePolicy:      g.config.Store.FailurePolicy.String(),
		Backend:            g.backend,
		Distributed:        g.backend == "redis",
		EvictionEnabled:    g.config.Eviction.Enabled,
		ChallengeValidator: g.challenge != nil,
		AuditEnabled:       g.config.Audit.Enabled,
		MetricsEnabled:     g.config.Metrics.Enabled,
	})
}
