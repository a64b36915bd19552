package security

import "time"

// Finding is a single posture observation.
type Finding struct {
	Code    string
	Message string
}

// Report summarizes the effective protection of a guard.
type Report struct {
	ChallengeThreshold int
	LockThreshold      int
	Window             time.Duration
	IdleReset          time.Duration
	DelayBase          time.Duration
	DelayCap           time.Duration
	MaxDelay           time.Duration
	FailurePolicy      string
	Backend            string
	Distributed        bool
	EvictionActive     bool
	ChallengeVerified  bool
	AuditActive        bool
	MetricsActive      bool
	// AttemptsPerWindow is how many guesses one identity gets per window
	// before denial, with a challenge token on every one past the first tier.
	AttemptsPerWindow int
	Findings          []Finding
}

// ReportInput carries the settings BuildReport needs.
type ReportInput struct {
	ChallengeThreshold int
	LockThreshold      int
	Window             time.Duration
	IdleReset          time.Duration
	DelayBase          time.Duration
	DelayCap           time.Duration
	MaxDelay           time.Duration
	FailurePolicy      string
	Backend            string
	Distributed        bool
	EvictionEnabled    bool
	ChallengeValidator bool
	AuditEnabled       bool
	MetricsEnabled     bool
}

// BuildReport assembles a [Report] and its findings.
func BuildReport(input ReportInput) Report {
	r := Report{
		ChallengeThreshold: input.ChallengeThreshold,
		LockThreshold:      input.LockThreshold,
		Window:             input.Window,
		IdleReset:          input.IdleReset,
		DelayBase:          input.DelayBase,
		DelayCap:           input.DelayCap,
		MaxDelay:           input.MaxDelay,
		FailurePolicy:      input.FailurePolicy,
		Backend:            input.Backend,
		Distributed:        input.Distributed,
		EvictionActive:     input.EvictionEnabled,
		ChallengeVerified:  input.ChallengeValidator,
		AuditActive:        input.AuditEnabled,
		MetricsActive:      input.MetricsEnabled,
		AttemptsPerWindow:  input.LockThreshold,
	}

	if input.FailurePolicy == "open" {
		r.Findings = append(r.Findings, Finding{
			Code:    "fail_open",
			Message: "attempts are allowed unthrottled while the store is unavailable",
		})
	}
	if !input.ChallengeValidator {
		r.Findings = append(r.Findings, Finding{
			Code:    "challenge_unverified",
			Message: "any non-empty challenge token satisfies the challenge tier",
		})
	}
	if input.IdleReset > 0 && input.Window > 0 && input.IdleReset < input.Window {
		r.Findings = append(r.Findings, Finding{
			Code:    "idle_reset_pacing",
			Message: "attempts paced slower than the idle reset never accumulate",
		})
	}
	if input.DelayCap <= 0 {
		r.Findings = append(r.Findings, Finding{
			Code:    "delay_uncapped",
			Message: "failure delay grows without bound and holds request goroutines",
		})
	}
	if !input.Distributed {
		r.Findings = append(r.Findings, Finding{
			Code:    "local_state",
			Message: "attempt counts are per process; replicas do not share them",
		})
	}
	return r
}

// Codes returns the finding codes in order.
func (r Report) Codes() []string {
	out := make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		out = append(out, f.Code)
	}
	return out
}
