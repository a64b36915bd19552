package throttle

import "errors"

// Outcome is the result of evaluating one attempt.
type Outcome int

const (
	// Allow lets the request reach credential verification.
	Allow Outcome = iota
	// ChallengeRequired rejects the request until the client presents a challenge token.
	ChallengeRequired
	// Denied rejects the request regardless of challenge.
	Denied
)

// String returns the wire name used in logs and audit events.
func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case ChallengeRequired:
		return "challenge_required"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// Policy holds the two escalation thresholds.
type Policy struct {
	ChallengeThreshold int
	LockThreshold      int
}

// Validate checks 0 < ChallengeThreshold < LockThreshold.
func (p Policy) Validate() error {
	if p.ChallengeThreshold <= 0 {
		return errors.New("ChallengeThreshold must be > 0")
	}
	if p.LockThreshold <= p.ChallengeThreshold {
		return errors.New("LockThreshold must be > ChallengeThreshold")
	}
	return nil
}

// Decide maps a post-increment count to an outcome.
func (p Policy) Decide(count int, challengePresent bool) Outcome {
	switch {
	case count > p.LockThreshold:
		return Denied
	case count > p.ChallengeThreshold && !challengePresent:
		return ChallengeRequired
	default:
		return Allow
	}
}
