package goGuard

import (
	"context"
	"time"

	"github.com/MrEthical07/goGuard/internal/throttle"
)

// Outcome is the throttling verdict for one attempt.
type Outcome = throttle.Outcome

const (
	// OutcomeAllow lets the attempt proceed to credential verification.
	OutcomeAllow = throttle.Allow
	// OutcomeChallengeRequired rejects the attempt until a challenge token is presented.
	OutcomeChallengeRequired = throttle.ChallengeRequired
	// OutcomeDenied rejects the attempt outright.
	OutcomeDenied = throttle.Denied
)

// Attempt is one inbound credential-verification request.
type Attempt struct {
	// Identity keys the attempt counter, usually the client IP.
	Identity string
	// ChallengeToken is the step-up token (e.g. a CAPTCHA response). Empty
	// means absent.
	ChallengeToken string
}

// Decision is the result of [Guard.Check].
type Decision struct {
	Outcome  Outcome
	Identity string
	// Count is the post-increment attempt count within the current window.
	Count int
	// RetryAfter is set on Denied: time left until the window resets.
	RetryAfter time.Duration
	// Delay is what a failed verification at this count will cost.
	Delay time.Duration
	// Degraded is true when the store failed and FailOpen let the attempt through.
	Degraded bool
}

// Allowed reports whether the caller should proceed to verification.
func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllow
}

// VerifyFunc checks credentials for identity. It returns false for a wrong
// credential and an error only when verification itself could not run.
type VerifyFunc func(ctx context.Context, identity string) (bool, error)

// ChallengeValidator verifies a step-up token. Returning false or an error
// rejects the token.
type ChallengeValidator interface {
	ValidateChallenge(ctx context.Context, identity, token string) (bool, error)
}

// ChallengeValidatorFunc adapts a function to [ChallengeValidator].
type ChallengeValidatorFunc func(ctx context.Context, identity, token string) (bool, error)

// ValidateChallenge implements [ChallengeValidator].
func (f ChallengeValidatorFunc) ValidateChallenge(ctx context.Context, identity, token string) (bool, error) {
	return f(ctx, identity, token)
}

// State classifies an identity without recording an attempt.
type State int

const (
	// StateFresh means no attempts are on record (or the window has lapsed).
	StateFresh State = iota
	// StateCounting means attempts are below the challenge threshold.
	StateCounting
	// StateChallengeRequired means the next attempt needs a challenge token.
	StateChallengeRequired
	// StateLocked means the next attempt will be denied.
	StateLocked
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateCounting:
		return "counting"
	case StateChallengeRequired:
		return "challenge_required"
	case StateLocked:
		return "locked"
	default:
		return "unknown"
	}
}

// Status is returned by [Guard.Status].
type Status struct {
	State       State
	Identity    string
	Count       int
	WindowStart time.Time
	LastAttempt time.Time
	// ResetAt is when the window lapses with no further attempts; zero if never.
	ResetAt time.Time
}
