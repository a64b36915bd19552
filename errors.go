package goGuard

import (
	"errors"

	"github.com/MrEthical07/goGuard/attempt"
)

var (
	// ErrRateLimited is returned when an identity has exceeded the lock threshold.
	ErrRateLimited = errors.New("too many attempts")
	// ErrChallengeRequired is returned when the identity must present a challenge token.
	ErrChallengeRequired = errors.New("challenge required")
	// ErrChallengeInvalid is wrapped alongside ErrChallengeRequired when the
	// configured ChallengeValidator rejects the presented token.
	ErrChallengeInvalid = errors.New("challenge invalid")
	// ErrVerificationFailed is returned by Fail and Protect after a rejected credential.
	ErrVerificationFailed = errors.New("verification failed")
	// ErrStoreUnavailable is returned under FailClosed when the attempt store errors.
	ErrStoreUnavailable = attempt.ErrStoreUnavailable
	// ErrInvalidIdentity is returned for empty, oversized, or malformed identities.
	ErrInvalidIdentity = attempt.ErrInvalidIdentity
	// ErrDecisionNotAllowed is returned by Fail for a Decision that did not
	// allow verification.
	ErrDecisionNotAllowed = errors.New("decision did not allow verification")
	// ErrGuardNotReady is returned by methods called on a nil or closed Guard.
	ErrGuardNotReady = errors.New("guard not initialized")
)
