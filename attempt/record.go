package attempt

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// MaxIdentityLength bounds identity keys so a single caller cannot inflate
// memory or Redis key size.
const MaxIdentityLength = 512

var (
	// ErrStoreUnavailable indicates the attempt backend could not be reached or locked.
	ErrStoreUnavailable = errors.New("attempt store unavailable")
	// ErrInvalidIdentity indicates an empty, oversized, or malformed identity.
	ErrInvalidIdentity = errors.New("invalid identity")
)

// Record is a point-in-time copy of an identity's attempt state. Stores hand out
// copies; mutating a Record never changes stored state.
type Record struct {
	Identity    string
	Count       int
	WindowStart time.Time
	LastAttempt time.Time
}

// IsZero reports whether the record carries no attempts.
func (r Record) IsZero() bool {
	return r.Count == 0
}

// ValidateIdentity rejects identities that cannot be used as store keys.
func ValidateIdentity(identity string) error {
	if identity == "" {
		return fmt.Errorf("%w: empty", ErrInvalidIdentity)
	}
	if len(identity) > MaxIdentityLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidIdentity, MaxIdentityLength)
	}
	if !utf8.ValidString(identity) {
		return fmt.Errorf("%w: not valid utf-8", ErrInvalidIdentity)
	}
	return nil
}

func newRecord(identity string, now time.Time) Record {
	return Record{
		Identity:    identity,
		WindowStart: now,
		LastAttempt: now,
	}
}

// advance resets r when the window says so, counts one attempt at now, and
// keeps WindowStart <= LastAttempt even when callers race with skewed clocks.
func (r *Record) advance(now time.Time, w Window) {
	if w.ShouldReset(now, *r) {
		r.Count = 0
		r.WindowStart = now
	}
	r.Count++
	if now.After(r.LastAttempt) {
		r.LastAttempt = now
	}
	if r.WindowStart.After(r.LastAttempt) {
		r.LastAttempt = r.WindowStart
	}
}
