package attempt

import (
	"context"
	"time"
)

// Store owns every attempt record. Implementations must make
// IncrementAndGet linearizable per identity and must not serialize
// operations on different identities behind one lock.
type Store interface {
	// GetOrCreate returns the record for identity, creating an empty one at now.
	GetOrCreate(ctx context.Context, identity string, now time.Time) (Record, error)
	// Get returns the record for identity without creating it.
	Get(ctx context.Context, identity string) (Record, bool, error)
	// IncrementAndGet applies the window reset, counts one attempt, and returns
	// the post-increment record. Exactly one increment is reflected per call.
	IncrementAndGet(ctx context.Context, identity string, now time.Time, w Window) (Record, error)
	// Touch moves LastAttempt forward to now. Missing records are left absent.
	Touch(ctx context.Context, identity string, now time.Time) error
	// Reset removes the record for identity. Removing a missing record is not an error.
	Reset(ctx context.Context, identity string) error
	// EvictIdle removes records whose LastAttempt is older than idle and
	// returns how many were removed.
	EvictIdle(ctx context.Context, now time.Time, idle time.Duration) (int, error)
	// Clear removes every record.
	Clear(ctx context.Context) error
	// Len returns the number of live records.
	Len(ctx context.Context) (int, error)
}
