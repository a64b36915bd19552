package throttle

import (
	"context"
	"math"
	"time"
)

// Delay computes the progressive response delay after a failed verification.
type Delay struct {
	Base time.Duration
	Max  time.Duration // 0 = uncapped (still saturates at math.MaxInt64)
}

// Compute returns Base * 2^(count-1), capped at Max. Counts below 1 are
// treated as 1.
func (d Delay) Compute(count int) time.Duration {
	if d.Base <= 0 {
		return 0
	}
	if count < 1 {
		count = 1
	}

	limit := time.Duration(math.MaxInt64)
	if d.Max > 0 {
		limit = d.Max
	}

	shift := count - 1
	if shift >= 63 || d.Base > limit>>uint(shift) {
		return limit
	}
	return d.Base << uint(shift)
}

// Apply blocks the caller for wait or until ctx is done. It returns ctx.Err()
// on cancellation.
func Apply(ctx context.Context, wait time.Duration) error {
	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
