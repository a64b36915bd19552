package attempt

import "time"

// Window decides when a record's counting window restarts.
//
// Duration bounds how long attempts accumulate from WindowStart. IdleReset,
// when > 0, additionally restarts the window once an identity has been quiet
// for longer than IdleReset. Zero disables the idle timer.
type Window struct {
	Duration  time.Duration
	IdleReset time.Duration
}

// ShouldReset reports whether rec should start a new window at now.
func (w Window) ShouldReset(now time.Time, rec Record) bool {
	if w.Duration > 0 && now.Sub(rec.WindowStart) > w.Duration {
		return true
	}
	if w.IdleReset > 0 && now.Sub(rec.LastAttempt) > w.IdleReset {
		return true
	}
	return false
}

// ResetAt returns the earliest instant at which ShouldReset turns true for rec,
// assuming no further attempts. The zero time means the window never resets.
func (w Window) ResetAt(rec Record) time.Time {
	var at time.Time
	if w.Duration > 0 {
		at = rec.WindowStart.Add(w.Duration)
	}
	if w.IdleReset > 0 {
		idle := rec.LastAttempt.Add(w.IdleReset)
		if at.IsZero() || idle.Before(at) {
			at = idle
		}
	}
	return at
}

// Horizon is the longest a record can stay relevant after its last attempt.
// Evicting a record idle for longer than Horizon cannot change any decision.
func (w Window) Horizon() time.Duration {
	switch {
	case w.IdleReset > 0 && w.Duration > 0:
		return min(w.IdleReset, w.Duration)
	case w.IdleReset > 0:
		return w.IdleReset
	default:
		return w.Duration
	}
}
