// Package throttle turns an attempt count into an outcome and a delay.
//
// # Outcomes
//
// [Policy.Decide] is pure: the same count and challenge flag always give the
// same [Outcome]. Counts are post-increment, so the first attempt of a window
// is count 1.
//
//	count <= ChallengeThreshold                  -> Allow
//	ChallengeThreshold < count <= LockThreshold  -> Allow with challenge, else ChallengeRequired
//	count > LockThreshold                        -> Denied
//
// # Delays
//
// [Delay.Compute] doubles from Base per attempt and saturates at Max.
// [Delay.Apply] blocks only the calling goroutine and honors cancellation.
//
// # What this package must NOT do
//
//   - Touch attempt storage.
//   - Be imported outside the goGuard module.
package throttle
