// Package middleware puts a [goGuard.Guard] in front of a login route.
//
// # Adapters
//
//   - [Login]: net/http middleware.
//   - [GinLogin]: gin handler with the same behavior.
//
// Both derive the identity from the client IP, read the challenge token from
// the X-Challenge-Token header, and run the caller's credential check through
// [goGuard.Guard.Protect]. The wrapped handler runs only after a successful
// verification and can read the [goGuard.Decision] with [DecisionFromContext].
//
// # Status mapping
//
//   - Denied: 429 with Retry-After.
//   - Challenge required or rejected: 400.
//   - Wrong credentials: 401, after the progressive delay.
//   - Store unavailable under FailClosed: 503.
//
// An optional per-IP fixed-window limit ([WithUpstreamLimit],
// [WithRedisUpstreamLimit]) runs before the guard as a coarse first line.
//
// # What this package must NOT do
//
//   - Verify credentials or issue sessions; the caller's handlers do that.
//   - Trust X-Forwarded-For from peers outside [WithTrustedProxies].
package middleware
