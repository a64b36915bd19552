// Package goGuard throttles credential verification per client identity.
//
// A [Guard] counts attempts for each identity inside a window and escalates in
// three tiers: attempts pass silently up to the challenge threshold, then need
// a step-up challenge token, then are denied outright past the lock threshold.
// Every failed verification also costs the caller a doubling delay.
//
//	g, err := goGuard.New().Build()
//	d, err := g.Protect(ctx, goGuard.Attempt{Identity: ip, ChallengeToken: tok}, verify)
//
// The guard is safe for concurrent use. Attempts for the same identity are
// counted in one linear order, so a burst of N parallel attempts yields counts
// 1..N and at most LockThreshold of them are allowed. Attempts for different
// identities never contend, and a delay suspends only its own caller.
//
// # Architecture boundaries
//
// goGuard is the public surface: [Guard], [Builder], [Config], and value
// types. Attempt storage lives in package attempt; decisions, delays, audit
// dispatch, and reporting live under internal/.
//
// # What this package must NOT do
//
//   - Verify credentials or challenge tokens itself; callers supply both.
//   - Issue or validate sessions.
//   - Block callers other than the one whose verification failed.
package goGuard
