// Package attempt tracks failed verification attempts per client identity.
//
// # Records
//
// A [Record] counts attempts since the start of its current window. Records are
// created lazily on the first attempt, reset by the [Window] policy when they go
// stale, and removed on successful verification or by an idle sweep.
//
// # Backends
//
//   - [MemoryStore]: sharded in-process map with one lock per identity.
//   - [RedisStore]: one hash per identity, updated by Lua scripts so the
//     reset-check and increment happen in a single round-trip.
//
// Both backends satisfy [Store] and are safe for concurrent use. Increments for
// the same identity are linearizable; operations on different identities do not
// contend.
//
// # What this package must NOT do
//
//   - Import goGuard or internal/throttle (no upward imports).
//   - Decide outcomes or apply delays; it only counts.
package attempt
