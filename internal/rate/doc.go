// Package rate provides the coarse per-key fixed-window limiter that sits in
// front of the login route, ahead of the per-identity guard.
//
// # Window semantics
//
// Fixed-window counters. Redis uses INCR + EXPIRE on first hit; the memory
// limiter reuses the sharded attempt store. A key's window starts at
// its first request and lasts Window; the Limit+1th request inside it is
// rejected until the key expires.
//
// # What this package must NOT do
//
//   - Escalate, delay, or challenge; that is the guard's job.
//   - Be imported outside the goGuard module.
package rate
