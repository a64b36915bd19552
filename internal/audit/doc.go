// Package audit relays throttling events to caller-supplied sinks without
// blocking the request path.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON lines, zerolog, no-op).
//   - [Dispatcher]: buffered async relay. When full it sheds ordinary
//     events or waits, and critical events always wait.
//   - [Event]: one decision or state change for an identity.
//
// # What this package must NOT do
//
//   - Decide which events to emit; the guard does that.
//   - Import goGuard or any sibling internal package.
package audit
