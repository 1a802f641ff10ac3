// Package audit implements async event dispatching for security-relevant
// saraAuth operations.
//
// # Components
//
//   - [Sink] is the consumer interface (channel, JSON lines, slog, no-op).
//   - [Dispatcher] is a buffered relay with drop-if-full or block-if-full semantics.
//   - [Event] is the structured record: type, subject, session, kind, IP, metadata.
//
// This package owns buffering and delivery. It does not decide which events
// to emit; that belongs to the Engine.
//
// # What this package must NOT do
//
//   - Filter events based on business logic.
//   - Import saraAuth or any sibling internal package.
//   - Carry secrets, codes or tokens in events.
package audit
