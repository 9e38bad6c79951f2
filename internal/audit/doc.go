// Package audit implements async event dispatching for security-relevant
// login and signup outcomes.
//
// # Components
//
//   - [Sink]: consumers (channel, JSON writer, zap, no-op).
//   - [Dispatcher]: buffered async relay that either drops or blocks when full.
//   - [Event]: one login or signup outcome with a masked identity.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. The Engine and the
// flow functions decide which events to emit.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import marketAuth or any sibling internal package.
//   - Record raw email addresses or passwords.
package audit
