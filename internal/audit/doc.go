// Package audit implements async event dispatching for authentication
// outcomes.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON lines writer, logr, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: structured record with timestamp, type, username, IP, reason, metadata.
//
// This package owns buffering and delivery only. The engine decides which
// events to emit.
package audit
