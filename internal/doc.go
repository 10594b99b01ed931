// Package internal contains helpers private to authsvc: opaque token
// generation and the digests under which tokens are stored.
//
// # Sub-packages
//
//   - app: process wiring for cmd/authsvc (stores, engine, HTTP lifecycle)
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - config: environment configuration for the server binary
//   - httpapi: JSON transport over the engine
//   - limiters: failed-login account guard
//   - rate: per-client token bucket
//
// # What this package must NOT do
//
//   - Export types that appear in the public authsvc API.
//   - Be imported by any package outside the authsvc module.
package internal
