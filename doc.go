// Package authsvc is the core of an authentication service: signup
// validation, password login with progressive lockout, signed access
// tokens, single-use refresh-token rotation, one-time password reset
// tokens and per-client request throttling.
//
// An [Engine] is assembled with [New] and [Builder.Build] over three stores
// (users, refresh tokens, reset tokens) and an optional counter backend for
// lockout and rate-limit state. Engine methods are safe to call from many
// goroutines.
//
// # Error model
//
// Input problems are returned as [*ValidationError] and unwrap to
// [ErrInvalidUsername], [ErrInvalidEmail] or [ErrInvalidPassword].
// Authentication failures are [ErrInvalidCredentials] and
// [ErrAccountLocked]; neither reveals whether the account exists. Backend
// and signing failures are logged and returned as [ErrInternal].
//
// # Background work
//
// When Config.Purge.Interval is positive, Build starts a goroutine that
// deletes expired tokens. [Engine.Close] stops it and flushes audit events.
package authsvc
