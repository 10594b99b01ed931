// Package limiters implements the failed-login account guard.
//
// The guard is a small state machine (clear, warning, locked) written against
// the counter.Store capability, so the same policy runs over process memory
// or a shared Redis instance. Key prefixes:
//   - alo:n:<username> holds the consecutive failure streak
//   - alo:b:<username> marks an active lock and expires with it
//
// The guard only counts; the engine decides what a lock means for a login.
package limiters
