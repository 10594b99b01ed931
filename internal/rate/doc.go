// Package rate implements the per-client token bucket that throttles the
// sensitive authentication endpoints.
//
// # Bucket semantics
//
// Each identity owns a bucket of Capacity permits. The first permit taken from
// a full bucket starts a refill interval; when it elapses the bucket is full
// again. Internally this is an INCR counter with an expiry set on the first
// hit, stored under the "rl:" prefix of a counter.Store, so the same limiter
// works in process or against Redis.
//
// Rejections never touch the account guard: throttling and lockout are
// independent.
package rate
