// Package middleware adapts authsvc.Engine to net/http.
//
//   - [Guard] checks the bearer access token and stores the claims in the
//     request context.
//   - [RequireRole] enforces a minimum role on top of Guard.
//   - [RateLimit] records the client address and applies the per-address
//     token bucket to login and signup paths.
//
// The handlers here only translate HTTP into Engine calls. Token parsing and
// limiter state stay in the engine.
package middleware
