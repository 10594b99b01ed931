// Package store defines the persistence records and interfaces consumed by
// the authentication engine.
//
// Implementations live in sub-packages:
//
//   - store/memory: process-local maps, suitable for tests and single-node demos
//   - store/sqlstore: database/sql backed stores for PostgreSQL (pgx) and SQLite
//   - store/redisstore: Redis backed refresh and reset token stores
//
// Token stores are keyed by the SHA-256 digest of the token value handed to
// clients. Callers hash before every lookup.
package store
