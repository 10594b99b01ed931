// Package sqlstore implements the store interfaces on database/sql. It runs
// against PostgreSQL through pgx and against SQLite through modernc.org/sqlite.
// Timestamps are stored as Unix milliseconds and flags as integers so one
// schema serves both drivers.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/MrEthical07/authsvc/store"
)

const (
	// DriverPostgres is the database/sql driver name registered by pgx.
	DriverPostgres = "pgx"
	// DriverSQLite is the database/sql driver name registered by modernc.
	DriverSQLite = "sqlite"
)

// DB wraps a *sql.DB together with the placeholder dialect of its driver.
type DB struct {
	sql    *sql.DB
	driver string
}

// Open connects to dsn using driver and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}

	database, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// SQLite allows a single writer.
		database.SetMaxOpenConns(1)
	}
	if err := database.PingContext(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("ping %s database: %w", driver, err)
	}
	return &DB{sql: database, driver: driver}, nil
}

// New wraps an already opened database.
func New(database *sql.DB, driver string) *DB {
	return &DB{sql: database, driver: driver}
}

// Close closes the underlying pool.
func (db *DB) Close() error {
	return db.sql.Close()
}

// Users returns the user store backed by db.
func (db *DB) Users() *Users { return &Users{db: db} }

// RefreshTokens returns the refresh token store backed by db.
func (db *DB) RefreshTokens() *RefreshTokens { return &RefreshTokens{db: db} }

// ResetTokens returns the reset token store backed by db.
func (db *DB) ResetTokens() *ResetTokens { return &ResetTokens{db: db} }

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (db *DB) rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// withTx runs fn inside a transaction and commits when fn returns nil.
func (db *DB) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit transaction", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", store.ErrUnavailable, op, err)
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
