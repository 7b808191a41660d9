// Package sqlstore implements the user repository on top of database/sql for
// Postgres (lib/pq) and SQLite (go-sqlite3). Uniqueness of username and
// email is enforced by table constraints; the repository only translates
// constraint violations into domain conflicts.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const defaultTimeout = 5 * time.Second

// Open connects to dsn with the dialect's driver and verifies connectivity
// with a ping.
func Open(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s open: %w", dialect.Name, err)
	}
	if dialect.maxOpenConns > 0 {
		db.SetMaxOpenConns(dialect.maxOpenConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s ping: %w", dialect.Name, err)
	}
	return db, nil
}

// EnsureSchema creates the users table and its unique constraints when they
// do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB, dialect Dialect) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, stmt := range dialect.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s schema: %w", dialect.Name, err)
		}
	}
	return nil
}
