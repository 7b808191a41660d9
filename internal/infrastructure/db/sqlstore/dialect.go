package sqlstore

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Constraint names shared by every backend.
const (
	constraintUsername = "uq_users_username"
	constraintEmail    = "uq_users_email"
)

// Dialect captures what differs between the supported SQL engines.
type Dialect struct {
	Name   string
	Driver string

	schema       []string
	positional   bool // false when the engine wants "?" instead of $n
	maxOpenConns int
	uniqueField  func(err error) (string, bool)
}

var Postgres = Dialect{
	Name:       "postgres",
	Driver:     "postgres",
	positional: true,
	schema: []string{`
		CREATE TABLE IF NOT EXISTS users (
			id              BIGSERIAL PRIMARY KEY,
			email           TEXT NOT NULL,
			username        TEXT NOT NULL,
			first_name      TEXT NOT NULL,
			last_name       TEXT NOT NULL,
			admin           BOOLEAN NOT NULL DEFAULT FALSE,
			hashed_password TEXT NOT NULL,
			enabled         BOOLEAN NOT NULL DEFAULT TRUE,
			CONSTRAINT ` + constraintUsername + ` UNIQUE (username),
			CONSTRAINT ` + constraintEmail + ` UNIQUE (email)
		)`,
	},
	uniqueField: postgresUniqueField,
}

// SQLite serialises access through one connection; concurrent writers queue
// on the pool instead of failing with SQLITE_BUSY.
var SQLite = Dialect{
	Name:         "sqlite",
	Driver:       "sqlite3",
	maxOpenConns: 1,
	schema: []string{`
		CREATE TABLE IF NOT EXISTS users (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			email           TEXT NOT NULL,
			username        TEXT NOT NULL,
			first_name      TEXT NOT NULL,
			last_name       TEXT NOT NULL,
			admin           BOOLEAN NOT NULL DEFAULT 0,
			hashed_password TEXT NOT NULL,
			enabled         BOOLEAN NOT NULL DEFAULT 1,
			CONSTRAINT ` + constraintUsername + ` UNIQUE (username),
			CONSTRAINT ` + constraintEmail + ` UNIQUE (email)
		)`,
	},
	uniqueField: sqliteUniqueField,
}

// DialectFor resolves a configured storage driver name.
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("sqlstore: unsupported dialect %q", name)
	}
}

var positionalParam = regexp.MustCompile(`\$\d+`)

// rebind rewrites $n placeholders for engines that use "?".
func (d Dialect) rebind(query string) string {
	if d.positional {
		return query
	}
	return positionalParam.ReplaceAllString(query, "?")
}

func postgresUniqueField(err error) (string, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" { // unique_violation
		return "", false
	}
	return fieldForConstraint(pqErr.Constraint), true
}

// SQLite reports the offending column, e.g. "UNIQUE constraint failed: users.email".
func sqliteUniqueField(err error) (string, bool) {
	var liteErr sqlite3.Error
	if !errors.As(err, &liteErr) || liteErr.ExtendedCode != sqlite3.ErrConstraintUnique {
		return "", false
	}
	msg := liteErr.Error()
	switch {
	case strings.Contains(msg, "users.username"):
		return "username", true
	case strings.Contains(msg, "users.email"):
		return "email", true
	default:
		return "", true
	}
}

func fieldForConstraint(name string) string {
	switch name {
	case constraintUsername:
		return "username"
	case constraintEmail:
		return "email"
	default:
		return ""
	}
}
