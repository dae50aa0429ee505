// Package storage provides database persistence for the ledger engine.
// A single Store backs both the production Postgres deployment and the
// sqlite-backed tests; queries are written with ? placeholders and rebound
// for the Postgres driver.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	_ "modernc.org/sqlite" // Pure Go sqlite driver (no CGO)
)

// Store provides database operations
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the database for the given driver ("postgres" or "sqlite")
// and runs migrations.
func Open(driver, conn string) (*Store, error) {
	switch driver {
	case "postgres":
		return OpenPostgres(conn)
	case "sqlite":
		return OpenSQLite(conn)
	default:
		return nil, fmt.Errorf("unsupported driver: %q", driver)
	}
}

// OpenPostgres connects to Postgres and runs migrations.
func OpenPostgres(conn string) (*Store, error) {
	db, err := sql.Open("postgres", conn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s := &Store{db: db, driver: "postgres"}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenSQLite opens a sqlite database at the given path and runs migrations.
// Used for tests and single-node development deployments.
func OpenSQLite(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Writes must serialize through one connection; sqlite has no row locks.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	s := &Store{db: db, driver: "sqlite"}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $N for the Postgres driver.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$")
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Timestamps are stored as unix seconds so the schema stays portable
// across the Postgres and sqlite drivers.

func unix(t time.Time) int64 {
	return t.UTC().Unix()
}

func fromUnix(v int64) time.Time {
	return time.Unix(v, 0).UTC()
}

func timeFromNull(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromUnix(v.Int64)
	return &t
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}

// isNotProvisioned reports whether err means the backing tables do not exist
// yet (partial deployment). Read paths that promise graceful-empty behavior
// check for this.
func isNotProvisioned(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "42P01" // undefined_table
	}
	return strings.Contains(err.Error(), "no such table")
}
