// Package sqlite implements the local embedded backend.
//
// The store is a single named SQLite file used as a key-value engine: each
// collection (users, reports, activities) is a two-column table holding the
// JSON record keyed by its identity. Nothing is queried by value. Lists are
// full scans, and filtering and ordering happen in Go after the read, so the
// behaviour matches what any document store without a query language would
// give us.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so no C toolchain is
// needed to build or cross-compile.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/reportnavi/internal/repository"
)

const backendName = "local"

// schemaVersion is stored in PRAGMA user_version. Each step in migrations
// brings the file from version i to i+1.
const schemaVersion = 3

var _ repository.Store = (*EmbeddedStore)(nil)

// EmbeddedStore is the local backend. Every put and delete is its own
// durability boundary; there is no multi-record transaction.
type EmbeddedStore struct {
	conn   *sql.DB
	logger *slog.Logger
}

// New opens (creating if needed) the database at dbPath and brings its
// schema to the current version.
//
// dbPath examples:
//   - "data/reportnavi.db" → file-based database (persistent)
//   - ":memory:"           → in-memory database (tests)
func New(dbPath string, logger *slog.Logger) (*EmbeddedStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// SQLite has one writer. A single pooled connection also keeps ":memory:"
	// databases from splitting into one database per connection.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	s := &EmbeddedStore{conn: conn, logger: logger}

	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	logger.Info("local store opened",
		slog.String("path", dbPath),
		slog.Int("schemaVersion", schemaVersion),
	)
	return s, nil
}

func (s *EmbeddedStore) Close() error {
	return s.conn.Close()
}

func (s *EmbeddedStore) IsRemote() bool {
	return false
}

// migrations[i] upgrades a file at version i to version i+1.
var migrations = []string{
	// v1: reports
	`CREATE TABLE IF NOT EXISTS reports (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	// v2: activity ledger
	`CREATE TABLE IF NOT EXISTS activities (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	// v3: accounts
	`CREATE TABLE IF NOT EXISTS users (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

func (s *EmbeddedStore) migrate() error {
	var version int
	if err := s.conn.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, schemaVersion)
	}

	for v := version; v < schemaVersion; v++ {
		if _, err := s.conn.Exec(migrations[v]); err != nil {
			return fmt.Errorf("upgrading schema to v%d: %w", v+1, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := s.conn.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, v+1)); err != nil {
			return fmt.Errorf("recording schema v%d: %w", v+1, err)
		}
	}
	return nil
}

// SchemaVersion returns the version recorded in the database file.
func (s *EmbeddedStore) SchemaVersion() (int, error) {
	var version int
	if err := s.conn.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return 0, fmt.Errorf("sqlite: reading schema version: %w", err)
	}
	return version, nil
}

// isMissingCollection reports whether err comes from reading a collection
// table that was never created. SQLite has no dedicated result code for a
// missing table: it is the generic SQLITE_ERROR from statement preparation,
// told apart only by its message. Errors that did not come from the driver
// never match.
func isMissingCollection(err error) bool {
	var se *moderncsqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code()&0xff == sqlite3.SQLITE_ERROR && strings.Contains(se.Error(), "no such table")
}
