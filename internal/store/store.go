package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"slices"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migration upgrades a journal to version.
type migration struct {
	version int
	name    string
	stmt    string
}

// migrations run in order on journals whose user_version is below their
// version. A fresh journal gets schema.sql and then every migration.
var migrations = []migration{
	{1, "per-kind call index", `CREATE INDEX IF NOT EXISTS idx_calls_kind ON calls(root_id, kind, seq)`},
	{2, "roots by scene", `CREATE INDEX IF NOT EXISTS idx_roots_scene ON roots(scene, id)`},
}

var currentSchemaVersion = migrations[len(migrations)-1].version

// Store is the durable journal of scene roots, their native calls and
// their settle cycles. WAL mode lets a trace read while a run writes.
type Store struct {
	db *sql.DB
}

type config struct {
	busyTimeout time.Duration
	synchronous string
}

// Option configures Open.
type Option func(*config)

// WithBusyTimeout sets how long a writer waits on a locked journal.
// Default: 5s.
func WithBusyTimeout(d time.Duration) Option {
	return func(c *config) { c.busyTimeout = d }
}

// WithSynchronous sets the sqlite synchronous level: OFF, NORMAL, FULL or
// EXTRA.
// Default: NORMAL.
func WithSynchronous(level string) Option {
	return func(c *config) { c.synchronous = level }
}

// Open creates or opens the journal at path, applying pragmas, the schema
// and any pending migrations. Opening an existing journal is safe. Use
// ":memory:" for a throwaway journal.
func Open(path string, opts ...Option) (*Store, error) {
	cfg := config{busyTimeout: 5 * time.Second, synchronous: "NORMAL"}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.synchronous = strings.ToUpper(cfg.synchronous)
	if !slices.Contains([]string{"OFF", "NORMAL", "FULL", "EXTRA"}, cfg.synchronous) {
		return nil, fmt.Errorf("open journal %s: unknown synchronous level %q", path, cfg.synchronous)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	// sqlite has one writer; a single connection also keeps ":memory:"
	// journals on one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := setup(db, cfg); err != nil {
		db.Close()
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func setup(db *sql.DB, cfg config) error {
	if err := db.Ping(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = " + cfg.synchronous,
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout.Milliseconds()),
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return migrate(db)
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		// PRAGMA does not take parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: set user_version: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
	}
	return nil
}

// Close closes the journal. Closing a zero Store is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// pragma reads a pragma's current value as text.
func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return value, nil
}
