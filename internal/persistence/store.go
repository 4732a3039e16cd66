// Package persistence provides durable storage for OpenMatch nodes using
// SQLite. It plays the role the teacher's internal/storage package played
// for peer/order/trade state, scoped here to a single concern: an
// append-only event log that lets a node replay everything internal/core
// published since boot, in the order it happened.
package persistence

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store provides persistent storage for one OpenMatch node.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// Config holds storage configuration.
type Config struct {
	DataDir string
}

// New opens (creating if necessary) the node's SQLite database under
// cfg.DataDir and initializes its schema.
func New(cfg *Config) (*Store, error) {
	dataDir := expandPath(cfg.DataDir)

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "openmatch.db")

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: dbPath}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection, for callers (e.g. a
// migration tool) that need direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) initSchema() error {
	schema := `
	-- Append-only log of every event internal/core published. seq is the
	-- autoincrementing replay order; epoch/kind are indexed for
	-- after-the-fact audit queries (e.g. "show me everything in epoch 4012").
	CREATE TABLE IF NOT EXISTS events (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		kind       TEXT NOT NULL,
		epoch      INTEGER NOT NULL,
		phase      INTEGER NOT NULL DEFAULT 0,
		payload    TEXT NOT NULL,
		recorded_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
	CREATE INDEX IF NOT EXISTS idx_events_epoch ON events(epoch);

	-- One row per trade ever executed, for fast lookup without replaying
	-- the whole event log.
	CREATE TABLE IF NOT EXISTS trades (
		id           TEXT PRIMARY KEY,
		batch_id     INTEGER NOT NULL,
		base_asset   TEXT NOT NULL,
		quote_asset  TEXT NOT NULL,
		maker_order  TEXT NOT NULL,
		taker_order  TEXT NOT NULL,
		maker_user   TEXT NOT NULL,
		taker_user   TEXT NOT NULL,
		price        TEXT NOT NULL,
		qty          TEXT NOT NULL,
		quote_amount TEXT NOT NULL,
		recorded_at  INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trades_batch ON trades(batch_id);
	CREATE INDEX IF NOT EXISTS idx_trades_maker ON trades(maker_user);
	CREATE INDEX IF NOT EXISTS idx_trades_taker ON trades(taker_user);
	`
	_, err := s.db.Exec(schema)
	return err
}

func expandPath(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}
