// Package dedup implements the two-tier duplicate suppression for captured
// commands: a bounded in-process recent set and a durable SQLite-backed
// sliding window.
package dedup

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS seen (
	id TEXT PRIMARY KEY,
	ts REAL NOT NULL
);
`

// Store is the durable sliding-window record of seen command signatures.
// Consumers should depend on this interface rather than the concrete *DB
// type to facilitate testing with mocks.
type Store interface {
	CheckAndMark(key string, now time.Time, horizon time.Duration) (bool, error)
	Sweep(cutoff time.Time) (int64, error)
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)

// DB wraps a sql.DB with dedup-window operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
// Failure here is fatal to the caller: the pipeline cannot establish its
// exactly-once guarantee without the durable store.
func Open(dsn string) (*DB, error) {
	// _txlock=immediate takes the write lock at BEGIN, so two first
	// sightings of the same key serialize instead of racing the INSERT.
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("dedup: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("dedup: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("dedup: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// CheckAndMark reports whether key was last seen within horizon of now, and
// marks it seen at now regardless of the outcome. A key last seen longer ago
// than the horizon is treated as fresh: the window has slid past it.
func (db *DB) CheckAndMark(key string, now time.Time, horizon time.Duration) (bool, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return false, fmt.Errorf("dedup: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	nowSec := float64(now.UnixNano()) / 1e9
	cutoff := nowSec - horizon.Seconds()

	var last float64
	err = tx.QueryRow(`SELECT ts FROM seen WHERE id = ?`, key).Scan(&last)
	switch err {
	case nil:
		if _, err := tx.Exec(`UPDATE seen SET ts = ? WHERE id = ?`, nowSec, key); err != nil {
			return false, fmt.Errorf("dedup: refresh: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("dedup: commit: %w", err)
		}
		return last >= cutoff, nil

	case sql.ErrNoRows:
		if _, err := tx.Exec(`INSERT INTO seen (id, ts) VALUES (?, ?)`, key, nowSec); err != nil {
			return false, fmt.Errorf("dedup: insert: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("dedup: commit: %w", err)
		}
		return false, nil

	default:
		return false, fmt.Errorf("dedup: lookup: %w", err)
	}
}

// Sweep removes records last seen before cutoff and returns how many were
// deleted.
func (db *DB) Sweep(cutoff time.Time) (int64, error) {
	res, err := db.conn.Exec(`DELETE FROM seen WHERE ts < ?`, float64(cutoff.UnixNano())/1e9)
	if err != nil {
		return 0, fmt.Errorf("dedup: sweep: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("dedup: sweep rows: %w", err)
	}
	return n, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
