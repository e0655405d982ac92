// Package history keeps a durable log of detected spell casts so the
// web UI can show what happened while nobody was watching.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Cast sources. Wand-native detection arrives as a spell message from
// the firmware, server detection goes through the classifier.
const (
	SourceWand   = "wand"
	SourceServer = "server"
)

// Cast is one recorded spell detection.
type Cast struct {
	ID         int64     `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	WandID     string    `json:"wandId"`
	Spell      string    `json:"spell"`
	Source     string    `json:"source"`
	Confidence float64   `json:"confidence"` // 0 for wand-native casts
}

// Store is a SQLite-backed cast log.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the cast database at dbPath and runs the
// schema migration.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cast db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cast db: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS casts (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  TEXT NOT NULL,
			wand_id    TEXT NOT NULL,
			spell      TEXT NOT NULL,
			source     TEXT NOT NULL,
			confidence REAL NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_casts_timestamp ON casts(timestamp);
	`)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends a cast to the log. The cast's ID is filled in on
// return.
func (s *Store) Record(_ context.Context, c *Cast) error {
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now().UTC()
	}
	res, err := s.db.Exec(
		"INSERT INTO casts (timestamp, wand_id, spell, source, confidence) VALUES (?, ?, ?, ?, ?)",
		c.Timestamp.UTC().Format(time.RFC3339Nano), c.WandID, c.Spell, c.Source, c.Confidence,
	)
	if err != nil {
		return fmt.Errorf("record cast: %w", err)
	}
	c.ID, _ = res.LastInsertId()
	return nil
}

// Recent returns up to limit casts, newest first.
func (s *Store) Recent(_ context.Context, limit int) ([]Cast, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		"SELECT id, timestamp, wand_id, spell, source, confidence FROM casts ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCasts(rows)
}

// Since returns all casts recorded at or after the given time, newest
// first.
func (s *Store) Since(_ context.Context, since time.Time) ([]Cast, error) {
	rows, err := s.db.Query(
		"SELECT id, timestamp, wand_id, spell, source, confidence FROM casts WHERE timestamp >= ? ORDER BY id DESC",
		since.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCasts(rows)
}

// CountBySpell returns the number of recorded casts per spell name.
func (s *Store) CountBySpell(_ context.Context) (map[string]int, error) {
	rows, err := s.db.Query("SELECT spell, COUNT(*) FROM casts GROUP BY spell")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var spell string
		var n int
		if err := rows.Scan(&spell, &n); err != nil {
			return nil, err
		}
		counts[spell] = n
	}
	return counts, rows.Err()
}

// Prune deletes casts older than the given time and returns how many
// rows were removed.
func (s *Store) Prune(_ context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.Exec(
		"DELETE FROM casts WHERE timestamp < ?",
		olderThan.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("prune casts: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanCasts(rows *sql.Rows) ([]Cast, error) {
	var casts []Cast
	for rows.Next() {
		var c Cast
		var ts string
		if err := rows.Scan(&c.ID, &ts, &c.WandID, &c.Spell, &c.Source, &c.Confidence); err != nil {
			return nil, err
		}
		c.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		casts = append(casts, c)
	}
	return casts, rows.Err()
}
