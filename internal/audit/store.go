// Package audit persists a record of every processed command: the raw
// text, its classified intent, and the action and status of the
// response. The log feeds later learning and offline inspection; it is
// append-only apart from time-based pruning.
package audit

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Interaction is one processed-command record.
type Interaction struct {
	ID        string
	Command   string
	Intent    string
	Action    string
	Status    string
	Timestamp time.Time
}

// Store is the SQLite-backed interaction log. All public methods are
// safe for concurrent use (SQLite serializes writes).
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the interaction log at the given database
// path. The schema is created automatically on first use.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS interactions (
		id         TEXT NOT NULL PRIMARY KEY,
		command    TEXT NOT NULL,
		intent     TEXT NOT NULL,
		action     TEXT NOT NULL,
		status     TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_interactions_created
		ON interactions (created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record appends one interaction.
func (s *Store) Record(i Interaction) error {
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO interactions (id, command, intent, action, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		i.ID, i.Command, i.Intent, i.Action, i.Status,
		i.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}
	return nil
}

// Recent returns the most recent interactions, newest first. A
// non-positive limit defaults to 20.
func (s *Store) Recent(limit int) ([]Interaction, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, command, intent, action, status, created_at
		 FROM interactions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	var result []Interaction
	for rows.Next() {
		var i Interaction
		var createdAt string
		if err := rows.Scan(&i.ID, &i.Command, &i.Intent, &i.Action, &i.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		i.Timestamp, _ = time.Parse(time.RFC3339Nano, createdAt)
		result = append(result, i)
	}
	return result, rows.Err()
}

// CountByIntent returns interaction counts grouped by classified intent.
func (s *Store) CountByIntent() (map[string]int64, error) {
	rows, err := s.db.Query(
		`SELECT intent, COUNT(*) FROM interactions GROUP BY intent`)
	if err != nil {
		return nil, fmt.Errorf("count interactions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var intent string
		var n int64
		if err := rows.Scan(&intent, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[intent] = n
	}
	return counts, rows.Err()
}

// Prune deletes interactions older than the cutoff and reports how many
// were removed.
func (s *Store) Prune(olderThan time.Time) (int64, error) {
	res, err := s.db.Exec(
		`DELETE FROM interactions WHERE created_at < ?`,
		olderThan.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("prune interactions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
