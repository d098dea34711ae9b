package history

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Turn roles as stored in the log.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one logged exchange entry. Turns are immutable once appended.
type Turn struct {
	ID        int64  `json:"id"`
	Role      string `json:"role"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"created_at"`
}

// Log is the persisted, append-only conversation log. It is shared by every
// assistant surface; nothing removes turns.
type Log struct {
	db     *sql.DB
	window int
}

const schema = `
CREATE TABLE IF NOT EXISTS turns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	role TEXT NOT NULL,
	text TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_created ON turns(created_at);
`

// Open opens (creating if needed) the history database at path. window is
// the maximum number of most recent turns replayed into prompts; zero means
// replay everything.
func Open(path string, window int) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create turns table: %w", err)
	}

	return &Log{db: db, window: window}, nil
}

// Append records a turn. The full ordered sequence is persisted; turns are
// never rewritten.
func (l *Log) Append(role, text string) error {
	_, err := l.db.Exec(
		"INSERT INTO turns (role, text, created_at) VALUES (?, ?, ?)",
		role, text, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// Turns returns the most recent turns in chronological order, capped by the
// configured window (all turns when the window is zero).
func (l *Log) Turns() ([]Turn, error) {
	query := "SELECT id, role, text, created_at FROM turns ORDER BY id DESC"
	args := []interface{}{}
	if l.window > 0 {
		query += " LIMIT ?"
		args = append(args, l.window)
	}

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.Role, &t.Text, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	return turns, nil
}

// Render serializes the windowed transcript for prompt replay. An empty or
// unreadable log renders as an empty string; that is a recoverable
// condition, not an error the caller has to handle.
func (l *Log) Render() string {
	turns, err := l.Turns()
	if err != nil || len(turns) == 0 {
		return ""
	}

	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Text)
	}
	return b.String()
}

// Count returns the number of persisted turns.
func (l *Log) Count() (int, error) {
	var count int
	if err := l.db.QueryRow("SELECT COUNT(*) FROM turns").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count turns: %w", err)
	}
	return count, nil
}

// Checkpoint forces a WAL checkpoint, used during graceful shutdown.
func (l *Log) Checkpoint() error {
	_, err := l.db.Exec("PRAGMA wal_checkpoint(RESTART)")
	return err
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}
