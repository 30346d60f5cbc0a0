package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// timeLayout is fixed width so stored UTC timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS attributes (
	attribute_id TEXT PRIMARY KEY,
	position     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS subjects (
	name     TEXT PRIMARY KEY,
	position INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS subject_values (
	subject      TEXT NOT NULL REFERENCES subjects(name) ON DELETE CASCADE,
	attribute_id TEXT NOT NULL REFERENCES attributes(attribute_id) ON DELETE CASCADE,
	value        REAL,
	PRIMARY KEY (subject, attribute_id)
);

CREATE TABLE IF NOT EXISTS game_sessions (
	id            TEXT PRIMARY KEY,
	state         TEXT NOT NULL,
	model_version TEXT NOT NULL,
	updated_at    TEXT NOT NULL,
	prepared      TEXT
);

CREATE TABLE IF NOT EXISTS learning_events (
	sequence      INTEGER PRIMARY KEY,
	kind          TEXT NOT NULL,
	subject       TEXT NOT NULL DEFAULT '',
	attribute_id  TEXT NOT NULL DEFAULT '',
	model_version TEXT NOT NULL DEFAULT '',
	success       INTEGER NOT NULL,
	detail        TEXT NOT NULL DEFAULT '',
	created_at    TEXT NOT NULL
);
`

// Store wraps the SQLite database and hands out repositories.
type Store struct {
	db  *sql.DB
	seq *sequenceCounter
	now func() time.Time
}

// Open creates a new Store connected to the SQLite database at dsn.
// It applies recommended pragmas and creates missing tables.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	if err := addColumn(db, "game_sessions", "prepared", "TEXT"); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	seq, err := newSequenceCounter(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, seq: seq, now: time.Now}, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Matrix returns the subject matrix repository.
func (s *Store) Matrix() *MatrixRepo {
	return &MatrixRepo{db: s.db}
}

// Sessions returns the game session repository.
func (s *Store) Sessions() *SessionRepo {
	return &SessionRepo{db: s.db, now: s.now}
}

// Events returns the learning event log.
func (s *Store) Events() *EventRepo {
	return &EventRepo{db: s.db, seq: s.seq, now: s.now}
}

// addColumn adds column to a table created by an older schema.
func addColumn(db *sql.DB, table, column, typ string) error {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			def     sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &def, &pk); err != nil {
			return err
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()
	_, err = db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, typ))
	return err
}

// applyPragmas configures SQLite for optimal single-user performance.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DataDir resolves the data directory in priority order:
// 1. PREDINATOR_DATA_DIR environment variable
// 2. $XDG_DATA_HOME/predinator
// 3. ~/.local/share/predinator
func DataDir() (string, error) {
	if p := os.Getenv("PREDINATOR_DATA_DIR"); p != "" {
		return p, nil
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "predinator"), nil
}

// DefaultDBPath resolves the database file path: PREDINATOR_DB if set,
// otherwise predinator.db under DataDir. The parent directory is created.
func DefaultDBPath() (string, error) {
	if p := os.Getenv("PREDINATOR_DB"); p != "" {
		return p, EnsureDir(p)
	}
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	p := filepath.Join(dir, "predinator.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}
