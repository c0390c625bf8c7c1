// Package journal keeps a persistent history of completed preparations in
// a SQLite database.
package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Entry is one completed preparation.
type Entry struct {
	ID         string `db:"id"`
	Timestamp  int64  `db:"timestamp"`
	ConnID     string `db:"conn_id"`
	StmtID     string `db:"stmt_id"`
	SQL        string `db:"sql_text"`
	Kind       *int   `db:"kind"`        // nil when preparation failed
	BufferSize *int   `db:"buffer_size"` // nil when preparation failed
	Outputs    int    `db:"outputs"`
	Error      string `db:"error"`
	ElapsedUS  int64  `db:"elapsed_us"`
}

// Failed reports whether the entry records an error.
func (e Entry) Failed() bool {
	return e.Error != ""
}

// Time returns the completion time.
func (e Entry) Time() time.Time {
	return time.Unix(0, e.Timestamp).UTC()
}

// Elapsed returns how long the background phase took.
func (e Entry) Elapsed() time.Duration {
	return time.Duration(e.ElapsedUS) * time.Microsecond
}

// Journal records entries.
type Journal struct {
	db *sqlx.DB
}

// Open opens or creates the journal database at path.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	j, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// New creates a journal on an already opened database.
func New(db *sqlx.DB) (*Journal, error) {
	if err := DBInit(db); err != nil {
		return nil, fmt.Errorf("init journal: %w", err)
	}
	return &Journal{db: db}, nil
}

// DBInit creates the journal table and its indexes.
func DBInit(db *sqlx.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS prepare_journal (
		id TEXT PRIMARY KEY,
		timestamp INTEGER NOT NULL,
		conn_id TEXT NOT NULL,
		stmt_id TEXT NOT NULL,
		sql_text TEXT NOT NULL,
		kind INTEGER,
		buffer_size INTEGER,
		outputs INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		elapsed_us INTEGER NOT NULL DEFAULT 0
	)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_prepare_journal_timestamp ON prepare_journal(timestamp)`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_prepare_journal_stmt_id ON prepare_journal(stmt_id)`)
	return err
}

// Record stores e. ID and Timestamp are filled in when empty.
func (j *Journal) Record(e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UTC().UnixNano()
	}

	_, err := j.db.NamedExec(`
		INSERT INTO prepare_journal (
			id, timestamp, conn_id, stmt_id, sql_text,
			kind, buffer_size, outputs, error, elapsed_us
		) VALUES (
			:id, :timestamp, :conn_id, :stmt_id, :sql_text,
			:kind, :buffer_size, :outputs, :error, :elapsed_us
		)`, e)
	if err != nil {
		Logger().Warn("journal write failed", zap.String("stmt", e.StmtID), zap.Error(err))
		return fmt.Errorf("record %s: %w", e.StmtID, err)
	}
	Logger().Debug("journal entry", zap.String("id", e.ID), zap.String("stmt", e.StmtID))
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	var entries []Entry
	err := j.db.Select(&entries, `
		SELECT * FROM prepare_journal
		ORDER BY timestamp DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent entries: %w", err)
	}
	return entries, nil
}

// ForStatement returns every entry recorded for stmtID, oldest first.
func (j *Journal) ForStatement(stmtID string) ([]Entry, error) {
	var entries []Entry
	err := j.db.Select(&entries, `
		SELECT * FROM prepare_journal
		WHERE stmt_id = $1
		ORDER BY timestamp`, stmtID)
	if err != nil {
		return nil, fmt.Errorf("entries for %s: %w", stmtID, err)
	}
	return entries, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
