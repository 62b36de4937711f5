package journal

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteJournal is a SQLite journal backend.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal creates a SQLite journal backend at path.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	j := &SQLiteJournal{db: db}
	if err := j.init(); err != nil {
		db.Close()
		return nil, err
	}

	return j, nil
}

// init creates the necessary tables.
func (j *SQLiteJournal) init() error {
	_, err := j.db.Exec(`
		CREATE TABLE IF NOT EXISTS journal (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL,
			time TEXT NOT NULL,
			op TEXT NOT NULL,
			module TEXT,
			modules TEXT,
			duration_ns INTEGER DEFAULT 0,
			error TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_journal_op ON journal(op);
	`)
	return err
}

// Append records an entry, assigning its sequence number.
func (j *SQLiteJournal) Append(e *Entry) error {
	modulesJSON, err := json.Marshal(e.Modules)
	if err != nil {
		modulesJSON = []byte("null")
	}

	res, err := j.db.Exec(`
		INSERT INTO journal (id, time, op, module, modules, duration_ns, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Time.Format(time.RFC3339Nano), e.Op, e.Module, string(modulesJSON), int64(e.Duration), e.Error)
	if err != nil {
		return err
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.Seq = seq
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *SQLiteJournal) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultRetention
	}

	rows, err := j.db.Query(`
		SELECT seq, id, time, op, module, modules, duration_ns, error
		FROM journal ORDER BY seq DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var timeStr, modulesStr string
		var durationNS int64

		if err := rows.Scan(&e.Seq, &e.ID, &timeStr, &e.Op, &e.Module, &modulesStr, &durationNS, &e.Error); err != nil {
			return nil, err
		}

		if t, err := time.Parse(time.RFC3339Nano, timeStr); err == nil {
			e.Time = t
		}
		if modulesStr != "" && modulesStr != "null" {
			if err := json.Unmarshal([]byte(modulesStr), &e.Modules); err != nil {
				e.Modules = nil
			}
		}
		e.Duration = time.Duration(durationNS)

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Clear removes all entries.
func (j *SQLiteJournal) Clear() error {
	_, err := j.db.Exec("DELETE FROM journal")
	return err
}

// Close closes the journal backend.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
