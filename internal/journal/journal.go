// Package journal records every committed update cycle in SQLite so
// operators can see what each feed applied and expired over time.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one committed cycle.
type Entry struct {
	RunID   string    `json:"run_id"`
	Updater string    `json:"updater"`
	At      time.Time `json:"at"`
	Applied []string  `json:"applied"`
	Expired []string  `json:"expired"`
	Failed  int       `json:"failed"`
	Error   string    `json:"error,omitempty"`
}

// Journal is an append-only commit log.
type Journal struct {
	db      *sql.DB
	stmtAdd *sql.Stmt
}

// Open creates or opens the journal at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection serializes writers without SQLITE_BUSY retries.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS commits (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		updater TEXT NOT NULL,
		at INTEGER NOT NULL,
		applied JSON NOT NULL,
		expired JSON NOT NULL,
		failed INTEGER NOT NULL DEFAULT 0,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_commits_updater ON commits(updater, seq);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	stmt, err := db.Prepare(`INSERT INTO commits (run_id, updater, at, applied, expired, failed, error) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	return &Journal{db: db, stmtAdd: stmt}, nil
}

func encodeIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	return string(b), err
}

// Record appends e.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	applied, err := encodeIDs(e.Applied)
	if err != nil {
		return err
	}
	expired, err := encodeIDs(e.Expired)
	if err != nil {
		return err
	}
	var errText sql.NullString
	if e.Error != "" {
		errText = sql.NullString{String: e.Error, Valid: true}
	}
	if _, err := j.stmtAdd.ExecContext(ctx, e.RunID, e.Updater, e.At.UnixMilli(), applied, expired, e.Failed, errText); err != nil {
		return fmt.Errorf("record %s: %w", e.RunID, err)
	}
	return nil
}

// Recent returns up to limit entries for updater, newest first.
func (j *Journal) Recent(ctx context.Context, updater string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, updater, at, applied, expired, failed, error
		FROM commits WHERE updater = ? ORDER BY seq DESC LIMIT ?`, updater, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var (
			e                scanRow
			applied, expired string
		)
		if err := rows.Scan(&e.RunID, &e.Updater, &e.at, &applied, &expired, &e.Failed, &e.errText); err != nil {
			return nil, err
		}
		entry := Entry{RunID: e.RunID, Updater: e.Updater, At: time.UnixMilli(e.at), Failed: e.Failed}
		if e.errText.Valid {
			entry.Error = e.errText.String
		}
		if err := json.Unmarshal([]byte(applied), &entry.Applied); err != nil {
			return nil, fmt.Errorf("decode applied ids of %s: %w", e.RunID, err)
		}
		if err := json.Unmarshal([]byte(expired), &entry.Expired); err != nil {
			return nil, fmt.Errorf("decode expired ids of %s: %w", e.RunID, err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// scanRow holds the columns of one commits row.
type scanRow struct {
	RunID   string
	Updater string
	at      int64
	Failed  int
	errText sql.NullString
}

func (j *Journal) Close() error {
	_ = j.stmtAdd.Close()
	return j.db.Close()
}
