// Package diagnostics keeps a local, non-authoritative audit trail of
// Planner actions/results and USB supervisor transitions in SQLite.
// Nothing here feeds back into a Planner decision; the database is
// wiped and recreated on every boot, so it never becomes a second
// source of truth for state the Planner itself owns.
package diagnostics

import (
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection backing the diagnostics log.
type DB struct {
	*sql.DB
}

// Open removes any existing database file at path and creates a fresh
// one, then runs the schema. Wiping on every boot is deliberate: this
// log is a debugging aid for the current run, not a record the Planner
// is allowed to reconstruct past decisions from — keeping it wiped
// keeps that boundary unambiguous even though nothing stops a scratch
// log like this from surviving a reboot on its own.
func Open(path string) (*DB, error) {
	if path != "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("diagnostics: remove stale database: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("diagnostics: open db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	db := &DB{sqlDB}
	if _, err := db.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("diagnostics: create schema: %w", err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS planner_actions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    kind        TEXT NOT NULL,
    detail      TEXT NOT NULL DEFAULT '',
    result      TEXT NOT NULL DEFAULT '',
    occurred_at TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);

CREATE TABLE IF NOT EXISTS usb_transitions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    from_phase  TEXT NOT NULL,
    to_phase    TEXT NOT NULL,
    reason      TEXT NOT NULL DEFAULT '',
    occurred_at TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
`

// LogAction records one Planner action/result pair.
func (db *DB) LogAction(kind, detail, result string) error {
	_, err := db.Exec(`INSERT INTO planner_actions (kind, detail, result) VALUES (?, ?, ?)`, kind, detail, result)
	return err
}

// LogUSBTransition records one USB supervisor phase transition.
func (db *DB) LogUSBTransition(from, to, reason string) error {
	_, err := db.Exec(`INSERT INTO usb_transitions (from_phase, to_phase, reason) VALUES (?, ?, ?)`, from, to, reason)
	return err
}

// PlannerAction is a row from planner_actions, for the web UI.
type PlannerAction struct {
	ID         int64
	Kind       string
	Detail     string
	Result     string
	OccurredAt string
}

// RecentActions returns the most recent limit planner actions, newest first.
func (db *DB) RecentActions(limit int) ([]PlannerAction, error) {
	rows, err := db.Query(`SELECT id, kind, detail, result, occurred_at FROM planner_actions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PlannerAction
	for rows.Next() {
		var a PlannerAction
		if err := rows.Scan(&a.ID, &a.Kind, &a.Detail, &a.Result, &a.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// USBTransition is a row from usb_transitions, for the web UI.
type USBTransition struct {
	ID         int64
	FromPhase  string
	ToPhase    string
	Reason     string
	OccurredAt string
}

// RecentUSBTransitions returns the most recent limit USB transitions, newest first.
func (db *DB) RecentUSBTransitions(limit int) ([]USBTransition, error) {
	rows, err := db.Query(`SELECT id, from_phase, to_phase, reason, occurred_at FROM usb_transitions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []USBTransition
	for rows.Next() {
		var t USBTransition
		if err := rows.Scan(&t.ID, &t.FromPhase, &t.ToPhase, &t.Reason, &t.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
