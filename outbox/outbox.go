// Package outbox persists every trading decision to a local SQLite store
// that an independent execution agent drains, and keeps the journal of
// realized trades. The signal table is append-only from this side: a
// decision is durably committed before the enqueue returns, in exactly the
// order decisions were made.
package outbox

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Actions understood by the execution agent.
const (
	ActionBuy   = "BUY"
	ActionSell  = "SELL"
	ActionClose = "CLOSE"
)

// WriteError means a decision could not be durably recorded. The caller
// must treat the tick as failed and surface the error, never drop the
// signal silently.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("outbox %s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Signal is one queue record.
type Signal struct {
	ID        int64
	Action    string
	CreatedAt time.Time
	Consumed  bool
}

// Outbox is the durable signal queue, one store per brokerage profile.
type Outbox struct {
	db *sql.DB
}

// Open opens or creates the store at path. With purge set, any existing
// rows are dropped first (atomic drop-and-recreate) so a restart does not
// replay stale instructions to the execution agent.
func Open(path string, purge bool) (*Outbox, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open outbox %s: %w", path, err)
	}

	o := &Outbox{db: db}
	if purge {
		if err := o.Purge(); err != nil {
			db.Close()
			return nil, err
		}
		return o, nil
	}

	if _, err := db.Exec(signalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create signals schema: %w", err)
	}
	return o, nil
}

// Append durably records one decision and returns its monotonic id. The
// insert is committed before Append returns.
func (o *Outbox) Append(action string) (int64, error) {
	res, err := o.db.Exec(`INSERT INTO signals (action) VALUES (?)`, action)
	if err != nil {
		return 0, &WriteError{Op: "append", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &WriteError{Op: "append", Err: err}
	}
	return id, nil
}

// Purge atomically drops and recreates the signal table.
func (o *Outbox) Purge() error {
	tx, err := o.db.Begin()
	if err != nil {
		return &WriteError{Op: "purge", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DROP TABLE IF EXISTS signals`); err != nil {
		return &WriteError{Op: "purge", Err: err}
	}
	if _, err := tx.Exec(signalSchema); err != nil {
		return &WriteError{Op: "purge", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &WriteError{Op: "purge", Err: err}
	}
	return nil
}

// List returns all signals in insertion order.
func (o *Outbox) List() ([]Signal, error) {
	rows, err := o.db.Query(`SELECT id, action, created_at, consumed FROM signals ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	defer rows.Close()

	var out []Signal
	for rows.Next() {
		var s Signal
		var consumed int
		if err := rows.Scan(&s.ID, &s.Action, &s.CreatedAt, &consumed); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		s.Consumed = consumed != 0
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountPending returns the number of rows the consumer has not marked
// consumed yet.
func (o *Outbox) CountPending() (int, error) {
	var n int
	err := o.db.QueryRow(`SELECT COUNT(*) FROM signals WHERE consumed = 0`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return n, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}
