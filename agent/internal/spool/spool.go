// Package spool is a durable SQLite outbox for shipper envelopes.
//
// Envelopes survive agent restarts and server outages. The table is bounded
// by max_rows; when a push would exceed it the oldest rows are deleted.
package spool

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/linkwatch/linkwatch/agent/internal/shipper"
)

const schema = `
CREATE TABLE IF NOT EXISTS outbox (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    id         TEXT NOT NULL UNIQUE,
    kind       TEXT NOT NULL,
    monitor_id TEXT NOT NULL,
    payload    BLOB NOT NULL,
    created_at TEXT NOT NULL
);
`

// Outbox implements shipper.Queue on a SQLite table.
type Outbox struct {
	db      *sql.DB
	maxRows int
	log     zerolog.Logger
}

// Open opens (creating if needed) the outbox database at path.
func Open(path string, maxRows int, log zerolog.Logger) (*Outbox, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("spool: open %s: %w", path, err)
	}
	// One writer; SQLite serialises anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("spool: %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("spool: create schema: %w", err)
	}

	if maxRows <= 0 {
		maxRows = 1
	}
	o := &Outbox{db: db, maxRows: maxRows, log: log}
	if n, err := o.Len(); err == nil && n > 0 {
		log.Info().Int("pending", n).Str("path", path).Msg("spool: resuming outbox")
	}
	return o, nil
}

var _ shipper.Queue = (*Outbox)(nil)

func (o *Outbox) Push(env shipper.Envelope) error {
	tx, err := o.db.Begin()
	if err != nil {
		return fmt.Errorf("spool: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(
		`INSERT OR IGNORE INTO outbox (id, kind, monitor_id, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		env.ID, string(env.Kind), env.MonitorID, []byte(env.Payload), env.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("spool: insert: %w", err)
	}

	res, err := tx.Exec(
		`DELETE FROM outbox WHERE seq NOT IN (SELECT seq FROM outbox ORDER BY seq DESC LIMIT ?)`,
		o.maxRows,
	)
	if err != nil {
		return fmt.Errorf("spool: trim: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("spool: commit: %w", err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		o.log.Warn().Int64("dropped", n).Int("max_rows", o.maxRows).
			Msg("spool: outbox full, dropped oldest envelopes")
	}
	return nil
}

func (o *Outbox) Peek() (shipper.Envelope, bool, error) {
	var (
		env     shipper.Envelope
		kind    string
		payload []byte
		created string
	)
	err := o.db.QueryRow(
		`SELECT id, kind, monitor_id, payload, created_at FROM outbox ORDER BY seq ASC LIMIT 1`,
	).Scan(&env.ID, &kind, &env.MonitorID, &payload, &created)
	if err == sql.ErrNoRows {
		return shipper.Envelope{}, false, nil
	}
	if err != nil {
		return shipper.Envelope{}, false, fmt.Errorf("spool: peek: %w", err)
	}

	env.Kind = shipper.Kind(kind)
	env.Payload = json.RawMessage(payload)
	if env.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		o.log.Warn().Err(err).Str("id", env.ID).Msg("spool: bad created_at")
	}
	return env, true, nil
}

func (o *Outbox) Ack(id string) error {
	if _, err := o.db.Exec(`DELETE FROM outbox WHERE id = ?`, id); err != nil {
		return fmt.Errorf("spool: ack %s: %w", id, err)
	}
	return nil
}

func (o *Outbox) Len() (int, error) {
	var n int
	if err := o.db.QueryRow(`SELECT COUNT(*) FROM outbox`).Scan(&n); err != nil {
		return 0, fmt.Errorf("spool: count: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (o *Outbox) Close() error {
	return o.db.Close()
}
