package engine

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"

	"github.com/celerix-dev/wardledger/pkg/schema"
)

//go:embed schema.sql
var schemaSQL string

// JournalFile is the database file name inside the data directory.
const JournalFile = "ledger.db"

// SQLiteJournal is the append-only event log backing a Ledger.
// Events are ordered by seq; nothing is ever updated or deleted.
type SQLiteJournal struct {
	db *sql.DB
}

// OpenJournal creates or opens the journal in dataDir.
func OpenJournal(dataDir string) (*SQLiteJournal, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return OpenJournalFile(filepath.Join(dataDir, JournalFile))
}

// OpenJournalFile creates or opens the journal at path.
func OpenJournalFile(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect journal: %w", err)
	}

	// Single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteJournal{db: db}, nil
}

// Close closes the database connection.
func (j *SQLiteJournal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Append stores events in one transaction.
func (j *SQLiteJournal) Append(ctx context.Context, events []schema.Event) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (seq, id, kind, record_id, status, uri, actor, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("append: prepare: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		_, err := stmt.ExecContext(ctx,
			int64(ev.Seq),
			ev.ID,
			string(ev.Kind),
			int64(ev.RecordID),
			ev.Status.String(),
			ev.URI,
			ev.Actor,
			ev.At.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("append: event %d: %w", ev.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append: commit: %w", err)
	}
	return nil
}

// Load returns every stored event in seq order.
func (j *SQLiteJournal) Load(ctx context.Context) ([]schema.Event, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, id, kind, record_id, status, uri, actor, at
		FROM events
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	defer rows.Close()

	events := []schema.Event{}
	for rows.Next() {
		var (
			ev               schema.Event
			seq, recordID    int64
			kind, status, at string
		)
		if err := rows.Scan(&seq, &ev.ID, &kind, &recordID, &status, &ev.URI, &ev.Actor, &at); err != nil {
			return nil, fmt.Errorf("load: scan: %w", err)
		}
		ev.Seq = uint64(seq)
		ev.RecordID = uint64(recordID)
		ev.Kind = schema.EventKind(kind)
		if ev.Status, err = schema.ParseStatus(status); err != nil {
			return nil, fmt.Errorf("load: event %d: %w", seq, err)
		}
		if ev.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("load: event %d: %w", seq, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load: iterate: %w", err)
	}
	return events, nil
}

const adminKey = "admin"

// LoadAdmin returns the administrator bound to this journal; ok is false before the first bind.
func (j *SQLiteJournal) LoadAdmin(ctx context.Context) (addr common.Address, ok bool, err error) {
	var value string
	err = j.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, adminKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return common.Address{}, false, nil
	}
	if err != nil {
		return common.Address{}, false, fmt.Errorf("load admin: %w", err)
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, false, fmt.Errorf("load admin: stored value %q is not an address", value)
	}
	return common.HexToAddress(value), true, nil
}

// SaveAdmin binds the journal to admin, replacing any earlier administrator.
func (j *SQLiteJournal) SaveAdmin(ctx context.Context, admin common.Address) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, adminKey, admin.Hex())
	if err != nil {
		return fmt.Errorf("save admin: %w", err)
	}
	return nil
}
