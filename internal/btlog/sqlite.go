package btlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/joeycumines/bte/internal/bt"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS transitions (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	time     TEXT NOT NULL,
	node_id  TEXT NOT NULL,
	name     TEXT NOT NULL,
	path     TEXT NOT NULL,
	kind     TEXT NOT NULL,
	previous TEXT NOT NULL,
	current  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS transitions_path ON transitions(path)`

const sqliteInsert = `INSERT INTO transitions (time, node_id, name, path, kind, previous, current)
VALUES (?, ?, ?, ?, ?, ?, ?)`

// SQLite stores transitions in a SQLite database, one transaction per
// batch.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and ensures the
// transitions table exists.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("btlog: open sqlite: %w", err)
	}
	// One connection keeps the pragmas in effect and serializes writers.
	db.SetMaxOpenConns(1)
	for _, stmt := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		sqliteSchema,
	} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("btlog: init sqlite: %w", err)
		}
	}
	return &SQLite{db: db}, nil
}

// WriteBatch implements Backend.
func (s *SQLite) WriteBatch(ctx context.Context, batch []bt.Transition) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("btlog: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	stmt, err := tx.PrepareContext(ctx, sqliteInsert)
	if err != nil {
		return fmt.Errorf("btlog: prepare: %w", err)
	}
	defer stmt.Close()
	for _, tr := range batch {
		if _, err = stmt.ExecContext(ctx,
			tr.Time.UTC().Format(time.RFC3339Nano),
			tr.NodeID.String(),
			tr.Name,
			tr.Path,
			tr.Kind.String(),
			tr.Previous.String(),
			tr.Current.String(),
		); err != nil {
			return fmt.Errorf("btlog: insert: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("btlog: commit: %w", err)
	}
	return nil
}

// Transitions returns the stored transitions in insertion order, at most
// limit of them, or all when limit is 0.
func (s *SQLite) Transitions(ctx context.Context, limit int) ([]bt.Transition, error) {
	query := `SELECT time, node_id, name, path, kind, previous, current FROM transitions ORDER BY id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("btlog: query: %w", err)
	}
	defer rows.Close()

	var out []bt.Transition
	for rows.Next() {
		var ts, id, kind, prev, cur string
		var tr bt.Transition
		if err := rows.Scan(&ts, &id, &tr.Name, &tr.Path, &kind, &prev, &cur); err != nil {
			return nil, fmt.Errorf("btlog: scan: %w", err)
		}
		if tr.Time, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("btlog: row time: %w", err)
		}
		if tr.NodeID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("btlog: row node id: %w", err)
		}
		if err := tr.Kind.UnmarshalText([]byte(kind)); err != nil {
			return nil, fmt.Errorf("btlog: row kind: %w", err)
		}
		if err := tr.Previous.UnmarshalText([]byte(prev)); err != nil {
			return nil, fmt.Errorf("btlog: row previous: %w", err)
		}
		if err := tr.Current.UnmarshalText([]byte(cur)); err != nil {
			return nil, fmt.Errorf("btlog: row current: %w", err)
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// Close implements Backend.
func (s *SQLite) Close() error { return s.db.Close() }
