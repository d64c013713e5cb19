// Package sqlite stores the order history in a local SQLite file, opened in
// WAL mode so readers of the history endpoint do not block event writers.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/tackle-shop/internal/auditlog"

	// pure-Go driver, no cgo
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS order_history (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    order_number  TEXT    NOT NULL,
    kind          TEXT    NOT NULL,
    from_status   TEXT    NOT NULL DEFAULT '',
    to_status     TEXT    NOT NULL,
    actor_id      INTEGER NOT NULL,
    role          TEXT    NOT NULL,
    trace_id      TEXT    NOT NULL DEFAULT '',
    span_id       TEXT    NOT NULL DEFAULT '',
    at            TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_order_history_order ON order_history(order_number, id);
CREATE INDEX IF NOT EXISTS idx_order_history_trace ON order_history(trace_id);
`

type Repository struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Repository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	// single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Save(ctx context.Context, e *auditlog.Entry) error {
	const q = `
		INSERT INTO order_history
			(order_number, kind, from_status, to_status, actor_id, role, trace_id, span_id, at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		e.OrderNumber,
		string(e.Kind),
		string(e.From),
		string(e.To),
		e.ActorID,
		string(e.Role),
		e.TraceID,
		e.SpanID,
		formatTime(e.At),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save history for %q: %w", e.OrderNumber, err)
	}
	return nil
}

func (r *Repository) List(ctx context.Context, orderNumber string) ([]auditlog.Entry, error) {
	const q = `
		SELECT order_number, kind, from_status, to_status, actor_id, role, trace_id, span_id, at
		FROM   order_history
		WHERE  order_number = ?
		ORDER  BY id`

	rows, err := r.db.QueryContext(ctx, q, orderNumber)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list history for %q: %w", orderNumber, err)
	}
	defer rows.Close()

	entries := []auditlog.Entry{}
	for rows.Next() {
		var e auditlog.Entry
		var at string
		if err := rows.Scan(&e.OrderNumber, &e.Kind, &e.From, &e.To, &e.ActorID, &e.Role, &e.TraceID, &e.SpanID, &at); err != nil {
			return nil, fmt.Errorf("sqlite: scan history: %w", err)
		}
		if e.At, err = parseTime(at); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: rows: %w", err)
	}
	return entries, nil
}
