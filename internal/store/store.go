// Package store is the Entity Store: typed access to the document
// collections created by package db.
//
// Every write replaces the whole document and rewrites the key columns
// from it, so the indexed columns can never drift from the JSON. Races
// between requests are settled by the UNIQUE constraints in the schema
// and by single-statement upserts, never by check-then-insert.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campushub/eventhub/internal/apperr"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store reads and writes documents through a Querier. A Store returned by
// WithTx is bound to that transaction.
type Store struct {
	q  Querier
	db *sql.DB
}

// New returns a Store backed by the connection pool.
func New(db *sql.DB) *Store {
	return &Store{q: db, db: db}
}

// DB exposes the underlying pool for maintenance tasks. It is nil on a
// transaction-bound Store.
func (s *Store) DB() *sql.DB { return s.db }

// WithTx runs fn inside a transaction. fn must only use the Store it is
// given; the pool has a single connection, so touching the outer Store
// from inside fn would wait forever. A Store that is already bound to a
// transaction runs fn directly.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.db == nil {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is a no-op after Commit succeeds

	if err := fn(&Store{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func ts(t time.Time) string { return t.UTC().Format(timeLayout) }

func encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(b), nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// getDoc loads the single document selected by query (which must select
// exactly the doc column).
func getDoc[T any](ctx context.Context, q Querier, entity, query string, args ...any) (*T, error) {
	var raw string
	if err := q.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
		return nil, translate(err, entity)
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", entity, err)
	}
	return &v, nil
}

// listDocs loads every document selected by query. Rows are fully read and
// closed before returning, which the single-connection pool relies on.
func listDocs[T any](ctx context.Context, q Querier, query string, args ...any) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// Initialise to an empty slice, not nil, so JSON encodes as [] not null.
	out := []T{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// listStrings loads a single string column.
func listStrings(ctx context.Context, q Querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func count(ctx context.Context, q Querier, query string, args ...any) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// exec runs a write that must touch exactly one row; zero rows means the
// entity does not exist.
func execOne(ctx context.Context, q Querier, entity, query string, args ...any) error {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return translate(err, entity)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound(entity)
	}
	return nil
}

// uniqueMessages maps the column list reported by SQLite onto the field
// name and message shown to clients.
var uniqueMessages = map[string][2]string{
	"users.email":                                   {"email", "email already registered"},
	"users.roll_number":                             {"rollNumber", "roll number already registered"},
	"events.event_code":                             {"eventCode", "event code already exists"},
	"sessions.session_code":                         {"sessionCode", "session code already exists"},
	"sessions.event_id, sessions.sequence":          {"sequence", "a session with this sequence already exists for the event"},
	"registrations.event_id, registrations.user_id": {"registration", "already registered for this event"},
	"attendance.session_id, attendance.user_id":     {"attendance", "attendance already recorded"},
	"certificates.event_id, certificates.user_id":   {"certificate", "certificate already issued"},
	"certificates.certificate_number":               {"certificateNumber", "certificate number already exists"},
	"certificates.verification_code":                {"verificationCode", "verification code already exists"},
	"feedback.event_id, feedback.user_id":           {"feedback", "feedback already submitted"},
	"analytics.period, analytics.window_start, analytics.window_end": {"window", "analytics already generated for this window"},
}

// translate converts driver errors into apperr errors. Duplicate-key
// failures become conflicts naming the offending field.
func translate(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(entity)
	}
	if !isUnique(err) {
		return err
	}

	cols := err.Error()
	if i := strings.LastIndex(cols, "failed: "); i >= 0 {
		cols = cols[i+len("failed: "):]
	}
	if i := strings.Index(cols, " ("); i >= 0 {
		cols = cols[:i]
	}
	cols = strings.TrimSpace(cols)
	if m, ok := uniqueMessages[cols]; ok {
		return apperr.Conflict(m[0], m[1])
	}
	return apperr.Conflict(cols, "duplicate value for "+cols)
}

func isUnique(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Page bounds a list query.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) clause() string {
	if p.Limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", p.Limit, max(p.Offset, 0))
}

// where accumulates AND-ed filter conditions.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
