// Package db handles SQLite initialisation and schema migrations.
//
// ────────────────────────────────────────────────────────────────────
// LEARNING NOTE — documents on top of SQLite
// ────────────────────────────────────────────────────────────────────
// Every collection (users, events, sessions, ...) is one table holding
// the whole JSON document in a "doc" column. The few fields we filter
// on or need uniqueness for are duplicated into real columns so SQLite
// can index them and enforce UNIQUE constraints. Those constraints are
// what resolve races between concurrent requests: two registrations for
// the same (event,user) cannot both be inserted, no matter the timing.
//
// modernc.org/sqlite is a pure-Go port of SQLite, so the binary needs
// no C toolchain. Migrations are plain SQL files embedded in the binary
// and applied with goose on every Open.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"

	// Blank import: the modernc driver registers itself with
	// database/sql under the name "sqlite" when this package loads.
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Collections lists every table, in creation order.
var Collections = []string{
	"users", "events", "sessions", "registrations", "attendance",
	"certificates", "feedback", "notifications", "analytics", "performance",
}

// Open opens (or creates) the SQLite database at dsn and runs all migrations.
//
// Recommended DSN formats for modernc.org/sqlite:
//   - Production file: "eventhub.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
//   - Tests:           "file:testXYZ?mode=memory&cache=shared"
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := Migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	// SQLite has a single writer. One pooled connection turns concurrent
	// writers into a queue instead of SQLITE_BUSY / SQLITE_LOCKED errors.
	// Callers must therefore never hold a *sql.Rows open while issuing
	// another query.
	db.SetMaxOpenConns(1)

	slog.Debug("database ready", "dsn", dsn)
	return db, nil
}

func newProvider(db *sql.DB) (*goose.Provider, error) {
	sub, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return nil, err
	}
	return goose.NewProvider(goose.DialectSQLite3, db, sub, goose.WithVerbose(false))
}

// Migrate applies every pending migration. It is safe to call repeatedly.
func Migrate(ctx context.Context, db *sql.DB) error {
	p, err := newProvider(db)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	results, err := p.Up(ctx)
	if err != nil {
		return err
	}
	for _, r := range results {
		slog.Debug("migration applied", "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

// Health is the database section of the admin health report.
type Health struct {
	OK               bool             `json:"ok"`
	SchemaVersion    int64            `json:"schemaVersion"`
	PendingMigration bool             `json:"pendingMigration"`
	Collections      map[string]int64 `json:"collections"`
}

// Status pings the database and reports the schema version and the
// document count of every collection.
func Status(ctx context.Context, db *sql.DB) (Health, error) {
	h := Health{Collections: make(map[string]int64, len(Collections))}
	if err := db.PingContext(ctx); err != nil {
		return h, fmt.Errorf("ping: %w", err)
	}

	p, err := newProvider(db)
	if err != nil {
		return h, fmt.Errorf("goose provider: %w", err)
	}
	if h.SchemaVersion, err = p.GetDBVersion(ctx); err != nil {
		return h, fmt.Errorf("schema version: %w", err)
	}
	statuses, err := p.Status(ctx)
	if err != nil {
		return h, fmt.Errorf("migration status: %w", err)
	}
	for _, st := range statuses {
		if st.State == goose.StatePending {
			h.PendingMigration = true
		}
	}

	for _, name := range Collections {
		var n int64
		// Table names come from the fixed Collections list, never from input.
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+name).Scan(&n); err != nil {
			return h, fmt.Errorf("count %s: %w", name, err)
		}
		h.Collections[name] = n
	}
	h.OK = true
	return h, nil
}
