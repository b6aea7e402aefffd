// Package sqlite implements the repository interfaces on SQLite.
//
// modernc.org/sqlite is a pure Go translation of SQLite: no CGo, no C
// compiler, works everywhere Go does. The database is a single file (or
// ":memory:" in tests).
package sqlite

import (
	"database/sql"
	"fmt"

	// Side-effect import: registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides the repository methods.
// One DB value implements every repository interface; services receive it
// through those interfaces.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" for an in-memory database in tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent reads while a write is in flight; the webhook
	// handler and a sync pass can touch the store at the same time.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return db, nil
}

// Close closes the connection pool. Callers should defer this next to New.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps this safe to
// run on every start.
//
// users.id is the provider's numeric account id, not a generated key.
// users.last_synced is the sync watermark in unix seconds, NULL until the
// first sync. members carries a UNIQUE(email, list_id) constraint so member
// inserts can be INSERT OR IGNORE, the idempotency the sync and webhook
// paths rely on.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id          INTEGER PRIMARY KEY,
			username    TEXT NOT NULL,
			email       TEXT NOT NULL DEFAULT '',
			last_synced INTEGER
		);

		CREATE TABLE IF NOT EXISTS sessions (
			id           TEXT PRIMARY KEY,
			user_id      INTEGER NOT NULL REFERENCES users(id),
			access_token TEXT NOT NULL,
			dc           TEXT NOT NULL,
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);

		CREATE TABLE IF NOT EXISTS lists (
			id         TEXT PRIMARY KEY,
			user_id    INTEGER NOT NULL REFERENCES users(id),
			webhook_id TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS campaigns (
			id        TEXT PRIMARY KEY,
			title     TEXT NOT NULL,
			list_id   TEXT NOT NULL REFERENCES lists(id),
			user_id   INTEGER NOT NULL REFERENCES users(id),
			video_tag TEXT NOT NULL DEFAULT '',
			image_tag TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_campaigns_list_id ON campaigns(list_id);

		CREATE TABLE IF NOT EXISTS members (
			email       TEXT NOT NULL,
			full_name   TEXT NOT NULL,
			list_id     TEXT NOT NULL,
			campaign_id TEXT NOT NULL DEFAULT '',
			UNIQUE(email, list_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
