package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Initialize opens (creating if needed) the sqlite database at dbPath.
// A non-empty encryptionKey is applied with PRAGMA key, which needs a
// SQLCipher-linked build.
func Initialize(dbPath, encryptionKey string) (*sql.DB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// one connection: sqlite serializes writers anyway, and an in-memory
	// database only exists on the connection that created it
	db.SetMaxOpenConns(1)

	if encryptionKey != "" {
		esc := strings.ReplaceAll(encryptionKey, "'", "''")
		if _, err := db.Exec(fmt.Sprintf("PRAGMA key = '%s';", esc)); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set database encryption key: %w", err)
		}
		_, _ = db.Exec("PRAGMA cipher_compatibility = 4;")
		var count int
		if err := db.QueryRow("SELECT count(*) FROM sqlite_master;").Scan(&count); err != nil {
			db.Close()
			return nil, fmt.Errorf("database inaccessible with provided encryption key: %w", err)
		}
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	schema := `
	-- profile / stats / messages JSON blobs
	CREATE TABLE IF NOT EXISTS state_blobs (
		key TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS owner (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		passcode_hash TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS push_subscriptions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		endpoint TEXT NOT NULL UNIQUE,
		p256dh TEXT NOT NULL,
		auth TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS refresh_tokens (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		token_hash TEXT NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		ttl_days INTEGER NOT NULL DEFAULT 7,
		revoked BOOLEAN DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := db.Exec(schema)
	return err
}
