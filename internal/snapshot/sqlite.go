package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/logger"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/migration"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/migrations"
)

// SQLiteBackend persists snapshot keys in a local SQLite database
type SQLiteBackend struct {
	path string
	db   *sql.DB
}

// OpenSQLite opens (creating if needed) the snapshot database at path and
// applies pending schema migrations
func OpenSQLite(ctx context.Context, path string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	subFS, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to access sqlite migrations: %w", err)
	}

	runner := migration.NewRunner(db, subFS)
	if _, err := runner.Apply(ctx, func(msg string) { logger.Info(msg) }); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteBackend{path: path, db: db}, nil
}

func (b *SQLiteBackend) LoadAll() (map[string][]byte, error) {
	rows, err := b.db.Query("SELECT key, value FROM kv")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make(map[string][]byte)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		values[key] = []byte(value)
	}
	return values, rows.Err()
}

func (b *SQLiteBackend) Save(key string, value []byte) error {
	_, err := b.db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key, string(value), time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

func (b *SQLiteBackend) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// Validate checks that the snapshot schema is not newer than this build supports
func (b *SQLiteBackend) Validate(ctx context.Context) error {
	subFS, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return err
	}
	return migration.NewRunner(b.db, subFS).Validate(ctx)
}

// Path returns the database file location
func (b *SQLiteBackend) Path() string {
	return b.path
}
