package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteBackend stores one token per server profile in a local SQLite file,
// so several feedtrackd instances can be used from the same account.
type SQLiteBackend struct {
	db      *sql.DB
	profile string
}

const credentialsSchema = `
CREATE TABLE IF NOT EXISTS credentials (
	profile    TEXT PRIMARY KEY,
	token      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

func OpenSQLite(ctx context.Context, path, profile string) (*SQLiteBackend, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open credentials database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, credentialsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate credentials database: %w", err)
	}
	return &SQLiteBackend{db: db, profile: profile}, nil
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

func (b *SQLiteBackend) Load(ctx context.Context) (string, error) {
	var token string
	err := b.db.QueryRowContext(ctx, `SELECT token FROM credentials WHERE profile = ?`, b.profile).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoToken
	}
	return token, err
}

func (b *SQLiteBackend) Save(ctx context.Context, token string) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO credentials (profile, token, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (profile) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at
	`, b.profile, token, time.Now().Unix())
	return err
}

func (b *SQLiteBackend) Remove(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM credentials WHERE profile = ?`, b.profile)
	return err
}
