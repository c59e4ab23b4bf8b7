package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

const settingAutoReply = "auto_reply"

// SQLiteStore persists the ignore list and runtime settings. It implements
// domain.IgnoreStore and domain.SettingsStore.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ignored_users (
		user_id   TEXT PRIMARY KEY,
		added_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS settings (
		key    TEXT PRIMARY KEY,
		value  TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) IsIgnored(ctx context.Context, authorID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM ignored_users WHERE user_id = ?`, authorID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) AddIgnored(ctx context.Context, authorID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO ignored_users (user_id, added_at) VALUES (?, ?)`,
		authorID, time.Now(),
	)
	return err
}

func (s *SQLiteStore) RemoveIgnored(ctx context.Context, authorID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM ignored_users WHERE user_id = ?`, authorID,
	)
	return err
}

func (s *SQLiteStore) ListIgnored(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM ignored_users ORDER BY added_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AutoReplyEnabled reports the persisted auto-reply toggle. A missing row
// means disabled.
func (s *SQLiteStore) AutoReplyEnabled(ctx context.Context) (bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, settingAutoReply,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		s.logger.Warn("unparseable setting value, treating as disabled", "key", settingAutoReply, "value", value)
		return false, nil
	}
	return enabled, nil
}

func (s *SQLiteStore) SetAutoReply(ctx context.Context, enabled bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		settingAutoReply, strconv.FormatBool(enabled),
	)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
