package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// DB holds per-device attempt records in a local SQLite file. It is the
// durable alternative to the Redis attempt store for single-node deployments.
type DB struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates the database file and schema if they do not exist yet.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &DB{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *DB) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS attempt_state (
		device_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (device_id, key)
	);
	CREATE INDEX IF NOT EXISTS idx_attempt_state_updated ON attempt_state(updated_at);
	`
	_, err := s.db.Exec(query)
	return err
}

// Ping verifies database connectivity.
func (s *DB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *DB) Close() error {
	return s.db.Close()
}

// ForDevice returns the attempt store of one device.
func (s *DB) ForDevice(deviceID string) *AttemptStore {
	return &AttemptStore{db: s, deviceID: deviceID}
}

// Prune removes records not touched since before.
func (s *DB) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM attempt_state WHERE updated_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune attempt state: %w", err)
	}
	return res.RowsAffected()
}

// AttemptStore implements runner.AttemptStore for a single device.
type AttemptStore struct {
	db       *DB
	deviceID string
}

func (a *AttemptStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := a.db.db.QueryRowContext(ctx,
		`SELECT value FROM attempt_state WHERE device_id = ? AND key = ?`,
		a.deviceID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get attempt state: %w", err)
	}
	return value, true, nil
}

func (a *AttemptStore) Set(ctx context.Context, key, value string) error {
	_, err := a.db.db.ExecContext(ctx, `
		INSERT INTO attempt_state (device_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(device_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		a.deviceID, key, value, a.db.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("set attempt state: %w", err)
	}
	return nil
}

func (a *AttemptStore) SetIfAbsent(ctx context.Context, key, value string) (bool, error) {
	res, err := a.db.db.ExecContext(ctx, `
		INSERT INTO attempt_state (device_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(device_id, key) DO NOTHING`,
		a.deviceID, key, value, a.db.now().UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("set attempt state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Incr counts in SQL so concurrent connections of one device never lose an update.
func (a *AttemptStore) Incr(ctx context.Context, key string) (int, error) {
	var current string
	err := a.db.db.QueryRowContext(ctx,
		`SELECT value FROM attempt_state WHERE device_id = ? AND key = ?`,
		a.deviceID, key,
	).Scan(&current)
	if err == nil {
		if _, perr := strconv.Atoi(current); perr != nil {
			return 0, fmt.Errorf("incr %s: value is not an integer", key)
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("incr attempt state: %w", err)
	}

	var value string
	err = a.db.db.QueryRowContext(ctx, `
		INSERT INTO attempt_state (device_id, key, value, updated_at)
		VALUES (?, ?, '1', ?)
		ON CONFLICT(device_id, key) DO UPDATE SET
			value = CAST(CAST(value AS INTEGER) + 1 AS TEXT),
			updated_at = excluded.updated_at
		RETURNING value`,
		a.deviceID, key, a.db.now().UnixMilli(),
	).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("incr attempt state: %w", err)
	}
	return strconv.Atoi(value)
}

func (a *AttemptStore) Clear(ctx context.Context) error {
	if _, err := a.db.db.ExecContext(ctx, `DELETE FROM attempt_state WHERE device_id = ?`, a.deviceID); err != nil {
		return fmt.Errorf("clear attempt state: %w", err)
	}
	return nil
}
