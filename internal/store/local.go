package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dyluth/swarm/internal/store/migrations"
	"github.com/dyluth/swarm/pkg/replica"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a state id has no local copy.
var ErrNotFound = errors.New("state not found")

const migrationTable = "schema_migrations"

// LocalStore persists state records in a per-node SQLite file.
type LocalStore struct {
	sqlDB *sql.DB
	path  string
}

// LocalPath returns the SQLite file a node with peerID uses under dir.
func LocalPath(dir, peerID string) string {
	return filepath.Join(dir, fmt.Sprintf("states_%s.sqlite", peerID))
}

// OpenLocal opens (creating if needed) the state database for peerID under
// dir and applies embedded migrations.
func OpenLocal(dir, peerID string) (*LocalStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("storage location is required")
	}
	if strings.TrimSpace(peerID) == "" {
		return nil, fmt.Errorf("peer id is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	path := LocalPath(filepath.Clean(dir), peerID)
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer per node; serialising connections avoids SQLITE_BUSY between
	// the sync loop and chaos writes.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &LocalStore{sqlDB: sqlDB, path: path}, nil
}

// Path returns the database file path.
func (s *LocalStore) Path() string {
	return s.path
}

// Close closes the SQLite handle.
func (s *LocalStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping checks the database is reachable.
func (s *LocalStore) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// Put upserts rec. The latest write for an id wins.
func (s *LocalStore) Put(ctx context.Context, rec replica.StateRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid state record: %w", err)
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO states (id, payload, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		rec.ID, rec.Payload, rec.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}
	return nil
}

// Get returns the stored record for id, or ErrNotFound.
func (s *LocalStore) Get(ctx context.Context, id string) (replica.StateRecord, error) {
	var (
		rec       replica.StateRecord
		createdAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, payload, created_at FROM states WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Payload, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return replica.StateRecord{}, ErrNotFound
		}
		return replica.StateRecord{}, fmt.Errorf("get state: %w", err)
	}
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	return rec, nil
}

// List returns up to limit records, newest first. limit <= 0 returns all.
func (s *LocalStore) List(ctx context.Context, limit int) ([]replica.StateRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, payload, created_at FROM states ORDER BY created_at DESC, id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}
	defer rows.Close()

	var records []replica.StateRecord
	for rows.Next() {
		var (
			rec       replica.StateRecord
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.Payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		rec.CreatedAt = time.UnixMilli(createdAt).UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count returns the number of stored records.
func (s *LocalStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM states`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count states: %w", err)
	}
	return n, nil
}

// Prune deletes the oldest records so at most max remain.
// max <= 0 disables pruning. Returns the number of rows deleted.
func (s *LocalStore) Prune(ctx context.Context, max int) (int64, error) {
	if max <= 0 {
		return 0, nil
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM states WHERE id IN (
		   SELECT id FROM states ORDER BY created_at DESC, id LIMIT -1 OFFSET ?
		 )`, max,
	)
	if err != nil {
		return 0, fmt.Errorf("prune states: %w", err)
	}
	return res.RowsAffected()
}

// applyMigrations executes each embedded .sql file at most once, in name order.
func applyMigrations(sqlDB *sql.DB, migrationFS fs.FS) error {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if _, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
		name TEXT PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		var found int
		err := sqlDB.QueryRow(`SELECT 1 FROM `+migrationTable+` WHERE name = ?`, file).Scan(&found)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", file, err)
		}

		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}

		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(upSection(string(content))); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO `+migrationTable+` (name, applied_at) VALUES (?, ?)`,
			file, time.Now().UTC().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

// upSection returns the SQL between "-- +migrate Up" and "-- +migrate Down".
func upSection(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"
	start := strings.Index(content, up)
	if start == -1 {
		return content
	}
	content = content[start+len(up):]
	if end := strings.Index(content, down); end != -1 {
		content = content[:end]
	}
	return content
}
