// Package ledger keeps a SQLite record of every stored narration artifact
// and whether it was linked back to its record.
//
// An artifact left in StatusOrphaned is audio that exists in object
// storage but is not referenced by any record.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Artifact statuses.
const (
	StatusStored   = "stored"
	StatusLinked   = "linked"
	StatusOrphaned = "orphaned"
)

// ErrNotFound is returned by Get for an unknown storage key.
var ErrNotFound = errors.New("ledger: artifact not found")

// Artifact is one stored audio object.
type Artifact struct {
	StorageKey string
	RecordID   string
	RequestID  string
	AudioURL   string
	Bytes      int
	DurationMs int64
	Status     string
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Store wraps the SQLite database.
type Store struct {
	db    *sql.DB
	log   *slog.Logger
	clock func() time.Time
}

// Open creates the database file and schema if needed.
func Open(ctx context.Context, path string, log *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("ledger: path is required")
	}
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, log: log, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("artifact ledger opened", slog.String("path", path))
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS artifacts (
    storage_key TEXT PRIMARY KEY,
    record_id TEXT NOT NULL,
    request_id TEXT,
    audio_url TEXT,
    bytes INTEGER NOT NULL DEFAULT 0,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    error TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_artifacts_status ON artifacts(status, created_at);
CREATE INDEX IF NOT EXISTS idx_artifacts_record ON artifacts(record_id);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("init ledger schema: %w", err)
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts the artifact or updates status, URL and error of an
// existing one with the same storage key.
func (s *Store) Record(ctx context.Context, a Artifact) error {
	if a.StorageKey == "" {
		return errors.New("ledger: storage key is required")
	}
	if a.Status == "" {
		a.Status = StatusStored
	}
	now := s.clock().UTC().Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts(storage_key, record_id, request_id, audio_url, bytes, duration_ms, status, error, created_at, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(storage_key) DO UPDATE SET
		   audio_url=excluded.audio_url,
		   status=excluded.status,
		   error=excluded.error,
		   updated_at=excluded.updated_at`,
		a.StorageKey, a.RecordID, a.RequestID, a.AudioURL, a.Bytes, a.DurationMs, a.Status, a.Error, now, now)
	if err != nil {
		return fmt.Errorf("record artifact %s: %w", a.StorageKey, err)
	}
	return nil
}

const selectArtifact = `SELECT storage_key, record_id, request_id, audio_url, bytes, duration_ms, status, error, created_at, updated_at FROM artifacts`

// Get returns the artifact stored under key.
func (s *Store) Get(ctx context.Context, key string) (Artifact, error) {
	row := s.db.QueryRowContext(ctx, selectArtifact+` WHERE storage_key = ?`, key)
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Artifact{}, ErrNotFound
	}
	return a, err
}

// ListByStatus returns up to limit artifacts with status, oldest first.
func (s *Store) ListByStatus(ctx context.Context, status string, limit int) ([]Artifact, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		selectArtifact+` WHERE status = ? ORDER BY created_at ASC LIMIT ?`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListByRecord returns every artifact produced for recordID, oldest first.
func (s *Store) ListByRecord(ctx context.Context, recordID string) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		selectArtifact+` WHERE record_id = ? ORDER BY created_at ASC`, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row scanner) (Artifact, error) {
	var (
		a                Artifact
		requestID, url   sql.NullString
		errText          sql.NullString
		created, updated string
	)
	if err := row.Scan(&a.StorageKey, &a.RecordID, &requestID, &url, &a.Bytes, &a.DurationMs,
		&a.Status, &errText, &created, &updated); err != nil {
		return Artifact{}, err
	}
	a.RequestID = requestID.String
	a.AudioURL = url.String
	a.Error = errText.String
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	a.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return a, nil
}
