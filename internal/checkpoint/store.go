package checkpoint

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"folio/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped when the checkpoint schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by a different folio
// version.
var ErrSchemaMismatch = errors.New("checkpoint schema version mismatch")

// Store persists checkpoints in SQLite so resume state survives a full
// process restart.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the checkpoint database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "checkpoints.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Create inserts a new in-progress checkpoint.
func (s *Store) Create(ctx context.Context, id, sourceName string, totalFiles int) (*Checkpoint, error) {
	if id == "" || sourceName == "" {
		return nil, errors.New("checkpoint: id and source name required")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (id, source_name, total_files, processed_files, progress, status, created_at, updated_at)
         VALUES (?, ?, ?, 0, 0, ?, ?, ?)`,
		id, sourceName, totalFiles, StatusInProgress, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert checkpoint: %w", err)
	}
	return s.Get(ctx, id)
}

// Get fetches a checkpoint by id, or nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*Checkpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source_name, total_files, processed_files, progress, status, created_at, updated_at
         FROM checkpoints WHERE id = ?`, id)
	return scanCheckpoint(row)
}

// FindBySource returns the most recent resumable checkpoint for a source, or
// nil.
func (s *Store) FindBySource(ctx context.Context, sourceName string) (*Checkpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source_name, total_files, processed_files, progress, status, created_at, updated_at
         FROM checkpoints
         WHERE source_name = ? AND status != ?
         ORDER BY updated_at DESC LIMIT 1`,
		sourceName, StatusCompleted)
	return scanCheckpoint(row)
}

// List returns all checkpoints, newest first.
func (s *Store) List(ctx context.Context) ([]*Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_name, total_files, processed_files, progress, status, created_at, updated_at
         FROM checkpoints ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []*Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// MarkFileCompleted records one finished file and refreshes the aggregate
// counters. Re-marking the same path is a no-op, which keeps resume
// idempotent.
func (s *Store) MarkFileCompleted(ctx context.Context, id, path string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO checkpoint_files (checkpoint_id, path, completed_at) VALUES (?, ?, ?)
         ON CONFLICT(checkpoint_id, path) DO NOTHING`,
		id, path, now,
	); err != nil {
		return fmt.Errorf("mark file: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE checkpoints SET
            processed_files = (SELECT COUNT(1) FROM checkpoint_files WHERE checkpoint_id = ?),
            progress = CASE WHEN total_files > 0
                THEN 100.0 * (SELECT COUNT(1) FROM checkpoint_files WHERE checkpoint_id = ?) / total_files
                ELSE 0 END,
            updated_at = ?
         WHERE id = ?`,
		id, id, now, id,
	); err != nil {
		return fmt.Errorf("update counters: %w", err)
	}
	return tx.Commit()
}

// CompletedFiles returns the set of file paths already processed for a
// checkpoint.
func (s *Store) CompletedFiles(ctx context.Context, id string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path FROM checkpoint_files WHERE checkpoint_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("completed files: %w", err)
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		set[path] = struct{}{}
	}
	return set, rows.Err()
}

// SetStatus transitions a checkpoint's lifecycle state.
func (s *Store) SetStatus(ctx context.Context, id string, status Status) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE checkpoints SET status = ?, updated_at = ? WHERE id = ?`, status, now, id)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("checkpoint %s not found", id)
	}
	return nil
}

// SetTotal updates the progress denominator once scanning has counted files.
func (s *Store) SetTotal(ctx context.Context, id string, totalFiles int) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`UPDATE checkpoints SET total_files = ?, updated_at = ? WHERE id = ?`, totalFiles, now, id)
	if err != nil {
		return fmt.Errorf("set total: %w", err)
	}
	return nil
}

// Delete removes a checkpoint and its file records.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// Prune removes checkpoints older than the retention window, then trims the
// remainder to maxCount newest. Returns the number removed.
func (s *Store) Prune(ctx context.Context, retention time.Duration, maxCount int) (int, error) {
	cutoff := time.Now().UTC().Add(-retention).Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM checkpoints WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune by age: %w", err)
	}
	byAge, _ := res.RowsAffected()

	res, err = s.db.ExecContext(ctx,
		`DELETE FROM checkpoints WHERE id NOT IN (
            SELECT id FROM checkpoints ORDER BY updated_at DESC LIMIT ?
         )`, maxCount)
	if err != nil {
		return 0, fmt.Errorf("prune by count: %w", err)
	}
	byCount, _ := res.RowsAffected()
	return int(byAge + byCount), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row rowScanner) (*Checkpoint, error) {
	var cp Checkpoint
	var status, createdAt, updatedAt string
	err := row.Scan(&cp.ID, &cp.SourceName, &cp.TotalFiles, &cp.ProcessedFiles, &cp.Progress, &status, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan checkpoint: %w", err)
	}
	if parsed, ok := ParseStatus(status); ok {
		cp.Status = parsed
	} else {
		cp.Status = Status(status)
	}
	cp.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	cp.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &cp, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return tx.Commit()
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}
