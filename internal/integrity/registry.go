package integrity

import (
	"context"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"folio/internal/config"
	"folio/internal/filetree"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped when the fingerprint schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by a different folio
// version.
var ErrSchemaMismatch = errors.New("fingerprint schema version mismatch")

// Fingerprint is one content-addressed registration record.
type Fingerprint struct {
	Hash         string
	Size         int64
	EntityID     string
	Filename     string
	RegisteredAt time.Time
}

// Result reports the outcome of RegisterFile. When IsDuplicate is true,
// ExistingEntityID names the canonical first registrant.
type Result struct {
	IsDuplicate      bool
	Fingerprint      Fingerprint
	ExistingEntityID string
}

// Registry is the persistent, hash-keyed dedup index. Fingerprints survive
// across ingest runs so re-imports of known content are flagged.
type Registry struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the fingerprint database.
func Open(cfg *config.Config) (*Registry, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "fingerprints.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	registry := &Registry{db: db, path: dbPath}
	if err := registry.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return registry, nil
}

// Close closes the underlying database connection.
func (r *Registry) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Path returns the database file location.
func (r *Registry) Path() string { return r.path }

// RegisterFile streams the handle's content through SHA-256 and records the
// digest. The first registration of a digest is canonical; later identical
// content is reported as a duplicate referencing the canonical entity but is
// never blocked. Safe under concurrent registration: for one digest the first
// insert to commit wins the canonical slot.
func (r *Registry) RegisterFile(ctx context.Context, handle filetree.FileHandle, entityID, filename string) (Result, error) {
	if entityID == "" {
		return Result{}, errors.New("register: entity id required")
	}

	hash, size, err := digest(handle)
	if err != nil {
		return Result{}, fmt.Errorf("digest %s: %w", handle.Name(), err)
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO fingerprints (hash, size, entity_id, filename, registered_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(hash) DO NOTHING`,
		hash, size, entityID, filename, now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Result{}, fmt.Errorf("insert fingerprint: %w", err)
	}

	canonical, err := r.Lookup(ctx, hash)
	if err != nil {
		return Result{}, err
	}
	if canonical == nil {
		return Result{}, fmt.Errorf("fingerprint vanished after insert: %s", hash)
	}

	if canonical.EntityID != entityID {
		return Result{
			IsDuplicate:      true,
			Fingerprint:      *canonical,
			ExistingEntityID: canonical.EntityID,
		}, nil
	}
	return Result{IsDuplicate: false, Fingerprint: *canonical}, nil
}

// Lookup fetches the canonical fingerprint for a digest, or nil.
func (r *Registry) Lookup(ctx context.Context, hash string) (*Fingerprint, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT hash, size, entity_id, filename, registered_at FROM fingerprints WHERE hash = ?`, hash)

	var fp Fingerprint
	var registeredAt string
	err := row.Scan(&fp.Hash, &fp.Size, &fp.EntityID, &fp.Filename, &registeredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup fingerprint: %w", err)
	}
	fp.RegisteredAt, _ = time.Parse(time.RFC3339Nano, registeredAt)
	return &fp, nil
}

// Count returns the number of registered fingerprints.
func (r *Registry) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM fingerprints`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count fingerprints: %w", err)
	}
	return total, nil
}

func (r *Registry) initSchema(ctx context.Context) error {
	var tableExists int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := r.db.BeginTx(ctx, nil)
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
	if err := r.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

// digest streams the handle through SHA-256 so memory stays bounded on large
// files.
func digest(handle filetree.FileHandle) (string, int64, error) {
	r, err := handle.Open()
	if err != nil {
		return "", 0, err
	}
	defer r.Close()

	hasher := sha256.New()
	size, err := io.Copy(hasher, r)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}
