// Package catalog owns the on-disk schema for a single Omni-Cortex project
// or the global aggregate catalog (spec.md §4.1). It opens the SQLite file,
// applies migrations, holds an advisory per-process lock for the handle's
// lifetime, and exposes the raw *sql.DB plus the fixed embedding dimension
// to the storage engine in internal/storage.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/omnicortex/omnicortex/internal/corterrors"

	_ "modernc.org/sqlite"
)

// Catalog is one opened on-disk store: a SQLite file plus its advisory lock.
type Catalog struct {
	DB        *sql.DB
	Path      string
	Dimension int

	logger   *slog.Logger
	lockPath string
	lockFile *os.File

	mu     sync.Mutex
	closed bool
}

// Options configures Open.
type Options struct {
	// Path to the SQLite file. ":memory:" opens a private in-memory catalog
	// (used by tests); the dimension check and migrations still apply.
	Path string

	// Dimension is the embedding dimension this process's Embedder reports.
	// A dimension of 0 skips the mismatch check (no-vector / embedder-off mode).
	Dimension int

	Logger *slog.Logger
}

// Open opens (creating if necessary) the catalog at opts.Path, applies
// pending migrations, takes the advisory lock, and verifies the embedding
// dimension matches what was recorded at initialization (§4.3, ErrEmbeddingMismatch).
func Open(ctx context.Context, opts Options) (*Catalog, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if opts.Path != ":memory:" && opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, fmt.Errorf("%w: create catalog directory: %v", corterrors.ErrIO, err)
		}
	}

	var lockFile *os.File
	lockPath := opts.Path + ".lock"
	if opts.Path != ":memory:" && opts.Path != "" {
		f, err := acquireLock(lockPath)
		if err != nil {
			return nil, err
		}
		lockFile = f
	}

	dsn := opts.Path
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		releaseLock(lockFile, lockPath)
		return nil, fmt.Errorf("%w: open catalog: %v", corterrors.ErrIO, err)
	}
	// A single catalog is written by at most one writer gate (internal/storage);
	// SQLite's own single-writer model means we keep one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		releaseLock(lockFile, lockPath)
		return nil, fmt.Errorf("%w: enable foreign keys: %v", corterrors.ErrIO, err)
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		releaseLock(lockFile, lockPath)
		return nil, err
	}

	c := &Catalog{
		DB:       db,
		Path:     opts.Path,
		logger:   logger.With("component", "catalog", "path", opts.Path),
		lockPath: lockPath,
		lockFile: lockFile,
	}

	dim, err := c.ensureDimension(ctx, opts.Dimension)
	if err != nil {
		db.Close()
		releaseLock(lockFile, lockPath)
		return nil, err
	}
	c.Dimension = dim

	return c, nil
}

// ensureDimension reads the recorded dimension (if any) from cortex_meta and
// either adopts the caller's dimension (first open) or verifies it matches.
func (c *Catalog) ensureDimension(ctx context.Context, requested int) (int, error) {
	var stored string
	row := c.DB.QueryRowContext(ctx, `SELECT value FROM cortex_meta WHERE key = 'embedding_dimension'`)
	err := row.Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		if requested <= 0 {
			return 0, nil
		}
		if _, err := c.DB.ExecContext(ctx, `INSERT INTO cortex_meta (key, value) VALUES ('embedding_dimension', ?)`, fmt.Sprint(requested)); err != nil {
			return 0, fmt.Errorf("%w: record embedding dimension: %v", corterrors.ErrIO, err)
		}
		return requested, nil
	case err != nil:
		return 0, fmt.Errorf("%w: read embedding dimension: %v", corterrors.ErrIO, err)
	}

	var recorded int
	if _, scanErr := fmt.Sscanf(stored, "%d", &recorded); scanErr != nil {
		return 0, fmt.Errorf("%w: corrupt embedding dimension metadata", corterrors.ErrInternal)
	}
	if requested <= 0 {
		// Embedder unavailable this run; keep the catalog's recorded dimension
		// for the no-vector degraded path.
		return recorded, nil
	}
	if recorded != requested {
		return 0, fmt.Errorf("%w: catalog has dimension %d, embedder reports %d", corterrors.ErrEmbeddingMismatch, recorded, requested)
	}
	return recorded, nil
}

// Touch updates the catalog file's mtime so an out-of-process filesystem
// watcher can detect the change (§4.7 fallback mechanism). Never returns an
// error that should fail a write; callers log and continue on failure.
func (c *Catalog) Touch() error {
	if c.Path == "" || c.Path == ":memory:" {
		return nil
	}
	now := time.Now()
	return os.Chtimes(c.Path, now, now)
}

// Close releases the database handle and the advisory lock.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.DB.Close()
	releaseLock(c.lockFile, c.lockPath)
	return err
}

func acquireLock(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: catalog already locked by another handle (%s)", corterrors.ErrConflict, path)
		}
		return nil, fmt.Errorf("%w: acquire catalog lock: %v", corterrors.ErrIO, err)
	}
	return f, nil
}

func releaseLock(f *os.File, path string) {
	if f == nil {
		return
	}
	f.Close()
	os.Remove(path)
}
