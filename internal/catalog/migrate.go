package catalog

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/omnicortex/omnicortex/internal/corterrors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migration is one embedded, append-only schema step (spec.md §4.1).
type migration struct {
	Version int
	Name    string
	SQL     string
}

func loadMigrations() ([]migration, error) {
	entries, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	migrations := make([]migration, 0, len(entries))
	for _, entry := range entries {
		base := strings.TrimSuffix(path.Base(entry), ".sql")
		versionPart, name, ok := strings.Cut(base, "_")
		if !ok {
			return nil, fmt.Errorf("migration file %q does not follow <version>_<name>.sql", entry)
		}
		version, err := strconv.Atoi(versionPart)
		if err != nil {
			return nil, fmt.Errorf("migration file %q has a non-integer version: %w", entry, err)
		}
		data, err := migrationsFS.ReadFile(entry)
		if err != nil {
			return nil, fmt.Errorf("read migration %q: %w", entry, err)
		}
		migrations = append(migrations, migration{Version: version, Name: name, SQL: string(data)})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

// highestKnownVersion returns the schema version this build understands.
func highestKnownVersion() (int, error) {
	migrations, err := loadMigrations()
	if err != nil {
		return 0, err
	}
	max := 0
	for _, m := range migrations {
		if m.Version > max {
			max = m.Version
		}
	}
	return max, nil
}

// migrate applies every pending migration under a write lock, in order,
// inside its own transaction. Each migration's SQL must be idempotent at its
// own version (§4.1); a stored version ahead of what this build knows about
// fails closed with ErrSchemaNewer.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("%w: ensure schema_version: %v", corterrors.ErrIO, err)
	}

	current, err := storedVersion(ctx, db)
	if err != nil {
		return err
	}

	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("%w: %v", corterrors.ErrInternal, err)
	}

	highest, err := highestKnownVersion()
	if err != nil {
		return fmt.Errorf("%w: %v", corterrors.ErrInternal, err)
	}
	if current > highest {
		return fmt.Errorf("%w: catalog at version %d, build understands up to %d", corterrors.ErrSchemaNewer, current, highest)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return err
		}
		current = m.Version
	}
	return nil
}

func storedVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	row := db.QueryRowContext(ctx, `SELECT version FROM schema_version LIMIT 1`)
	switch err := row.Scan(&version); err {
	case nil:
		return version, nil
	case sql.ErrNoRows:
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: read schema_version: %v", corterrors.ErrIO, err)
	}
}

func applyMigration(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin migration %d: %v", corterrors.ErrIO, m.Version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("%w: apply migration %d (%s): %v", corterrors.ErrIO, m.Version, m.Name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM schema_version`); err != nil {
		return fmt.Errorf("%w: reset schema_version: %v", corterrors.ErrIO, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, m.Version); err != nil {
		return fmt.Errorf("%w: record schema_version %d: %v", corterrors.ErrIO, m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit migration %d: %v", corterrors.ErrIO, m.Version, err)
	}
	return nil
}
