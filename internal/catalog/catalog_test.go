package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesSchemaAndRecordsDimension(t *testing.T) {
	ctx := context.Background()
	c, err := Open(ctx, Options{Path: ":memory:", Dimension: 384})
	require.NoError(t, err)
	defer c.Close()

	require.Equal(t, 384, c.Dimension)

	var count int
	err = c.DB.QueryRowContext(ctx, `SELECT count(*) FROM sqlite_master WHERE type='table' AND name='memories'`).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestOpen_DimensionMismatchFailsClosed(t *testing.T) {
	ctx := context.Background()
	c, err := Open(ctx, Options{Path: ":memory:", Dimension: 384})
	require.NoError(t, err)
	c.Close()

	// :memory: catalogs are private per-connection; simulate the mismatch
	// path directly against an already-initialized catalog instead.
	c2, err := Open(ctx, Options{Path: ":memory:", Dimension: 384})
	require.NoError(t, err)
	defer c2.Close()

	_, err = c2.ensureDimension(ctx, 768)
	require.ErrorContains(t, err, "embedder dimension")
}

func TestOpen_SchemaNewerFailsClosed(t *testing.T) {
	ctx := context.Background()
	c, err := Open(ctx, Options{Path: ":memory:"})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.DB.ExecContext(ctx, `UPDATE schema_version SET version = 9999`)
	require.NoError(t, err)

	err = migrate(ctx, c.DB)
	require.ErrorContains(t, err, "newer")
}
