package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestImport_RestoreModePreservesAccessStats(t *testing.T) {
	ctx := context.Background()
	src := newTestEngine(t)

	mem, err := src.CreateMemory(ctx, CreateMemoryInput{Content: "rotate signing keys", Tags: []string{"security"}})
	require.NoError(t, err)
	require.NoError(t, src.AccessMemories(ctx, []string{mem.ID}))
	require.NoError(t, src.AccessMemories(ctx, []string{mem.ID}))

	snapshot, err := src.BuildExport(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot.Memories, 1)
	require.Equal(t, 2, snapshot.Memories[0].AccessCount)
	require.NotNil(t, snapshot.Memories[0].LastAccessed)

	dst := newTestEngine(t)
	n, err := dst.Import(ctx, snapshot, ImportRestore)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	restored, err := dst.BuildExport(ctx)
	require.NoError(t, err)
	require.Len(t, restored.Memories, 1)
	require.Equal(t, 2, restored.Memories[0].AccessCount)
	require.NotNil(t, restored.Memories[0].LastAccessed)
	require.Equal(t, []string{"security"}, restored.Memories[0].Tags)
}

func TestImport_FreshModeResetsAccessStats(t *testing.T) {
	ctx := context.Background()
	src := newTestEngine(t)

	mem, err := src.CreateMemory(ctx, CreateMemoryInput{Content: "rotate signing keys"})
	require.NoError(t, err)
	require.NoError(t, src.AccessMemories(ctx, []string{mem.ID}))

	snapshot, err := src.BuildExport(ctx)
	require.NoError(t, err)

	dst := newTestEngine(t)
	_, err = dst.Import(ctx, snapshot, ImportFresh)
	require.NoError(t, err)

	restored, err := dst.BuildExport(ctx)
	require.NoError(t, err)
	require.Len(t, restored.Memories, 1)
	require.Equal(t, 0, restored.Memories[0].AccessCount)
	require.Nil(t, restored.Memories[0].LastAccessed)
}

func TestImport_RejectsNonEmptyCatalog(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	_, err := e.CreateMemory(ctx, CreateMemoryInput{Content: "already here"})
	require.NoError(t, err)

	snapshot, err := e.BuildExport(ctx)
	require.NoError(t, err)

	_, err = e.Import(ctx, snapshot, ImportRestore)
	require.Error(t, err)
}

func TestImport_RejectsUnknownMode(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	_, err := e.Import(ctx, Export{}, ImportMode("bogus"))
	require.Error(t, err)
}
