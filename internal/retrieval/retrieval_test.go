package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/omnicortex/omnicortex/internal/broadcast"
	"github.com/omnicortex/omnicortex/internal/catalog"
	"github.com/omnicortex/omnicortex/internal/embedding"
	"github.com/omnicortex/omnicortex/internal/storage"
	"github.com/omnicortex/omnicortex/pkg/cortexmodels"
)

func newTestEngines(t *testing.T) (*storage.Engine, *Engine) {
	t.Helper()
	ctx := context.Background()
	emb := embedding.NewLocal(48)
	cat, err := catalog.Open(ctx, catalog.Options{Path: ":memory:", Dimension: emb.Dimension()})
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	store := storage.New(cat, emb, broadcast.New(16, nil), nil)
	retr := New(cat, emb, nil)
	return store, retr
}

func TestKeywordSearch_MatchesContent(t *testing.T) {
	store, retr := newTestEngines(t)
	ctx := context.Background()

	_, err := store.CreateMemory(ctx, storage.CreateMemoryInput{Content: "use postgres for the catalog backend"})
	require.NoError(t, err)
	_, err = store.CreateMemory(ctx, storage.CreateMemoryInput{Content: "signing keys rotate every quarter"})
	require.NoError(t, err)

	results, err := retr.Recall(ctx, "postgres", cortexmodels.SearchKeyword, cortexmodels.Filters{}, 20, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Contains(t, results[0].Memory.Content, "postgres")
}

func TestSemanticSearch_FindsSharedSubstringNeighbor(t *testing.T) {
	store, retr := newTestEngines(t)
	ctx := context.Background()

	_, err := store.CreateMemory(ctx, storage.CreateMemoryInput{Content: "signing keys rotate every quarter"})
	require.NoError(t, err)

	results, err := retr.Recall(ctx, "signing key rotation", cortexmodels.SearchSemantic, cortexmodels.Filters{}, 20, 0)
	require.NoError(t, err)
	require.NotEmpty(t, results, "semantic mode should surface the 'signing keys' memory via shared trigrams")
}

func TestSemanticSearch_DegradesWhenEmbedderUnavailable(t *testing.T) {
	ctx := context.Background()
	emb := embedding.NewLocal(32)
	cat, err := catalog.Open(ctx, catalog.Options{Path: ":memory:", Dimension: emb.Dimension()})
	require.NoError(t, err)
	defer cat.Close()

	store := storage.New(cat, emb, broadcast.New(16, nil), nil)
	_, err = store.CreateMemory(ctx, storage.CreateMemoryInput{Content: "rotate the signing keys"})
	require.NoError(t, err)

	nullEmb := embedding.NewNull(32)
	retr := New(cat, nullEmb, nil)

	results, err := retr.Recall(ctx, "signing", cortexmodels.SearchSemantic, cortexmodels.Filters{}, 20, 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.True(t, results[0].Degraded)
}

func TestRecall_PaginationIsStableAndDisjoint(t *testing.T) {
	store, retr := newTestEngines(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.CreateMemory(ctx, storage.CreateMemoryInput{Content: "catalog note about postgres indexing"})
		require.NoError(t, err)
	}

	page1, err := retr.Recall(ctx, "postgres", cortexmodels.SearchKeyword, cortexmodels.Filters{}, 2, 0)
	require.NoError(t, err)
	page2, err := retr.Recall(ctx, "postgres", cortexmodels.SearchKeyword, cortexmodels.Filters{}, 2, 2)
	require.NoError(t, err)

	require.Len(t, page1, 2)
	require.Len(t, page2, 2)
	ids1 := map[string]bool{page1[0].Memory.ID: true, page1[1].Memory.ID: true}
	for _, r := range page2 {
		require.False(t, ids1[r.Memory.ID], "pages must be disjoint")
	}
}

func TestListMemories_ExcludesArchivedByDefault(t *testing.T) {
	store, retr := newTestEngines(t)
	ctx := context.Background()

	_, err := store.CreateMemory(ctx, storage.CreateMemoryInput{Content: "kept"})
	require.NoError(t, err)
	archived, err := store.CreateMemory(ctx, storage.CreateMemoryInput{Content: "archived one"})
	require.NoError(t, err)

	status := cortexmodels.StatusArchived
	_, err = store.UpdateMemory(ctx, archived.ID, storage.UpdateMemoryPatch{Status: &status}, "")
	require.NoError(t, err)

	mems, err := retr.ListMemories(ctx, cortexmodels.Filters{}, "created_at", "desc", 20, 0)
	require.NoError(t, err)
	require.Len(t, mems, 1)
	require.Equal(t, "kept", mems[0].Content)
}

func TestListMemories_FiltersByTag(t *testing.T) {
	store, retr := newTestEngines(t)
	ctx := context.Background()

	_, err := store.CreateMemory(ctx, storage.CreateMemoryInput{Content: "tagged", Tags: []string{"infra"}})
	require.NoError(t, err)
	_, err = store.CreateMemory(ctx, storage.CreateMemoryInput{Content: "untagged"})
	require.NoError(t, err)

	mems, err := retr.ListMemories(ctx, cortexmodels.Filters{Tags: []string{"infra"}}, "", "", 20, 0)
	require.NoError(t, err)
	require.Len(t, mems, 1)
	require.Equal(t, "tagged", mems[0].Content)
}
