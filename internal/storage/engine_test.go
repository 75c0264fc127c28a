package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/omnicortex/omnicortex/internal/broadcast"
	"github.com/omnicortex/omnicortex/internal/catalog"
	"github.com/omnicortex/omnicortex/internal/corterrors"
	"github.com/omnicortex/omnicortex/internal/embedding"
	"github.com/omnicortex/omnicortex/pkg/cortexmodels"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	ctx := context.Background()
	emb := embedding.NewLocal(32)
	cat, err := catalog.Open(ctx, catalog.Options{Path: ":memory:", Dimension: emb.Dimension()})
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })
	return New(cat, emb, broadcast.New(16, nil), nil)
}

func TestCreateMemory_DefaultsAndValidation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	mem, err := e.CreateMemory(ctx, CreateMemoryInput{Content: "use postgres for the catalog", Tags: []string{"db", "db"}})
	require.NoError(t, err)
	require.NotEmpty(t, mem.ID)
	require.Equal(t, cortexmodels.StatusFresh, mem.Status)
	require.Equal(t, 50, mem.ImportanceScore)
	require.Equal(t, []string{"db"}, mem.Tags)
	require.Len(t, mem.Embedding, 32)

	_, err = e.CreateMemory(ctx, CreateMemoryInput{Content: ""})
	require.ErrorIs(t, err, corterrors.ErrInvalid)
}

func TestCreateMemory_MissingRelatedIDFails(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.CreateMemory(ctx, CreateMemoryInput{Content: "x", RelatedIDs: []string{"does-not-exist"}})
	require.Error(t, err)

	var count int
	require.NoError(t, e.cat.DB.QueryRowContext(ctx, `SELECT count(*) FROM memories`).Scan(&count))
	require.Equal(t, 0, count, "failed create must roll back, leaving no partial row")
}

func TestUpdateMemory_RejectsEmptyContentAndRewritesTags(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	mem, err := e.CreateMemory(ctx, CreateMemoryInput{Content: "original"})
	require.NoError(t, err)

	empty := ""
	_, err = e.UpdateMemory(ctx, mem.ID, UpdateMemoryPatch{Content: &empty}, "")
	require.Error(t, err)

	newTags := []string{"alpha", "beta"}
	updated, err := e.UpdateMemory(ctx, mem.ID, UpdateMemoryPatch{Tags: &newTags}, "")
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "beta"}, updated.Tags)
	require.False(t, updated.UpdatedAt.Before(mem.UpdatedAt))
}

func TestForgetMemory_CascadesAndReportsCount(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	a, err := e.CreateMemory(ctx, CreateMemoryInput{Content: "a"})
	require.NoError(t, err)
	b, err := e.CreateMemory(ctx, CreateMemoryInput{Content: "b"})
	require.NoError(t, err)

	linked, err := e.LinkMemories(ctx, a.ID, b.ID, cortexmodels.LinkRelatesTo, "")
	require.NoError(t, err)
	require.True(t, linked)

	n, err := e.ForgetMemory(ctx, a.ID, "")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	var linkCount int
	require.NoError(t, e.cat.DB.QueryRowContext(ctx, `SELECT count(*) FROM memory_links WHERE from_id = ? OR to_id = ?`, a.ID, a.ID).Scan(&linkCount))
	require.Equal(t, 0, linkCount)

	n, err = e.ForgetMemory(ctx, a.ID, "")
	require.NoError(t, err)
	require.Equal(t, 0, n, "forgetting a missing memory returns 0, not an error")
}

func TestLinkMemories_DuplicateIsNoOp(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	a, _ := e.CreateMemory(ctx, CreateMemoryInput{Content: "a"})
	b, _ := e.CreateMemory(ctx, CreateMemoryInput{Content: "b"})

	first, err := e.LinkMemories(ctx, a.ID, b.ID, cortexmodels.LinkRelatesTo, "")
	require.NoError(t, err)
	require.True(t, first)

	second, err := e.LinkMemories(ctx, a.ID, b.ID, cortexmodels.LinkRelatesTo, "")
	require.NoError(t, err)
	require.False(t, second, "duplicate link is a no-op success, not an error")
}

func TestListTags_ExcludesArchivedAndSortsByCount(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, _ = e.CreateMemory(ctx, CreateMemoryInput{Content: "a", Tags: []string{"go"}})
	_, _ = e.CreateMemory(ctx, CreateMemoryInput{Content: "b", Tags: []string{"go", "db"}})
	archived, _ := e.CreateMemory(ctx, CreateMemoryInput{Content: "c", Tags: []string{"go"}})

	status := cortexmodels.StatusArchived
	_, err := e.UpdateMemory(ctx, archived.ID, UpdateMemoryPatch{Status: &status}, "")
	require.NoError(t, err)

	tags, err := e.ListTags(ctx)
	require.NoError(t, err)
	require.Equal(t, []cortexmodels.Tag{{Tag: "go", Count: 2}, {Tag: "db", Count: 1}}, tags)
}

func TestAccessMemories_BatchedBookkeeping(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	a, _ := e.CreateMemory(ctx, CreateMemoryInput{Content: "a"})
	b, _ := e.CreateMemory(ctx, CreateMemoryInput{Content: "b"})

	require.NoError(t, e.AccessMemories(ctx, []string{a.ID, b.ID}))

	got, err := e.GetMemory(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.AccessCount)
	require.NotNil(t, got.LastAccessed)
}

func TestSessionLifecycle(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	sess, err := e.StartSession(ctx, "/tmp/project")
	require.NoError(t, err)
	require.Nil(t, sess.EndedAt)

	_, err = e.LogActivity(ctx, LogActivityInput{
		SessionID: sess.ID,
		EventType: cortexmodels.EventPostToolUse,
		ToolName:  "Read",
		ToolInput: `{"file_path":"main.go"}`,
		Success:   true,
	})
	require.NoError(t, err)

	ended, err := e.EndSession(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, ended.EndedAt)
	require.Contains(t, ended.Summary, "main.go")
}

func TestLogActivity_RedactsSecretBeforePersisting(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	sess, err := e.StartSession(ctx, "")
	require.NoError(t, err)

	act, err := e.LogActivity(ctx, LogActivityInput{
		SessionID: sess.ID,
		EventType: cortexmodels.EventPostToolUse,
		ToolName:  "Bash",
		ToolInput: `{"command":"curl","api_key":"sk-super-secret"}`,
		Success:   true,
	})
	require.NoError(t, err)
	require.NotContains(t, act.ToolInput, "sk-super-secret")
	require.Contains(t, act.ToolInput, "[REDACTED]")
}
