package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/omnicortex/omnicortex/internal/broadcast"
	"github.com/omnicortex/omnicortex/internal/catalog"
	"github.com/omnicortex/omnicortex/internal/embedding"
	"github.com/omnicortex/omnicortex/internal/storage"
	"github.com/omnicortex/omnicortex/pkg/cortexmodels"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	ctx := context.Background()
	emb := embedding.NewLocal(16)
	cat, err := catalog.Open(ctx, catalog.Options{Path: ":memory:", Dimension: emb.Dimension()})
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	store := storage.New(cat, emb, broadcast.New(8, nil), nil)
	dir := t.TempDir()
	return New(store, dir, "/tmp/project")
}

func TestCurrent_StartsImplicitSessionOnFirstCall(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.Current(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	again, err := m.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, id, again, "a second call reuses the current session")

	data, err := os.ReadFile(filepath.Join(filepath.Dir(m.statePath), stateFileName))
	require.NoError(t, err)
	require.Contains(t, string(data), id)
}

func TestAssignEvent_StopClosesAndClearsState(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.AssignEvent(ctx, cortexmodels.EventPreToolUse)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = m.AssignEvent(ctx, cortexmodels.EventStop)
	require.NoError(t, err)

	nextID, err := m.Current(ctx)
	require.NoError(t, err)
	require.NotEqual(t, id, nextID, "a stop event must end the session so the next event starts a fresh one")
}

func TestStartExplicit_EndsCurrentSessionFirst(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	first, err := m.Current(ctx)
	require.NoError(t, err)

	sess, err := m.StartExplicit(ctx, "")
	require.NoError(t, err)
	require.NotEqual(t, first, sess.ID)

	ended, err := m.store.GetSession(ctx, first)
	require.NoError(t, err)
	require.NotNil(t, ended.EndedAt)
}
