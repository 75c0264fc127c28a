package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omnicortex/omnicortex/pkg/cortexmodels"
)

func TestClassify(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	at := func(daysAgo int) *time.Time {
		ts := now.AddDate(0, 0, -daysAgo)
		return &ts
	}

	tests := []struct {
		name string
		mem  cortexmodels.Memory
		want cortexmodels.Freshness
	}{
		{"recently accessed", cortexmodels.Memory{Status: cortexmodels.StatusFresh, LastAccessed: at(5)}, cortexmodels.FreshnessFresh},
		{"stale 45 days", cortexmodels.Memory{Status: cortexmodels.StatusFresh, LastAccessed: at(45)}, cortexmodels.FreshnessNeedsReview},
		{"stale 100 days", cortexmodels.Memory{Status: cortexmodels.StatusFresh, LastAccessed: at(100)}, cortexmodels.FreshnessOutdated},
		{"never accessed falls back to created_at", cortexmodels.Memory{Status: cortexmodels.StatusFresh, CreatedAt: now.AddDate(0, 0, -100)}, cortexmodels.FreshnessOutdated},
		{"explicitly marked needs_review", cortexmodels.Memory{Status: cortexmodels.StatusNeedsReview, LastAccessed: at(1)}, cortexmodels.FreshnessNeedsReview},
		{"archived passthrough", cortexmodels.Memory{Status: cortexmodels.StatusArchived, LastAccessed: at(1)}, cortexmodels.FreshnessArchived},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Classify(tt.mem, now))
		})
	}
}

func TestReviewMemories_SurfacesOnlyNeedsReviewAndOutdated(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	fresh, err := e.CreateMemory(ctx, CreateMemoryInput{Content: "fresh"})
	require.NoError(t, err)
	old, err := e.CreateMemory(ctx, CreateMemoryInput{Content: "old"})
	require.NoError(t, err)
	archived, err := e.CreateMemory(ctx, CreateMemoryInput{Content: "archived"})
	require.NoError(t, err)

	hundredDaysAgo := time.Now().UTC().AddDate(0, 0, -100)
	_, err = e.cat.DB.ExecContext(ctx, `UPDATE memories SET created_at = ?, updated_at = ? WHERE id = ?`, hundredDaysAgo, hundredDaysAgo, old.ID)
	require.NoError(t, err)

	status := cortexmodels.StatusArchived
	_, err = e.UpdateMemory(ctx, archived.ID, UpdateMemoryPatch{Status: &status}, "")
	require.NoError(t, err)

	reviewed, err := e.ReviewMemories(ctx)
	require.NoError(t, err)
	require.Len(t, reviewed, 1)
	require.Equal(t, old.ID, reviewed[0].Memory.ID)
	require.Equal(t, cortexmodels.FreshnessOutdated, reviewed[0].Memory.Classification)
	require.NotEqual(t, fresh.ID, reviewed[0].Memory.ID)
}
