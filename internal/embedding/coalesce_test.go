package embedding

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// countingEmbedder counts how many times Embed actually ran, so tests can
// assert coalescing collapsed concurrent identical calls into one.
type countingEmbedder struct {
	calls int64
	inner Embedder
}

func (c *countingEmbedder) Dimension() int    { return c.inner.Dimension() }
func (c *countingEmbedder) IsAvailable() bool { return c.inner.IsAvailable() }
func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	atomic.AddInt64(&c.calls, 1)
	return c.inner.Embed(ctx, texts)
}

func TestCoalescing_CollapsesConcurrentIdenticalBatches(t *testing.T) {
	counting := &countingEmbedder{inner: NewLocal(32)}
	c := NewCoalescing(counting)

	const n = 20
	var wg sync.WaitGroup
	results := make([][][]float32, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			vecs, err := c.Embed(context.Background(), []string{"rotate signing keys"})
			require.NoError(t, err)
			results[i] = vecs
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		require.Equal(t, results[0], results[i])
	}
	require.Less(t, atomic.LoadInt64(&counting.calls), int64(n))
}

func TestCoalescing_DistinctBatchesDoNotShareAKey(t *testing.T) {
	counting := &countingEmbedder{inner: NewLocal(32)}
	c := NewCoalescing(counting)
	ctx := context.Background()

	v1, err := c.Embed(ctx, []string{"rotate signing keys"})
	require.NoError(t, err)
	v2, err := c.Embed(ctx, []string{"unrelated text"})
	require.NoError(t, err)

	require.NotEqual(t, v1, v2)
	require.Equal(t, int64(2), atomic.LoadInt64(&counting.calls))
}

func TestCoalescing_DelegatesDimensionAndAvailability(t *testing.T) {
	c := NewCoalescing(NewNull(384))
	require.Equal(t, 384, c.Dimension())
	require.False(t, c.IsAvailable())
}

func TestCoalescing_EmptyBatchIsNoop(t *testing.T) {
	counting := &countingEmbedder{inner: NewLocal(32)}
	c := NewCoalescing(counting)

	vecs, err := c.Embed(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, vecs)
	require.Equal(t, int64(0), atomic.LoadInt64(&counting.calls))
}
