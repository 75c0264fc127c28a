package embedding

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"
)

// Coalescing wraps an Embedder so that concurrent Embed calls for the exact
// same batch of texts share one upstream request instead of each paying for
// its own round trip. The dispatcher can fan recall/remember calls for the
// same session in from multiple goroutines (spec.md §6.1's tools are
// dispatched independently per request); two callers racing to embed an
// identical query string is the common case this guards, grounded on the
// teacher's use of golang.org/x/sync/singleflight to collapse duplicate
// cache-miss lookups in internal/memory/store.
type Coalescing struct {
	inner Embedder
	group singleflight.Group
}

// NewCoalescing wraps inner with request coalescing. Callers that only need
// one realization's worth of network or CPU cost per unique batch (OpenAI
// and Ollama embedders; the deterministic Local and no-op Null embedders
// have no shared cost worth coalescing) should wrap with this.
func NewCoalescing(inner Embedder) *Coalescing {
	return &Coalescing{inner: inner}
}

func (c *Coalescing) Dimension() int    { return c.inner.Dimension() }
func (c *Coalescing) IsAvailable() bool { return c.inner.IsAvailable() }

// Embed coalesces concurrent calls that share the exact same ordered batch
// of texts. Distinct batches never share a key, so this never merges
// unrelated requests.
func (c *Coalescing) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	key := coalesceKey(texts)
	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.inner.Embed(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	return v.([][]float32), nil
}

func coalesceKey(texts []string) string {
	var b strings.Builder
	for i, t := range texts {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		fmt.Fprintf(&b, "%d:%s", len(t), t)
	}
	return b.String()
}
