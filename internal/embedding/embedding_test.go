package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocal_EmbedNormalizedAndDeterministic(t *testing.T) {
	l := NewLocal(64)
	ctx := context.Background()

	vecs, err := l.Embed(ctx, []string{"rotate signing keys", "rotate signing keys", "unrelated text"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	require.Len(t, vecs[0], 64)

	// Deterministic: identical input yields an identical vector.
	require.Equal(t, vecs[0], vecs[1])

	// L2-normalized (within floating point tolerance).
	var norm float64
	for _, v := range vecs[0] {
		norm += float64(v) * float64(v)
	}
	require.InDelta(t, 1.0, norm, 1e-6)
}

func TestLocal_DefaultDimension(t *testing.T) {
	l := NewLocal(0)
	require.Equal(t, DefaultDimension, l.Dimension())
}

func TestNull_AlwaysUnavailable(t *testing.T) {
	n := NewNull(384)
	require.False(t, n.IsAvailable())
	require.Equal(t, 384, n.Dimension())

	vecs, err := n.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	require.Nil(t, vecs[0])
}

func TestNewOpenAI_RequiresAPIKey(t *testing.T) {
	_, err := NewOpenAI(OpenAIConfig{})
	require.Error(t, err)
}

func TestNewOpenAI_DefaultsModelAndDimension(t *testing.T) {
	o, err := NewOpenAI(OpenAIConfig{APIKey: "test-key"})
	require.NoError(t, err)
	require.Equal(t, 1536, o.Dimension())
	require.True(t, o.IsAvailable())
}

func TestNewOpenAI_LargeModelDimension(t *testing.T) {
	o, err := NewOpenAI(OpenAIConfig{APIKey: "test-key", Model: "text-embedding-3-large"})
	require.NoError(t, err)
	require.Equal(t, 3072, o.Dimension())
}

func TestNewOllama_Defaults(t *testing.T) {
	o := NewOllama(OllamaConfig{})
	require.Equal(t, 768, o.Dimension())
	require.True(t, o.IsAvailable())
}

func TestNewOllama_KnownModelDimensions(t *testing.T) {
	require.Equal(t, 1024, NewOllama(OllamaConfig{Model: "mxbai-embed-large"}).Dimension())
	require.Equal(t, 384, NewOllama(OllamaConfig{Model: "all-minilm"}).Dimension())
}

func TestNormalize_ZeroVectorUnchanged(t *testing.T) {
	zero := []float32{0, 0, 0}
	require.Equal(t, zero, normalize(zero))
}
