package embedding

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI is an Embedder realization backed by OpenAI's embedding models
// (spec.md §4.3: "any realization that returns normalized vectors of the
// declared dimension satisfies the contract"). Grounded on the teacher's
// internal/memory/embeddings/openai.Provider, adapted from the teacher's
// embeddings.Provider interface (Name/MaxBatchSize/EmbedBatch) to the
// narrower Embedder capability the storage engine consumes.
type OpenAI struct {
	client *openai.Client
	model  string
	dim    int
}

// OpenAIConfig configures the OpenAI embedder.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // optional custom base URL (e.g. an OpenAI-compatible gateway)
	Model   string // text-embedding-3-small or text-embedding-3-large
}

// NewOpenAI builds an OpenAI-backed Embedder. The catalog's fixed dimension
// is derived from the model the first time a catalog is initialized; a
// later reopen with a different model surfaces as ErrEmbeddingMismatch via
// catalog.Open's dimension check, not here.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai embedder: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
		dim:    dimensionForModel(cfg.Model),
	}, nil
}

func dimensionForModel(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	default:
		return 1536
	}
}

// Dimension implements Embedder.
func (o *OpenAI) Dimension() int { return o.dim }

// IsAvailable implements Embedder. The OpenAI embedder is always considered
// configured once constructed; transient API failures surface through Embed
// as ErrIO at the call site, not as unavailability.
func (o *OpenAI) IsAvailable() bool { return o.client != nil }

// Embed implements Embedder, batching all texts into a single request
// (OpenAI accepts up to 2048 inputs per call) and L2-normalizing the
// response defensively so every realization satisfies the same invariant
// regardless of what the provider returns.
func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(o.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedder: create embeddings: %w", err)
	}

	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		out[d.Index] = normalize(d.Embedding)
	}
	return out, nil
}
