package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Ollama is an Embedder realization backed by a local Ollama server
// (spec.md §4.3). Grounded on the teacher's
// internal/memory/embeddings/ollama.Provider, adapted from the teacher's
// one-request-per-text EmbedBatch loop into the same shape but returning
// normalized vectors through the shared normalize helper, since Ollama's
// /api/embeddings endpoint makes no unit-length guarantee.
type Ollama struct {
	baseURL string
	model   string
	dim     int
	client  *http.Client
}

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	BaseURL string // default http://localhost:11434
	Model   string // e.g. nomic-embed-text, mxbai-embed-large, all-minilm
}

// NewOllama builds an Ollama-backed Embedder.
func NewOllama(cfg OllamaConfig) *Ollama {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	return &Ollama{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		dim:     ollamaDimension(cfg.Model),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func ollamaDimension(model string) int {
	switch model {
	case "mxbai-embed-large":
		return 1024
	case "all-minilm":
		return 384
	case "nomic-embed-text":
		return 768
	default:
		return 768
	}
}

// Dimension implements Embedder.
func (o *Ollama) Dimension() int { return o.dim }

// IsAvailable implements Embedder. A lightweight reachability probe is left
// to the caller (e.g. at startup); this realization reports available
// unconditionally and surfaces connection failures through Embed as ErrIO.
func (o *Ollama) IsAvailable() bool { return true }

// Embed implements Embedder, issuing one request per text against Ollama's
// /api/embeddings endpoint (it has no native batch endpoint).
func (o *Ollama) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := o.embedOne(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("ollama embedder: embed text %d: %w", i, err)
		}
		out[i] = normalize(vec)
	}
	return out, nil
}

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (o *Ollama) embedOne(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbeddingRequest{Model: o.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(b))
	}

	var result ollamaEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return result.Embedding, nil
}
