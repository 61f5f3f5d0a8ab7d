package domain

import (
	"context"
	"fmt"
)

// KeyPrefix namespaces every key this service writes to the shared store.
const KeyPrefix = "citesearch:"

// Embedder is the shared text vectorization contract between layers.
// Model identifies the model behind the vectors; corpus and queries of one run must agree on it.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
	Model() string
}

// BatchEmbedder vectorizes multiple texts in a single call, preserving input order.
type BatchEmbedder interface {
	Embedder
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult carries multiple embedding vectors and aggregate token usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// BatchFallback embeds texts one at a time for providers without a native batch call.
func BatchFallback(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return BatchEmbeddingResult{}, ErrEmptyBatch
	}
	embeddings := make([][]float32, len(texts))
	var totalPrompt, totalTokens int

	for i, text := range texts {
		res, err := e.Embed(ctx, text)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("fallback embed [%d]: %w", i, err)
		}
		embeddings[i] = res.Embedding
		totalPrompt += res.PromptTokens
		totalTokens += res.TotalTokens
	}

	return BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: totalPrompt,
		TotalTokens:  totalTokens,
	}, nil
}

// CheckBatch verifies a batch response against its request: one vector per text, all of dim
// (dim <= 0 means "whatever the first vector has").
func CheckBatch(res BatchEmbeddingResult, n, dim int) error {
	if len(res.Embeddings) != n {
		return fmt.Errorf("%w: got %d vectors for %d texts", ErrMisaligned, len(res.Embeddings), n)
	}
	if n == 0 {
		return nil
	}
	if dim <= 0 {
		dim = len(res.Embeddings[0])
	}
	for _, v := range res.Embeddings {
		if len(v) != dim {
			return NewDimensionError(dim, len(v))
		}
	}
	return nil
}

// PrefixEmbedder prepends a fixed instruction to every text before delegating.
// Asymmetric models (e5, bge) expect different prefixes for queries and passages.
type PrefixEmbedder struct {
	inner  Embedder
	prefix string
}

// NewPrefixEmbedder wraps inner. An empty prefix makes it a pass-through.
func NewPrefixEmbedder(inner Embedder, prefix string) *PrefixEmbedder {
	return &PrefixEmbedder{inner: inner, prefix: prefix}
}

// Model reports the inner model id.
func (e *PrefixEmbedder) Model() string { return e.inner.Model() }

// Embed prepends the prefix and delegates.
func (e *PrefixEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	result, err := e.inner.Embed(ctx, e.prefix+text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("prefix embed: %w", err)
	}
	return result, nil
}

// BatchEmbed prefixes each text and uses the inner batch call when available.
func (e *PrefixEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = e.prefix + t
	}

	if be, ok := e.inner.(BatchEmbedder); ok {
		res, err := be.BatchEmbed(ctx, prefixed)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("prefix batch embed: %w", err)
		}
		return res, nil
	}

	res, err := BatchFallback(ctx, e.inner, prefixed)
	if err != nil {
		return BatchEmbeddingResult{}, fmt.Errorf("prefix batch embed fallback: %w", err)
	}
	return res, nil
}
