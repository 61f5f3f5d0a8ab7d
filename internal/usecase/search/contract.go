package search

import (
	"context"

	"github.com/kailas-cloud/citesearch/internal/domain"
	dompaper "github.com/kailas-cloud/citesearch/internal/domain/paper"
	"github.com/kailas-cloud/citesearch/internal/domain/search/result"
)

// Index is the sentence index contract.
type Index interface {
	KNN(ctx context.Context, vector []float32, k, candidates int) ([]result.Result, error)
	ByDOI(ctx context.Context, doi string, size int) ([]result.Result, error)
}

// PaperReader reads stored paper metadata.
type PaperReader interface {
	Get(ctx context.Context, doi string) (dompaper.Paper, error)
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
