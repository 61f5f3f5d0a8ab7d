package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/citesearch/internal/domain"
	dompaper "github.com/kailas-cloud/citesearch/internal/domain/paper"
	"github.com/kailas-cloud/citesearch/internal/domain/search/result"
)

const (
	// DefaultTopK is used when the caller does not ask for a size.
	DefaultTopK = 5
	// MaxTopK bounds text search results.
	MaxTopK = 100
	// DefaultDOISize is the default number of sentences returned per DOI.
	DefaultDOISize = 10
	// MaxDOISize bounds by-DOI results.
	MaxDOISize = 1000

	// candidateFactor widens the HNSW candidate list relative to k.
	candidateFactor = 10
)

// Service serves text and DOI lookups over the sentence index.
type Service struct {
	index  Index
	papers PaperReader
	embed  Embedder
}

// New creates a search service. papers can be nil.
func New(index Index, papers PaperReader, embed Embedder) *Service {
	return &Service{index: index, papers: papers, embed: embed}
}

// ByText embeds text and returns the topK nearest sentences.
func (s *Service) ByText(ctx context.Context, text string, topK int) ([]result.Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: text is required", domain.ErrInvalidRequest)
	}
	if topK == 0 {
		topK = DefaultTopK
	}
	if topK < 1 || topK > MaxTopK {
		return nil, fmt.Errorf("%w: top_k must be between 1 and %d", domain.ErrInvalidRequest, MaxTopK)
	}

	emb, err := s.embed.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.index.KNN(ctx, emb.Embedding, topK, topK*candidateFactor)
	if err != nil {
		return nil, fmt.Errorf("knn: %w", err)
	}
	return results, nil
}

// ByDOI returns up to size sentences of one paper in document order.
func (s *Service) ByDOI(ctx context.Context, doi string, size int) ([]result.Result, error) {
	doi = dompaper.NormalizeDOI(doi)
	if doi == "" {
		return nil, fmt.Errorf("%w: doi is required", domain.ErrInvalidRequest)
	}
	if size == 0 {
		size = DefaultDOISize
	}
	if size < 1 || size > MaxDOISize {
		return nil, fmt.Errorf("%w: size must be between 1 and %d", domain.ErrInvalidRequest, MaxDOISize)
	}

	results, err := s.index.ByDOI(ctx, doi, size)
	if err != nil {
		return nil, fmt.Errorf("by doi: %w", err)
	}
	return results, nil
}

// Paper returns stored metadata for doi.
func (s *Service) Paper(ctx context.Context, doi string) (dompaper.Paper, error) {
	if s.papers == nil {
		return dompaper.Paper{}, fmt.Errorf("paper store: %w", domain.ErrNotFound)
	}
	doi = dompaper.NormalizeDOI(doi)
	if doi == "" {
		return dompaper.Paper{}, fmt.Errorf("%w: doi is required", domain.ErrInvalidRequest)
	}
	p, err := s.papers.Get(ctx, doi)
	if err != nil {
		return dompaper.Paper{}, fmt.Errorf("get paper: %w", err)
	}
	return p, nil
}
