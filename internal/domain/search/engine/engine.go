// Package engine ranks corpus documents for query vectors by sentence-level similarity,
// deduplicating hits to document level.
package engine

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/citesearch/internal/domain"
	"github.com/kailas-cloud/citesearch/internal/domain/corpus"
	"github.com/kailas-cloud/citesearch/internal/domain/queryset"
	"github.com/kailas-cloud/citesearch/internal/domain/search/result"
)

// Metric selects the similarity function.
type Metric int

// Supported metrics.
const (
	Cosine Metric = iota
	InnerProduct
)

// ParseMetric maps a config name to a Metric.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "", "cosine":
		return Cosine, nil
	case "ip", "inner_product":
		return InnerProduct, nil
	default:
		return 0, fmt.Errorf("unknown metric %q: %w", s, domain.ErrInvalidRequest)
	}
}

// Ranker produces one deduplicated ranked list per query of a set.
type Ranker interface {
	RankQueries(ctx context.Context, queries *queryset.Set, k int) ([][]result.Result, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetric sets the similarity metric. Cosine is the default.
func WithMetric(m Metric) Option {
	return func(e *Engine) { e.metric = m }
}

// WithWorkers bounds the number of query rows scored concurrently.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// Engine holds a read-only corpus and scores queries against every entry.
type Engine struct {
	corpus  *corpus.Corpus
	norms   []float64
	metric  Metric
	workers int
}

// New creates an engine over c, precomputing entry norms.
func New(c *corpus.Corpus, opts ...Option) *Engine {
	e := &Engine{corpus: c, metric: Cosine, workers: runtime.GOMAXPROCS(0)}
	for _, o := range opts {
		o(e)
	}
	entries := c.Entries()
	e.norms = make([]float64, len(entries))
	for i := range entries {
		e.norms[i] = norm(entries[i].Vector)
	}
	return e
}

// Rank returns up to k documents for query, best first. Entries are ordered by descending
// similarity with ties kept in corpus order, and only the first entry of each document counts.
func (e *Engine) Rank(query []float32, k int) ([]result.Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d: %w", k, domain.ErrInvalidRequest)
	}
	if dim := e.corpus.Dim(); dim != 0 && len(query) != dim {
		return nil, domain.NewDimensionError(dim, len(query))
	}
	return e.collect(e.Scores(query), k), nil
}

// Scores returns one similarity per corpus entry. query must match the corpus dimension.
func (e *Engine) Scores(query []float32) []float64 {
	entries := e.corpus.Entries()
	scores := make([]float64, len(entries))
	qn := norm(query)
	for i := range entries {
		s := dot(query, entries[i].Vector)
		if e.metric == Cosine {
			if qn == 0 || e.norms[i] == 0 {
				s = 0
			} else {
				s /= qn * e.norms[i]
			}
		}
		scores[i] = s
	}
	return scores
}

// RankAll ranks every query row concurrently. Results are positionally aligned with queries.
func (e *Engine) RankAll(ctx context.Context, queries [][]float32, k int) ([][]result.Result, error) {
	out := make([][]result.Result, len(queries))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, q := range queries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ranked, err := e.Rank(q, k)
			if err != nil {
				return fmt.Errorf("query %d: %w", i, err)
			}
			out[i] = ranked
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// RankQueries ranks an embedded query set. The set must come from the corpus model.
func (e *Engine) RankQueries(ctx context.Context, queries *queryset.Set, k int) ([][]result.Result, error) {
	if queries.Model() != e.corpus.Model() {
		return nil, fmt.Errorf("corpus %q, queries %q: %w", e.corpus.Model(), queries.Model(), domain.ErrModelMismatch)
	}
	return e.RankAll(ctx, queries.Vectors(), k)
}

func (e *Engine) collect(scores []float64, k int) []result.Result {

	entries := e.corpus.Entries()
	seen := make(map[string]struct{}, k)
	out := make([]result.Result, 0, k)
	for _, idx := range descending(scores) {
		doi := entries[idx].DOI
		if _, ok := seen[doi]; ok {
			continue
		}
		seen[doi] = struct{}{}
		out = append(out, result.New(doi, entries[idx].Text, scores[idx], idx))
		if len(out) == k {
			break
		}
	}
	return out
}

// descending returns entry positions by decreasing score; equal scores keep input order.
func descending(scores []float64) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case scores[a] > scores[b]:
			return -1
		case scores[a] < scores[b]:
			return 1
		default:
			return 0
		}
	})
	return order
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}
