package engine

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/kailas-cloud/citesearch/internal/domain"
	"github.com/kailas-cloud/citesearch/internal/domain/queryset"
	"github.com/kailas-cloud/citesearch/internal/domain/search/result"
)

// Okapi BM25 defaults.
const (
	DefaultK1      = 1.5
	DefaultB       = 0.75
	DefaultEpsilon = 0.25
)

// TextDocument is one document for lexical ranking.
type TextDocument struct {
	DOI  string
	Text string
}

// BM25 is an Okapi BM25 lexical ranker over whole-document text. Terms whose idf would be
// negative are floored at Epsilon times the mean idf.
type BM25 struct {
	docs  []TextDocument
	freqs []map[string]int
	lens  []int
	avgdl float64
	idf   map[string]float64
	k1, b float64
}

// NewBM25 indexes docs with whitespace tokenization.
func NewBM25(docs []TextDocument) *BM25 {
	r := &BM25{
		docs:  docs,
		freqs: make([]map[string]int, len(docs)),
		lens:  make([]int, len(docs)),
		idf:   make(map[string]float64),
		k1:    DefaultK1,
		b:     DefaultB,
	}

	df := make(map[string]int)
	total := 0
	for i, d := range docs {
		tokens := strings.Fields(d.Text)
		freq := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			freq[tok]++
		}
		for tok := range freq {
			df[tok]++
		}
		r.freqs[i] = freq
		r.lens[i] = len(tokens)
		total += len(tokens)
	}
	if len(docs) > 0 {
		r.avgdl = float64(total) / float64(len(docs))
	}

	n := float64(len(docs))
	var sum float64
	var negative []string
	for tok, f := range df {
		idf := math.Log(n-float64(f)+0.5) - math.Log(float64(f)+0.5)
		r.idf[tok] = idf
		sum += idf
		if idf < 0 {
			negative = append(negative, tok)
		}
	}
	if len(df) > 0 {
		eps := DefaultEpsilon * sum / float64(len(df))
		for _, tok := range negative {
			r.idf[tok] = eps
		}
	}
	return r
}

// Scores returns one score per document for query text.
func (r *BM25) Scores(query string) []float64 {
	scores := make([]float64, len(r.docs))
	if r.avgdl == 0 {
		return scores
	}
	for _, tok := range strings.Fields(query) {
		idf, ok := r.idf[tok]
		if !ok {
			continue
		}
		for i, freq := range r.freqs {
			f := float64(freq[tok])
			if f == 0 {
				continue
			}
			denom := f + r.k1*(1-r.b+r.b*float64(r.lens[i])/r.avgdl)
			scores[i] += idf * f * (r.k1 + 1) / denom
		}
	}
	return scores
}

// Rank returns up to k documents for query text, best first, ties in input order.
func (r *BM25) Rank(query string, k int) ([]result.Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d: %w", k, domain.ErrInvalidRequest)
	}
	scores := r.Scores(query)

	seen := make(map[string]struct{}, k)
	out := make([]result.Result, 0, k)
	for _, idx := range descending(scores) {
		d := r.docs[idx]
		if _, ok := seen[d.DOI]; ok {
			continue
		}
		seen[d.DOI] = struct{}{}
		out = append(out, result.New(d.DOI, d.Text, scores[idx], idx))
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// RankQueries ranks each query text of the set. Vectors are ignored.
func (r *BM25) RankQueries(ctx context.Context, queries *queryset.Set, k int) ([][]result.Result, error) {
	out := make([][]result.Result, queries.Len())
	for i, q := range queries.Queries() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ranked, err := r.Rank(q.Text, k)
		if err != nil {
			return nil, fmt.Errorf("query %d: %w", i, err)
		}
		out[i] = ranked
	}
	return out, nil
}
