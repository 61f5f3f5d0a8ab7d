// Package queryset turns citation contexts into deduplicated evaluation queries with
// ground-truth relevant documents.
package queryset

import (
	"context"
	"fmt"
	"slices"

	"github.com/kailas-cloud/citesearch/internal/domain"
)

// Candidate is one citation context: the citing sentence and the DOI it cites.
type Candidate struct {
	Text string
	DOI  string
}

// Query is an accepted query. Relevant is never empty.
type Query struct {
	Index    int
	Text     string
	Relevant []string
	Vector   []float32
}

// Stats counts how candidates were handled.
type Stats struct {
	Candidates int
	Accepted   int
	Queries    int
	Rejected   map[Reason]int
}

// Set is an immutable, positionally indexed query snapshot.
type Set struct {
	queries []Query
	model   string
	stats   Stats
}

// Build filters candidates through p and merges identical texts, unioning their DOIs.
// Queries are indexed 0..M-1 in first-seen order.
func Build(candidates []Candidate, p Policy) *Set {
	s := &Set{stats: Stats{Candidates: len(candidates), Rejected: map[Reason]int{}}}
	byText := make(map[string]int)

	for _, c := range candidates {
		if reason, ok := p.Check(c); !ok {
			s.stats.Rejected[reason]++
			continue
		}
		s.stats.Accepted++
		if i, ok := byText[c.Text]; ok {
			if !slices.Contains(s.queries[i].Relevant, c.DOI) {
				s.queries[i].Relevant = append(s.queries[i].Relevant, c.DOI)
			}
			continue
		}
		byText[c.Text] = len(s.queries)
		s.queries = append(s.queries, Query{
			Index:    len(s.queries),
			Text:     c.Text,
			Relevant: []string{c.DOI},
		})
	}
	s.stats.Queries = len(s.queries)
	return s
}

// FromQueries restores a persisted set, re-indexing by position. Repeated relevant DOIs collapse
// to their first occurrence. Every query needs a relevant document, and vectors, when present,
// must share one dimension.
func FromQueries(queries []Query, model string) (*Set, error) {
	s := &Set{queries: make([]Query, len(queries)), model: model}
	dim := 0
	for i, q := range queries {
		if len(q.Relevant) == 0 {
			return nil, fmt.Errorf("query %d: %w", i, domain.ErrEmptyRelevant)
		}
		if len(q.Vector) > 0 {
			if dim == 0 {
				dim = len(q.Vector)
			}
			if len(q.Vector) != dim {
				return nil, fmt.Errorf("query %d: %w", i, domain.NewDimensionError(dim, len(q.Vector)))
			}
		}
		q.Index = i
		q.Relevant = uniq(q.Relevant)
		s.queries[i] = q
	}
	s.stats = Stats{Candidates: len(queries), Accepted: len(queries), Queries: len(queries), Rejected: map[Reason]int{}}
	return s, nil
}

// Embed vectorizes all query texts in one batch call and returns a new set carrying them.
func (s *Set) Embed(ctx context.Context, be domain.BatchEmbedder) (*Set, error) {
	if len(s.queries) == 0 {
		return nil, domain.ErrEmptyBatch
	}
	texts := s.Texts()
	res, err := be.BatchEmbed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed queries: %w", err)
	}
	if err := domain.CheckBatch(res, len(texts), 0); err != nil {
		return nil, fmt.Errorf("embed queries: %w", err)
	}

	out := &Set{queries: make([]Query, len(s.queries)), model: be.Model(), stats: s.stats}
	for i, q := range s.queries {
		q.Relevant = slices.Clone(q.Relevant)
		q.Vector = res.Embeddings[i]
		out.queries[i] = q
	}
	return out, nil
}

// Queries returns the queries in index order. Callers must not mutate them.
func (s *Set) Queries() []Query { return s.queries }

// Texts returns query texts in index order.
func (s *Set) Texts() []string {
	out := make([]string, len(s.queries))
	for i, q := range s.queries {
		out[i] = q.Text
	}
	return out
}

// Vectors returns query vectors in index order.
func (s *Set) Vectors() [][]float32 {
	out := make([][]float32, len(s.queries))
	for i, q := range s.queries {
		out[i] = q.Vector
	}
	return out
}

// Embedded reports whether every query carries a vector.
func (s *Set) Embedded() bool {
	for _, q := range s.queries {
		if len(q.Vector) == 0 {
			return false
		}
	}
	return len(s.queries) > 0
}

// Len returns the number of queries.
func (s *Set) Len() int { return len(s.queries) }

// Model returns the id of the model that embedded the queries, empty before Embed.
func (s *Set) Model() string { return s.model }

// Stats returns build counters.
func (s *Set) Stats() Stats { return s.stats }

func uniq(dois []string) []string {
	out := make([]string, 0, len(dois))
	for _, d := range dois {
		if !slices.Contains(out, d) {
			out = append(out, d)
		}
	}
	return out
}
