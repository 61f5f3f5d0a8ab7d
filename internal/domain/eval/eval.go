// Package eval scores ranked retrieval results against ground-truth relevance.
package eval

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"github.com/kailas-cloud/citesearch/internal/domain"
	"github.com/kailas-cloud/citesearch/internal/domain/queryset"
)

// AveragePrecisionAtK scores the first k entries of ranked. At each relevant position i
// (1-based) it adds hits-so-far/i, then divides by the full relevant count.
func AveragePrecisionAtK(ranked, relevant []string, k int) (float64, error) {
	if len(relevant) == 0 {
		return 0, domain.ErrEmptyRelevant
	}
	var sum float64
	hits := 0
	for i, doi := range ranked {
		if i >= k {
			break
		}
		if slices.Contains(relevant, doi) {
			hits++
			sum += float64(hits) / float64(i+1)
		}
	}
	return sum / float64(len(relevant)), nil
}

// AnyAtTop reports whether any relevant document is among the first top ranked entries.
func AnyAtTop(ranked, relevant []string, top int) bool {
	for i, doi := range ranked {
		if i >= top {
			break
		}
		if slices.Contains(relevant, doi) {
			return true
		}
	}
	return false
}

// Config lists the cutoffs to report. Empty slices fall back to MAP@5 and any@1.
type Config struct {
	Ks   []int
	Tops []int
}

// Normalize fills empty cutoff lists with their defaults and rejects non-positive cutoffs.
func (c Config) Normalize() (Config, error) {
	if len(c.Ks) == 0 {
		c.Ks = []int{5}
	}
	if len(c.Tops) == 0 {
		c.Tops = []int{1}
	}
	for _, v := range append(slices.Clone(c.Ks), c.Tops...) {
		if v <= 0 {
			return c, fmt.Errorf("cutoff must be positive, got %d: %w", v, domain.ErrInvalidRequest)
		}
	}
	return c, nil
}

// Depth is the ranking length the deepest k or top needs. Call it on a normalized config.
func (c Config) Depth() int {
	return max(slices.Max(append(slices.Clone(c.Ks), c.Tops...)), 1)
}

// QueryResult is the per-query record of a report.
type QueryResult struct {
	Text     string
	Relevant []string
	Received []string
	AvePrec  map[int]float64
	AnyAt    map[int]bool
}

// Report is the outcome of one evaluation run.
type Report struct {
	NClaims  int
	NDocs    int
	MAP      map[int]float64
	CountAny map[int]float64
	Queries  []QueryResult
}

// Evaluate scores rankings[i] against queries[i]. Each ranking is truncated to the deepest
// cutoff, k or top, before scoring. nDocs is reported as-is.
func Evaluate(queries []queryset.Query, rankings [][]string, nDocs int, cfg Config) (Report, error) {
	cfg, err := cfg.Normalize()
	if err != nil {
		return Report{}, err
	}
	if len(queries) == 0 {
		return Report{}, fmt.Errorf("no queries to evaluate: %w", domain.ErrInvalidRequest)
	}
	if len(queries) != len(rankings) {
		return Report{}, fmt.Errorf("%d queries, %d rankings: %w", len(queries), len(rankings), domain.ErrMisaligned)
	}
	depth := cfg.Depth()

	rep := Report{
		NClaims:  len(queries),
		NDocs:    nDocs,
		MAP:      make(map[int]float64, len(cfg.Ks)),
		CountAny: make(map[int]float64, len(cfg.Tops)),
		Queries:  make([]QueryResult, len(queries)),
	}
	for i, q := range queries {
		received := rankings[i]
		if len(received) > depth {
			received = received[:depth]
		}
		qr := QueryResult{
			Text:     q.Text,
			Relevant: q.Relevant,
			Received: received,
			AvePrec:  make(map[int]float64, len(cfg.Ks)),
			AnyAt:    make(map[int]bool, len(cfg.Tops)),
		}
		for _, k := range cfg.Ks {
			ap, err := AveragePrecisionAtK(received, q.Relevant, k)
			if err != nil {
				return Report{}, fmt.Errorf("query %d: %w", i, err)
			}
			qr.AvePrec[k] = ap
			rep.MAP[k] += ap
		}
		for _, top := range cfg.Tops {
			hit := AnyAtTop(received, q.Relevant, top)
			qr.AnyAt[top] = hit
			if hit {
				rep.CountAny[top]++
			}
		}
		rep.Queries[i] = qr
	}
	n := float64(len(queries))
	for k := range rep.MAP {
		rep.MAP[k] /= n
	}
	for top := range rep.CountAny {
		rep.CountAny[top] /= n
	}
	return rep, nil
}

// MarshalJSON renders the flat "map@k" / "countany@top" layout with query_results keyed by index.
func (r Report) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"n_claims": r.NClaims,
		"n_docs":   r.NDocs,
	}
	for k, v := range r.MAP {
		out["map@"+strconv.Itoa(k)] = v
	}
	for top, v := range r.CountAny {
		out["countany@"+strconv.Itoa(top)] = v
	}
	results := make(map[string]QueryResult, len(r.Queries))
	for i, q := range r.Queries {
		results[strconv.Itoa(i)] = q
	}
	out["query_results"] = results
	return json.Marshal(out)
}

// MarshalJSON renders one query record with "avep@k" and "any@top" keys.
func (q QueryResult) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"text":     q.Text,
		"relevant": nonNil(q.Relevant),
		"received": nonNil(q.Received),
	}
	for k, v := range q.AvePrec {
		out["avep@"+strconv.Itoa(k)] = v
	}
	for top, v := range q.AnyAt {
		out["any@"+strconv.Itoa(top)] = v
	}
	return json.Marshal(out)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
