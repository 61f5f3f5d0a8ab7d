package engine

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/kailas-cloud/citesearch/internal/domain"
	"github.com/kailas-cloud/citesearch/internal/domain/corpus"
	"github.com/kailas-cloud/citesearch/internal/domain/queryset"
	"github.com/kailas-cloud/citesearch/internal/domain/search/result"
)

func mustCorpus(t *testing.T, docs []corpus.Document) *corpus.Corpus {
	t.Helper()
	c, err := corpus.Build(docs, "mini")
	if err != nil {
		t.Fatalf("build corpus: %v", err)
	}
	return c
}

func catCorpus(t *testing.T) *corpus.Corpus {
	return mustCorpus(t, []corpus.Document{
		{DOI: "D1", Units: []string{"the cat sat", "on the mat"}, Vectors: [][]float32{{1, 0, 0}, {0.8, 0.6, 0}}},
		{DOI: "D2", Units: []string{"a dog ran fast"}, Vectors: [][]float32{{0, 0, 1}}},
	})
}

func TestRank_ExactSentenceMatchWins(t *testing.T) {
	e := New(catCorpus(t))
	got, err := e.Rank([]float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].DOI() != "D1" || got[0].Sentence() != "the cat sat" {
		t.Errorf("top hit = %s %q", got[0].DOI(), got[0].Sentence())
	}
	if got[0].Score() < 0.999999 {
		t.Errorf("expected cosine 1, got %f", got[0].Score())
	}
}

func TestRank_DedupByDocument(t *testing.T) {
	e := New(catCorpus(t))
	got, err := e.Rank([]float32{1, 0.1, 0}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dois := result.DOIs(got)
	if !slices.Equal(dois, []string{"D1", "D2"}) {
		t.Errorf("ranked DOIs = %v, want [D1 D2]", dois)
	}
}

func TestRank_TruncatesToK(t *testing.T) {
	e := New(catCorpus(t))
	got, err := e.Rank([]float32{0, 0, 1}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].DOI() != "D2" {
		t.Errorf("got %v", result.DOIs(got))
	}
}

func TestRank_TiesKeepCorpusOrder(t *testing.T) {
	c := mustCorpus(t, []corpus.Document{
		{DOI: "B", Units: []string{"x"}, Vectors: [][]float32{{1, 0}}},
		{DOI: "A", Units: []string{"y"}, Vectors: [][]float32{{2, 0}}},
		{DOI: "C", Units: []string{"z"}, Vectors: [][]float32{{0, 1}}},
	})
	e := New(c)
	for range 20 {
		got, err := e.Rank([]float32{1, 0}, 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(result.DOIs(got), []string{"B", "A", "C"}) {
			t.Fatalf("tie order = %v, want [B A C]", result.DOIs(got))
		}
	}
}

func TestRank_InnerProduct(t *testing.T) {
	c := mustCorpus(t, []corpus.Document{
		{DOI: "small", Units: []string{"x"}, Vectors: [][]float32{{1, 0}}},
		{DOI: "large", Units: []string{"y"}, Vectors: [][]float32{{3, 3}}},
	})
	cos, _ := New(c).Rank([]float32{1, 0}, 2)
	ip, _ := New(c, WithMetric(InnerProduct)).Rank([]float32{1, 0}, 2)
	if cos[0].DOI() != "small" {
		t.Errorf("cosine top = %s", cos[0].DOI())
	}
	if ip[0].DOI() != "large" {
		t.Errorf("inner product top = %s", ip[0].DOI())
	}
}

func TestRank_ZeroVectorScoresZero(t *testing.T) {
	got, err := New(catCorpus(t)).Rank([]float32{0, 0, 0}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, r := range got {
		if r.Score() != 0 {
			t.Errorf("score for zero query = %f", r.Score())
		}
	}
}

func TestRank_Preconditions(t *testing.T) {
	e := New(catCorpus(t))
	if _, err := e.Rank([]float32{1, 0}, 5); !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Errorf("expected ErrVectorDimMismatch, got %v", err)
	}
	if _, err := e.Rank([]float32{1, 0, 0}, 0); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestRankAll_Positional(t *testing.T) {
	e := New(catCorpus(t), WithWorkers(2))
	queries := [][]float32{{0, 0, 1}, {1, 0, 0}, {0, 0, 1}, {1, 0, 0}}
	got, err := e.RankAll(context.Background(), queries, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"D2", "D1", "D2", "D1"}
	for i := range want {
		if got[i][0].DOI() != want[i] {
			t.Errorf("row %d top = %s, want %s", i, got[i][0].DOI(), want[i])
		}
	}
}

func TestRankAll_PropagatesRowError(t *testing.T) {
	e := New(catCorpus(t))
	_, err := e.RankAll(context.Background(), [][]float32{{1, 0, 0}, {1}}, 1)
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestRankQueries_ModelMismatch(t *testing.T) {
	qs, err := queryset.FromQueries([]queryset.Query{
		{Text: "q", Relevant: []string{"D1"}, Vector: []float32{1, 0, 0}},
	}, "other-model")
	if err != nil {
		t.Fatalf("build queries: %v", err)
	}
	_, err = New(catCorpus(t)).RankQueries(context.Background(), qs, 5)
	if !errors.Is(err, domain.ErrModelMismatch) {
		t.Fatalf("expected ErrModelMismatch, got %v", err)
	}
}

func TestParseMetric(t *testing.T) {
	if m, err := ParseMetric("cosine"); err != nil || m != Cosine {
		t.Errorf("cosine: %v %v", m, err)
	}
	if m, err := ParseMetric("ip"); err != nil || m != InnerProduct {
		t.Errorf("ip: %v %v", m, err)
	}
	if _, err := ParseMetric("l2"); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}
