package evaluate

import (
	"context"
	"errors"
	"math"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/citesearch/internal/domain"
	"github.com/kailas-cloud/citesearch/internal/domain/corpus"
	"github.com/kailas-cloud/citesearch/internal/domain/eval"
	"github.com/kailas-cloud/citesearch/internal/domain/queryset"
	"github.com/kailas-cloud/citesearch/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterEvalMetrics()
	os.Exit(m.Run())
}

type mockEmbedder struct {
	model string
	vecs  map[string][]float32
	calls int
}

func (m *mockEmbedder) Model() string { return m.model }

func (m *mockEmbedder) Embed(_ context.Context, t string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: m.vecs[t]}, nil
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vecs[t]
	}
	return domain.BatchEmbeddingResult{Embeddings: out}, nil
}

func testCorpus(t *testing.T) *corpus.Corpus {
	t.Helper()
	c, err := corpus.Build([]corpus.Document{
		{DOI: "10.1/x", Units: []string{"x1", "x2"}, Vectors: [][]float32{{1, 0}, {0.9, 0.1}}},
		{DOI: "10.1/y", Units: []string{"y1"}, Vectors: [][]float32{{0, 1}}},
	}, "m")
	if err != nil {
		t.Fatalf("build corpus: %v", err)
	}
	return c
}

func testQueries(t *testing.T) *queryset.Set {
	t.Helper()
	s, err := queryset.FromQueries([]queryset.Query{
		{Text: "about x", Relevant: []string{"10.1/x"}, Vector: []float32{1, 0}},
		{Text: "about y", Relevant: []string{"10.1/y"}, Vector: []float32{1, 0.2}},
	}, "m")
	if err != nil {
		t.Fatalf("build queries: %v", err)
	}
	return s
}

func TestDense(t *testing.T) {
	svc := New(eval.Config{Ks: []int{2}, Tops: []int{1}}, zap.NewNop())

	run, err := svc.Dense(context.Background(), testCorpus(t), testQueries(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Ranker != RankerDense || run.ID.String() == "" {
		t.Errorf("unexpected run metadata %+v", run)
	}
	rep := run.Report
	if rep.NClaims != 2 || rep.NDocs != 3 {
		t.Errorf("expected 2 claims and 3 entries, got %d/%d", rep.NClaims, rep.NDocs)
	}
	// query 0 hits at rank 1 (AP 1), query 1 hits at rank 2 (AP 0.5)
	if math.Abs(rep.MAP[2]-0.75) > 1e-9 {
		t.Errorf("expected map@2 0.75, got %v", rep.MAP[2])
	}
	if math.Abs(rep.CountAny[1]-0.5) > 1e-9 {
		t.Errorf("expected countany@1 0.5, got %v", rep.CountAny[1])
	}
}

func twoDocCorpus(t *testing.T) (*corpus.Corpus, *queryset.Set) {
	t.Helper()
	c, err := corpus.Build([]corpus.Document{
		{DOI: "A", Units: []string{"a"}, Vectors: [][]float32{{1, 0}}},
		{DOI: "B", Units: []string{"b"}, Vectors: [][]float32{{0.9, 0.1}}},
	}, "m")
	if err != nil {
		t.Fatalf("build corpus: %v", err)
	}
	q, err := queryset.FromQueries([]queryset.Query{
		{Text: "q", Relevant: []string{"B"}, Vector: []float32{1, 0}},
	}, "m")
	if err != nil {
		t.Fatalf("build queries: %v", err)
	}
	return c, q
}

func TestDense_RanksDeepEnoughForEveryCutoff(t *testing.T) {
	tests := []struct {
		name    string
		cfg     eval.Config
		wantMAP map[int]float64
		wantAny map[int]float64
	}{
		{"default ks", eval.Config{Tops: []int{1}}, map[int]float64{5: 0.5}, map[int]float64{1: 0}},
		{"top deeper than k", eval.Config{Ks: []int{1}, Tops: []int{2}}, map[int]float64{1: 0}, map[int]float64{2: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, q := twoDocCorpus(t)
			run, err := New(tt.cfg, zap.NewNop()).Dense(context.Background(), c, q)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			rep := run.Report
			if got := rep.Queries[0].Received; len(got) != 2 {
				t.Errorf("received = %v, want both documents", got)
			}
			for k, want := range tt.wantMAP {
				if math.Abs(rep.MAP[k]-want) > 1e-9 {
					t.Errorf("map@%d = %v, want %v", k, rep.MAP[k], want)
				}
			}
			for top, want := range tt.wantAny {
				if math.Abs(rep.CountAny[top]-want) > 1e-9 {
					t.Errorf("countany@%d = %v, want %v", top, rep.CountAny[top], want)
				}
			}
		})
	}
}

func TestDense_InvalidCutoff(t *testing.T) {
	c, q := twoDocCorpus(t)
	_, err := New(eval.Config{Ks: []int{0}}, zap.NewNop()).Dense(context.Background(), c, q)
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestDense_ModelMismatch(t *testing.T) {
	svc := New(eval.Config{}, zap.NewNop())
	q, err := queryset.FromQueries([]queryset.Query{
		{Text: "q", Relevant: []string{"10.1/x"}, Vector: []float32{1, 0}},
	}, "other")
	if err != nil {
		t.Fatalf("build queries: %v", err)
	}

	_, err = svc.Dense(context.Background(), testCorpus(t), q)
	if !errors.Is(err, domain.ErrModelMismatch) {
		t.Fatalf("expected ErrModelMismatch, got %v", err)
	}
}

func TestBaseline(t *testing.T) {
	svc := New(eval.Config{Ks: []int{1}, Tops: []int{1}}, zap.NewNop())
	sources := []corpus.Source{
		{DOI: "10.1/x", Abstract: "graphene conducts electricity"},
		{DOI: "10.1/y", Abstract: "soil microbes fix nitrogen"},
		{DOI: "10.1/w", Abstract: "wheat yields under drought"},
		{DOI: "10.1/z"},
	}
	q, err := queryset.FromQueries([]queryset.Query{
		{Text: "nitrogen fixing microbes", Relevant: []string{"10.1/y"}},
	}, "")
	if err != nil {
		t.Fatalf("build queries: %v", err)
	}

	run, err := svc.Baseline(context.Background(), sources, q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Report.NDocs != 3 {
		t.Errorf("documents without abstracts must not count, got n_docs %d", run.Report.NDocs)
	}
	if run.Report.MAP[1] != 1 {
		t.Errorf("expected map@1 1, got %v", run.Report.MAP[1])
	}
}

func TestBuildQueries(t *testing.T) {
	long := strings.Repeat("graphene ", 10) + "conducts."
	emb := &mockEmbedder{model: "m", vecs: map[string][]float32{long: {1, 0}}}
	svc := New(eval.Config{}, zap.NewNop())

	set, err := svc.BuildQueries(context.Background(), []queryset.Candidate{
		{Text: long, DOI: "10.1/x"},
		{Text: long, DOI: "10.1/y"},
		{Text: long, DOI: "10.1/unknown"},
		{Text: "too short", DOI: "10.1/x"},
	}, testCorpus(t), emb)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set.Len() != 1 {
		t.Fatalf("expected 1 query, got %d", set.Len())
	}
	if got := set.Queries()[0].Relevant; len(got) != 2 {
		t.Errorf("expected unioned relevant DOIs, got %v", got)
	}
	if set.Model() != "m" || emb.calls != 1 {
		t.Errorf("expected one embed call with model m, got %d calls, model %q", emb.calls, set.Model())
	}
}

func TestBuildQueries_ModelMismatch(t *testing.T) {
	svc := New(eval.Config{}, zap.NewNop())
	_, err := svc.BuildQueries(context.Background(), nil, testCorpus(t), &mockEmbedder{model: "other"})
	if !errors.Is(err, domain.ErrModelMismatch) {
		t.Fatalf("expected ErrModelMismatch, got %v", err)
	}
}

func TestBuildQueries_Bounds(t *testing.T) {
	emb := &mockEmbedder{model: "m", vecs: map[string][]float32{"short enough": {1, 0}}}
	svc := New(eval.Config{}, zap.NewNop()).WithQueryBounds(5, 20)

	set, err := svc.BuildQueries(context.Background(),
		[]queryset.Candidate{{Text: "short enough", DOI: "10.1/x"}}, testCorpus(t), emb)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set.Len() != 1 {
		t.Fatalf("expected 1 query, got %d", set.Len())
	}
}
