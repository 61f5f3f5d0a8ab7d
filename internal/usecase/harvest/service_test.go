package harvest

import (
	"context"
	"errors"
	"iter"
	"slices"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/citesearch/internal/domain"
	"github.com/kailas-cloud/citesearch/internal/domain/corpus"
	dompaper "github.com/kailas-cloud/citesearch/internal/domain/paper"
)

// --- Mocks ---

type mockSource struct {
	journals   []string
	journalErr error
	works      map[string][]dompaper.Paper
	worksErr   error
}

func (m *mockSource) Journals(_ context.Context, _ string, _ int) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, j := range m.journals {
			if !yield(j, nil) {
				return
			}
		}
		if m.journalErr != nil {
			yield("", m.journalErr)
		}
	}
}

func (m *mockSource) Works(_ context.Context, issn string, _ int) iter.Seq2[dompaper.Paper, error] {
	return func(yield func(dompaper.Paper, error) bool) {
		if m.worksErr != nil {
			yield(dompaper.Paper{}, m.worksErr)
			return
		}
		for _, p := range m.works[issn] {
			if !yield(p, nil) {
				return
			}
		}
	}
}

// plainParser treats the raw abstract as text unless it is empty.
func plainParser(raw string) (string, error) {
	raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(raw, "<p>"), "</p>"))
	if raw == "" {
		return "", domain.ErrMissingAbstract
	}
	return raw, nil
}

type mockEmbedder struct {
	mu    sync.Mutex
	calls int
	texts []string
	err   error
}

func (m *mockEmbedder) Model() string { return "test-model" }

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, errors.New("not used")
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.texts = append(m.texts, texts...)
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return domain.BatchEmbeddingResult{Embeddings: out}, nil
}

type mockPapers struct {
	saved []dompaper.Paper
	err   error
}

func (m *mockPapers) Save(_ context.Context, papers []dompaper.Paper) error {
	m.saved = append(m.saved, papers...)
	return m.err
}

func work(doi, title, abstract string) dompaper.Paper {
	return dompaper.Paper{DOI: doi, Title: title, Abstract: abstract}
}

func newSource() *mockSource {
	return &mockSource{
		journals: []string{"1111", "2222"},
		works: map[string][]dompaper.Paper{
			"1111": {
				work("10.1/A", "Alpha", "<p>First sentence here. Second sentence here.</p>"),
				work("10.1/b", "", "<p>No title.</p>"),
				work("10.1/c", "Gamma", "<p></p>"),
			},
			"2222": {
				work("10.1/a", "Alpha again", "<p>Duplicate.</p>"),
				work("10.1/d", "Delta", "<p>Only one.</p>"),
			},
		},
	}
}

// --- Tests ---

func TestPapers_FiltersAndDedupes(t *testing.T) {
	svc := New(newSource(), plainParser, nil, nil, zap.NewNop())
	stats := newStats()

	var dois []string
	for p, err := range svc.Papers(context.Background(), Params{}, stats) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Text == "" {
			t.Errorf("paper %s has no parsed text", p.DOI)
		}
		dois = append(dois, p.DOI)
	}

	if !slices.Equal(dois, []string{"10.1/a", "10.1/d"}) {
		t.Fatalf("unexpected dois %v", dois)
	}
	if stats.Journals != 2 || stats.Papers != 2 {
		t.Errorf("expected 2 journals and 2 papers, got %+v", stats)
	}
	want := map[string]int{"no_title": 1, "missing_abstract": 1, "duplicate": 1}
	for reason, n := range want {
		if stats.Skipped[reason] != n {
			t.Errorf("skipped[%s] = %d, want %d", reason, stats.Skipped[reason], n)
		}
	}
}

func TestPapers_Limits(t *testing.T) {
	svc := New(newSource(), plainParser, nil, nil, zap.NewNop())

	var n int
	for _, err := range svc.Papers(context.Background(), Params{MaxPapers: 1}, nil) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		n++
	}
	if n != 1 {
		t.Errorf("expected 1 paper with MaxPapers=1, got %d", n)
	}

	stats := newStats()
	for _, err := range svc.Papers(context.Background(), Params{MaxJournals: 1}, stats) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if stats.Journals != 1 {
		t.Errorf("expected 1 journal with MaxJournals=1, got %d", stats.Journals)
	}
}

func TestPapers_SourceErrorsSurface(t *testing.T) {
	upstream := errors.New("boom")
	tests := []struct {
		name string
		src  *mockSource
	}{
		{"journals", &mockSource{journalErr: upstream}},
		{"works", &mockSource{journals: []string{"1"}, worksErr: upstream}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(tt.src, plainParser, nil, nil, zap.NewNop())
			var got error
			for _, err := range svc.Papers(context.Background(), Params{}, nil) {
				if err != nil {
					got = err
				}
			}
			if !errors.Is(got, upstream) {
				t.Fatalf("expected upstream error, got %v", got)
			}
		})
	}
}

func TestSegment(t *testing.T) {
	src := Segment(dompaper.Paper{DOI: "10.1/a", Title: "T", Text: "One thing. Two things."})
	if src.Abstract != "One thing. Two things." {
		t.Errorf("unexpected abstract %q", src.Abstract)
	}
	if !slices.Equal(src.Sentences, []string{"One thing.", "Two things."}) {
		t.Errorf("unexpected sentences %v", src.Sentences)
	}
}

func TestEmbed_AlignsVectorsPerDocument(t *testing.T) {
	emb := &mockEmbedder{}
	svc := New(newSource(), plainParser, emb, nil, zap.NewNop())

	sources := []corpus.Source{
		{DOI: "10.1/a", Title: "A", Sentences: []string{"s1", "s22"}},
		{DOI: "10.1/empty", Title: "E"},
		{DOI: "10.1/b", Title: "B", Sentences: []string{"s333"}},
	}
	docs, err := svc.Embed(context.Background(), sources, corpus.TitleSentenced)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emb.calls != 1 {
		t.Errorf("expected a single batch call, got %d", emb.calls)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if !slices.Equal(docs[0].Units, []string{"A: s1", "A: s22"}) {
		t.Errorf("unexpected units %v", docs[0].Units)
	}
	if len(docs[1].Vectors) != 1 || docs[1].Vectors[0][0] != float32(len("B: s333")) {
		t.Errorf("vector not aligned with its unit: %v", docs[1].Vectors)
	}
}

func TestEmbed_ProviderError(t *testing.T) {
	emb := &mockEmbedder{err: domain.ErrEmbeddingProviderError}
	svc := New(newSource(), plainParser, emb, nil, zap.NewNop())

	_, err := svc.Embed(context.Background(), []corpus.Source{{DOI: "x", Sentences: []string{"s"}}}, corpus.Sentenced)
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestRun_BatchesToSink(t *testing.T) {
	emb := &mockEmbedder{}
	papers := &mockPapers{}
	svc := New(newSource(), plainParser, emb, papers, zap.NewNop()).WithBatchSize(1)

	var batches [][]corpus.Document
	sink := SinkFunc(func(_ context.Context, docs []corpus.Document) error {
		batches = append(batches, docs)
		return nil
	})

	stats, err := svc.Run(context.Background(), Params{}, corpus.Sentenced, sink)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	if batches[0][0].DOI != "10.1/a" || batches[1][0].DOI != "10.1/d" {
		t.Errorf("batches out of order: %v, %v", batches[0][0].DOI, batches[1][0].DOI)
	}
	if stats.Documents != 2 || stats.Units != 3 {
		t.Errorf("expected 2 documents and 3 units, got %+v", stats)
	}
	if len(papers.saved) != 2 {
		t.Errorf("expected 2 saved papers, got %d", len(papers.saved))
	}
}

func TestRun_SinkErrorAborts(t *testing.T) {
	svc := New(newSource(), plainParser, &mockEmbedder{}, nil, zap.NewNop()).WithBatchSize(1)
	sinkErr := errors.New("disk full")

	_, err := svc.Run(context.Background(), Params{}, corpus.Sentenced,
		SinkFunc(func(context.Context, []corpus.Document) error { return sinkErr }))
	if !errors.Is(err, sinkErr) {
		t.Fatalf("expected sink error, got %v", err)
	}
}
