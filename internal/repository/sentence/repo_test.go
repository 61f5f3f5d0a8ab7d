package sentence

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/citesearch/internal/db"
	"github.com/kailas-cloud/citesearch/internal/domain"
	"github.com/kailas-cloud/citesearch/internal/domain/corpus"
)

func TestDefinition(t *testing.T) {
	repo, _ := newTestRepo(t, 384)
	def, err := repo.Definition()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.Name != "citesearch:sentences" || def.Prefixes[0] != Prefix {
		t.Fatalf("unexpected definition: %s", def)
	}
	vec := def.Fields[len(def.Fields)-1]
	if vec.Type != db.IndexFieldVector || vec.VectorDim != 384 || vec.VectorDistance != db.DistanceCosine {
		t.Errorf("unexpected vector field: %+v", vec)
	}
}

func TestEnsureIndex_ExistsIsOK(t *testing.T) {
	repo, ms := newTestRepo(t, 4)
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error {
		return db.ErrIndexExists
	}
	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureIndex_RetriesTransportErrors(t *testing.T) {
	repo, ms := newTestRepo(t, 4)
	calls := 0
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error {
		calls++
		if calls == 1 {
			return &db.Error{Op: db.OpCreateIndex, Err: db.ErrUnavailable}
		}
		return nil
	}
	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestEnsureIndex_GivesUp(t *testing.T) {
	repo, ms := newTestRepo(t, 4)
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error {
		return db.ErrUnavailable
	}
	err := repo.EnsureIndex(context.Background())
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestReset_IgnoresMissingIndex(t *testing.T) {
	repo, ms := newTestRepo(t, 4)
	ms.dropIndexFn = func(_ context.Context, _ string) error { return db.ErrIndexNotFound }
	created := false
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error {
		created = true
		return nil
	}
	if err := repo.Reset(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Fatal("expected index to be recreated")
	}
}

func TestUpload_Batches(t *testing.T) {
	repo, ms := newTestRepo(t, 2)
	var batches [][]db.HashSetItem
	ms.hsetMultiFn = func(_ context.Context, items []db.HashSetItem) error {
		batches = append(batches, append([]db.HashSetItem(nil), items...))
		return nil
	}

	docs := []corpus.Document{
		{DOI: "10.1/a", Units: []string{"a0", "a1", "a2"}, Vectors: [][]float32{{1, 0}, {0, 1}, {1, 1}}},
		{DOI: "10.1/b", Units: []string{"b0"}, Vectors: [][]float32{{1, 0}}},
	}
	n, err := repo.Upload(context.Background(), docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 sentences written, got %d", n)
	}
	if len(batches) != 2 || len(batches[0]) != 2 || len(batches[1]) != 2 {
		t.Fatalf("expected two batches of 2, got %v", batches)
	}
	first := batches[0][0]
	if first.Key != "citesearch:sent:10.1/a:0" {
		t.Errorf("key = %q", first.Key)
	}
	if first.Fields["doi"] != "10.1/a" || first.Fields["sentence"] != "a0" || first.Fields["position"] != "0" {
		t.Errorf("fields = %v", first.Fields)
	}
	if got := db.DecodeVector(first.Fields["vector"]); len(got) != 2 || got[0] != 1 {
		t.Errorf("vector = %v", got)
	}
}

func TestUpload_DimensionMismatch(t *testing.T) {
	repo, _ := newTestRepo(t, 3)
	docs := []corpus.Document{{DOI: "x", Units: []string{"u"}, Vectors: [][]float32{{1, 2}}}}
	_, err := repo.Upload(context.Background(), docs)
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestUpload_StoreError(t *testing.T) {
	repo, ms := newTestRepo(t, 1)
	ms.hsetMultiFn = func(_ context.Context, _ []db.HashSetItem) error {
		return &db.Error{Op: db.OpHSet, Err: db.ErrUnavailable}
	}
	docs := []corpus.Document{{DOI: "x", Units: []string{"u"}, Vectors: [][]float32{{1}}}}
	_, err := repo.Upload(context.Background(), docs)
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestKNN(t *testing.T) {
	repo, ms := newTestRepo(t, 4)
	var got *db.KNNQuery
	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		got = q
		return &db.SearchResult{Total: 2, Entries: []db.SearchEntry{
			{Key: Key("10.1/a", 3), Score: 0.9, Fields: map[string]string{"doi": "10.1/a", "sentence": "S1."}},
			{Key: Key("10.1/b", 0), Score: 0.7, Fields: map[string]string{"sentence": "S2."}},
		}}, nil
	}

	res, err := repo.KNN(context.Background(), testVector(4), 2, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.K != 2 || got.EFRuntime != 50 || got.Field != "vector" {
		t.Errorf("unexpected query: %+v", got)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 results, got %d", len(res))
	}
	if res[0].DOI() != "10.1/a" || res[0].Score() != 0.9 || res[0].Sentence() != "S1." {
		t.Errorf("unexpected first hit: %+v", res[0])
	}
	if res[1].DOI() != "10.1/b" {
		t.Errorf("expected DOI recovered from key, got %q", res[1].DOI())
	}
}

func TestKNN_WrongDimension(t *testing.T) {
	repo, _ := newTestRepo(t, 4)
	_, err := repo.KNN(context.Background(), testVector(3), 5, 0)
	var dimErr *domain.DimensionError
	if !errors.As(err, &dimErr) || dimErr.Want != 4 || dimErr.Got != 3 {
		t.Fatalf("expected DimensionError{4,3}, got %v", err)
	}
}

func TestByDOI(t *testing.T) {
	repo, ms := newTestRepo(t, 4)
	var got *db.ListQuery
	ms.searchListFn = func(_ context.Context, q *db.ListQuery) (*db.SearchResult, error) {
		got = q
		return &db.SearchResult{Total: 1, Entries: []db.SearchEntry{
			{Key: Key("10.1/a-b", 0), Fields: map[string]string{"doi": "10.1/a-b", "sentence": "First."}},
		}}, nil
	}

	res, err := repo.ByDOI(context.Background(), "10.1/a-b", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Query != `@doi:{10\.1\/a\-b}` || got.SortBy != "position" || got.Limit != 10 {
		t.Errorf("unexpected query: %+v", got)
	}
	if len(res) != 1 || res[0].Sentence() != "First." {
		t.Errorf("unexpected results: %v", res)
	}
}

func TestUnavailableConn(t *testing.T) {
	repo := New(db.Unavailable(errors.New("refused")), Config{Dim: 4})
	ctx := context.Background()

	if _, err := repo.KNN(ctx, testVector(4), 5, 0); !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Errorf("KNN: expected ErrIndexUnavailable, got %v", err)
	}
	if _, err := repo.ByDOI(ctx, "x", 5); !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Errorf("ByDOI: expected ErrIndexUnavailable, got %v", err)
	}
	if err := repo.HealthCheck(ctx); !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Errorf("HealthCheck: expected ErrIndexUnavailable, got %v", err)
	}
}

func TestHealthCheck_MissingIndex(t *testing.T) {
	repo, ms := newTestRepo(t, 4)
	ms.indexExistsFn = func(_ context.Context, _ string) (bool, error) { return false, nil }
	if err := repo.HealthCheck(context.Background()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCount(t *testing.T) {
	repo, ms := newTestRepo(t, 4)
	ms.searchCountFn = func(_ context.Context, index, query string) (int, error) {
		if index != "citesearch:sentences" || query != "*" {
			t.Errorf("unexpected args %q %q", index, query)
		}
		return 7, nil
	}
	n, err := repo.Count(context.Background())
	if err != nil || n != 7 {
		t.Fatalf("Count() = %d, %v", n, err)
	}
}
