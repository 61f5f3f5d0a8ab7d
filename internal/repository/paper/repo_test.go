package paper

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/kailas-cloud/citesearch/internal/db"
	"github.com/kailas-cloud/citesearch/internal/domain"
	dompaper "github.com/kailas-cloud/citesearch/internal/domain/paper"
)

type mockStore struct {
	jsonSetMultiFn func(ctx context.Context, items []db.JSONSetItem) error
	jsonGetFn      func(ctx context.Context, key string, paths ...string) ([]byte, error)
	delFn          func(ctx context.Context, keys ...string) error
}

func (m *mockStore) JSONSetMulti(ctx context.Context, items []db.JSONSetItem) error {
	if m.jsonSetMultiFn != nil {
		return m.jsonSetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error) {
	if m.jsonGetFn != nil {
		return m.jsonGetFn(ctx, key, paths...)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	if m.delFn != nil {
		return m.delFn(ctx, keys...)
	}
	return nil
}

func TestSave(t *testing.T) {
	ms := &mockStore{}
	var got []db.JSONSetItem
	ms.jsonSetMultiFn = func(_ context.Context, items []db.JSONSetItem) error {
		got = items
		return nil
	}
	repo := New(ms)

	err := repo.Save(context.Background(), []dompaper.Paper{{DOI: "10.1/a", Title: "T", CitedBy: 3}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Key != "citesearch:paper:10.1/a" {
		t.Fatalf("unexpected items: %+v", got)
	}
	var back dompaper.Paper
	if err := json.Unmarshal(got[0].Data, &back); err != nil || back.CitedBy != 3 {
		t.Fatalf("stored data = %s (%v)", got[0].Data, err)
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"root object", `{"doi":"10.1/a","title":"Graphene"}`},
		{"path array", `[{"doi":"10.1/a","title":"Graphene"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := New(&mockStore{jsonGetFn: func(_ context.Context, key string, _ ...string) ([]byte, error) {
				if key != "citesearch:paper:10.1/a" {
					t.Errorf("unexpected key %q", key)
				}
				return []byte(tt.data), nil
			}})
			p, err := repo.Get(context.Background(), "https://doi.org/10.1/A")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Title != "Graphene" {
				t.Errorf("title = %q", p.Title)
			}
		})
	}
}

func TestGet_NotFound(t *testing.T) {
	repo := New(&mockStore{})
	_, err := repo.Get(context.Background(), "10.1/missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGet_Unavailable(t *testing.T) {
	repo := New(&mockStore{jsonGetFn: func(_ context.Context, _ string, _ ...string) ([]byte, error) {
		return nil, &db.Error{Op: db.OpJSONGet, Err: db.ErrUnavailable}
	}})
	_, err := repo.Get(context.Background(), "10.1/a")
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	var got []string
	repo := New(&mockStore{delFn: func(_ context.Context, keys ...string) error {
		got = keys
		return nil
	}})
	if err := repo.Delete(context.Background(), "10.1/A", "10.1/b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "citesearch:paper:10.1/a" {
		t.Fatalf("keys = %v", got)
	}
}
