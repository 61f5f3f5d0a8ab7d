package crossref

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kailas-cloud/citesearch/internal/domain"
	"github.com/kailas-cloud/citesearch/internal/domain/paper"
)

func newTestClient(url string) *Client {
	return NewClient(
		WithBaseURL(url),
		WithRate(0),
		WithRows(2),
		WithRetries(2, time.Millisecond),
		WithMailto("dev@example.org"),
	)
}

func writeMessage(t *testing.T, w http.ResponseWriter, msg any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"status": "ok", "message": msg}); err != nil {
		t.Errorf("encode: %v", err)
	}
}

func journalItem(issn string, dois int, coverage float64) map[string]any {
	return map[string]any{
		"title":         "J " + issn,
		"issn-type":     []map[string]string{{"value": "print-" + issn, "type": "print"}, {"value": issn, "type": "electronic"}},
		"counts":        map[string]int{"total-dois": dois},
		"coverage-type": map[string]any{"all": map[string]float64{"abstracts": coverage}},
	}
}

func TestJournals_PaginatesAndFilters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/journals" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("mailto") != "dev@example.org" {
			t.Errorf("missing mailto")
		}
		switch r.URL.Query().Get("cursor") {
		case "*":
			writeMessage(t, w, map[string]any{
				"items-per-page": 2, "next-cursor": "c2",
				"items": []any{journalItem("1111", 10000, 0.5), journalItem("2222", 100, 0.5)},
			})
		case "c2":
			writeMessage(t, w, map[string]any{
				"items-per-page": 2, "next-cursor": "c3",
				"items": []any{journalItem("3333", 4000, 0.9)},
			})
		default:
			t.Errorf("short page must end pagination, got cursor %q", r.URL.Query().Get("cursor"))
		}
	}))
	defer server.Close()

	var issns []string
	for issn, err := range newTestClient(server.URL).Journals(context.Background(), "food", 1000) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		issns = append(issns, issn)
	}
	if !slices.Equal(issns, []string{"1111", "3333"}) {
		t.Fatalf("issns = %v", issns)
	}
}

func workItem(doi string, cited int) map[string]any {
	return map[string]any{
		"DOI":                    doi,
		"title":                  []string{"Title of <i>" + doi + "</i>"},
		"abstract":               "<jats:p>Abstract of " + doi + ".</jats:p>",
		"is-referenced-by-count": cited,
		"container-title":        []string{"Food Chem"},
		"author":                 []map[string]string{{"given": "Ada", "family": "Lovelace"}},
		"published":              map[string]any{"date-parts": [][]int{{2020, 5}}},
		"issn-type":              []map[string]string{{"value": "0000-1111", "type": "electronic"}},
	}
}

func TestWorks_StopsAtCitationFloor(t *testing.T) {
	var pages atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages.Add(1)
		q := r.URL.Query()
		if q.Get("filter") != "issn:0000-1111,type:journal-article,has-abstract:true" {
			t.Errorf("filter = %q", q.Get("filter"))
		}
		if q.Get("sort") != "is-referenced-by-count" || !strings.Contains(q.Get("select"), "is-referenced-by-count") {
			t.Errorf("unexpected query %v", q)
		}
		switch q.Get("cursor") {
		case "*":
			writeMessage(t, w, map[string]any{
				"items-per-page": 2, "next-cursor": "c2",
				"items": []any{workItem("10.1/a", 500), workItem("10.1/b", 300)},
			})
		default:
			writeMessage(t, w, map[string]any{
				"items-per-page": 2, "next-cursor": "c3",
				"items": []any{workItem("10.1/c", 100), workItem("10.1/d", 10)},
			})
		}
	}))
	defer server.Close()

	var got []paper.Paper
	for p, err := range newTestClient(server.URL).Works(context.Background(), "0000-1111", 50) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, p)
	}
	if len(got) != 3 || got[2].DOI != "10.1/c" {
		t.Fatalf("expected a, b, c, got %+v", got)
	}
	if pages.Load() != 2 {
		t.Errorf("expected 2 page fetches, got %d", pages.Load())
	}
	p := got[0]
	if p.Title != "Title of 10.1/a" || p.Journal != "Food Chem" || p.CitedBy != 500 {
		t.Errorf("unexpected mapping: %+v", p)
	}
	if p.Published.Year() != 2020 || p.Published.Month() != time.May {
		t.Errorf("published = %v", p.Published)
	}
	if len(p.Authors) != 1 || p.Authors[0].Name() != "Ada Lovelace" || p.ISSN != "0000-1111" {
		t.Errorf("unexpected authors/issn: %+v", p)
	}
}

func TestWorks_PageErrorEndsStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad filter", http.StatusBadRequest)
	}))
	defer server.Close()

	var errs int
	for _, err := range newTestClient(server.URL).Works(context.Background(), "x", 0) {
		if err == nil {
			t.Fatal("expected only an error")
		}
		if !errors.Is(err, domain.ErrUpstream) {
			t.Errorf("expected ErrUpstream, got %v", err)
		}
		errs++
	}
	if errs != 1 {
		t.Fatalf("expected exactly one error, got %d", errs)
	}
}

func TestGetJSON_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeMessage(t, w, map[string]any{"title": []string{"Recovered"}})
	}))
	defer server.Close()

	title, err := newTestClient(server.URL).Title(context.Background(), "10.1/a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if title != "Recovered" || calls.Load() != 3 {
		t.Fatalf("title=%q calls=%d", title, calls.Load())
	}
}

func TestGetJSON_RateLimitedGivesUp(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Title(context.Background(), "10.1/a")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 1 try + 2 retries, got %d", calls.Load())
	}
}

func TestTitle_Sentinels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/works/10.1/missing":
			http.Error(w, "Resource not found.", http.StatusNotFound)
		case "/works/10.1/untitled":
			writeMessage(t, w, map[string]any{"DOI": "10.1/untitled"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	for _, doi := range []string{"10.1/missing", "10.1/untitled"} {
		if _, err := c.Title(context.Background(), doi); !errors.Is(err, domain.ErrNoTitle) {
			t.Errorf("%s: expected ErrNoTitle, got %v", doi, err)
		}
	}
}

func TestNextCursor(t *testing.T) {
	if nextCursor("n", 20, 20) != "n" {
		t.Error("full page should continue")
	}
	if nextCursor("n", 5, 20) != "" || nextCursor("n", 0, 0) != "" {
		t.Error("short or empty page should stop")
	}
}
