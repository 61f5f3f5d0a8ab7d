package wikipedia

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kailas-cloud/citesearch/internal/domain"
)

const exportXML = `<mediawiki xmlns="http://www.mediawiki.org/xml/export-0.11/" version="0.11">
  <siteinfo><sitename>Wikipedia</sitename></siteinfo>
  <page>
    <title>Food science</title>
    <ns>0</ns>
    <revision>
      <id>1</id>
      <text bytes="42" xml:space="preserve">Food is studied.&lt;ref&gt;doi=10.1/x&lt;/ref&gt;</text>
    </revision>
  </page>
</mediawiki>`

const emptyExportXML = `<mediawiki xmlns="http://www.mediawiki.org/xml/export-0.11/" version="0.11">
  <siteinfo><sitename>Wikipedia</sitename></siteinfo>
</mediawiki>`

func newTestClient(url string) *Client {
	return NewClient(WithBaseURL(url), WithRate(0), WithRetries(2, time.Millisecond), WithContact("dev@example.org"))
}

func TestExport_DecodesPagesAndSkipsMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("User-Agent"), "dev@example.org") {
			t.Errorf("user agent lacks contact: %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/xml")
		switch r.URL.Path {
		case "/wiki/Special:Export/Food_science":
			_, _ = w.Write([]byte(exportXML))
		case "/wiki/Special:Export/Nope":
			_, _ = w.Write([]byte(emptyExportXML))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	pages, err := newTestClient(server.URL).Export(context.Background(), []string{"Food science", "Nope"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
	if pages[0].Title != "Food science" {
		t.Errorf("unexpected title %q", pages[0].Title)
	}
	if pages[0].Text != "Food is studied.<ref>doi=10.1/x</ref>" {
		t.Errorf("unexpected text %q", pages[0].Text)
	}
}

func TestExport_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(exportXML))
	}))
	defer server.Close()

	pages, err := newTestClient(server.URL).Export(context.Background(), []string{"Food science"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 1 || calls.Load() != 2 {
		t.Fatalf("expected 1 page after 2 calls, got %d pages, %d calls", len(pages), calls.Load())
	}
}

func TestExport_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Export(context.Background(), []string{"X"})
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single call, got %d", calls.Load())
	}
}

func TestExport_RateLimitedExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Export(context.Background(), []string{"X"})
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestExport_MalformedXML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<mediawiki><page>"))
	}))
	defer server.Close()

	_, err := NewClient(WithBaseURL(server.URL), WithRate(0), WithRetries(0, 0)).
		Export(context.Background(), []string{"X"})
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}
