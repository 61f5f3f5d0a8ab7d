// Package wikipedia fetches article wikitext via Special:Export and extracts citation
// contexts (citing sentence + cited DOI) from it.
package wikipedia

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/citesearch/internal/domain"
	"github.com/kailas-cloud/citesearch/internal/metrics"
	"github.com/kailas-cloud/citesearch/internal/version"
)

// BaseURL is English Wikipedia.
const BaseURL = "https://en.wikipedia.org"

// Page is one exported article.
type Page struct {
	Title string
	Text  string
}

// Client fetches exports one title at a time under a rate limit.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	contact    string
	retries    int
	backoff    time.Duration
	logger     *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithRate sets requests per second. Non-positive disables limiting.
func WithRate(rps float64) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithContact adds a contact address to the user agent, as Wikimedia's policy asks.
func WithContact(addr string) ClientOption {
	return func(c *Client) { c.contact = addr }
}

// WithRetries sets retry count and initial backoff.
func WithRetries(n int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.retries = max(n, 0)
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a Wikipedia export client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(5), 1),
		baseURL:    BaseURL,
		retries:    3,
		backoff:    time.Second,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type exportDoc struct {
	Pages []struct {
		Title    string `xml:"title"`
		Revision struct {
			Text string `xml:"text"`
		} `xml:"revision"`
	} `xml:"page"`
}

// Export returns the latest revision text of each title, in order. Titles without a page
// are skipped; any failed fetch aborts the export.
func (c *Client) Export(ctx context.Context, titles []string) ([]Page, error) {
	out := make([]Page, 0, len(titles))
	for _, title := range titles {
		doc, err := c.export(ctx, title)
		if err != nil {
			return nil, err
		}
		if len(doc.Pages) == 0 {
			c.logger.Warn("Article not found", zap.String("title", title))
			continue
		}
		for _, p := range doc.Pages {
			out = append(out, Page{Title: p.Title, Text: p.Revision.Text})
		}
	}
	return out, nil
}

func (c *Client) export(ctx context.Context, title string) (*exportDoc, error) {
	u := c.baseURL + "/wiki/Special:Export/" + url.PathEscape(strings.ReplaceAll(title, " ", "_"))

	backoff := c.backoff
	for attempt := 0; ; attempt++ {
		doc, status, err := c.fetch(ctx, u)
		if err == nil {
			return doc, nil
		}
		transient := status == 0 || status == http.StatusTooManyRequests || status >= 500
		if !transient || attempt >= c.retries || ctx.Err() != nil {
			return nil, fmt.Errorf("export %q: %w", title, err)
		}
		c.logger.Warn("Wikipedia export failed, retrying",
			zap.String("title", title), zap.Int("attempt", attempt+1), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (c *Client) fetch(ctx context.Context, u string) (*exportDoc, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("rate limiter: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	ua := "citesearch/" + version.Version
	if c.contact != "" {
		ua += " (" + c.contact + ")"
	}
	req.Header.Set("User-Agent", ua)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("wikipedia", "network_error").Inc()
		return nil, 0, fmt.Errorf("%w: %w", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()
	metrics.UpstreamRequestsTotal.WithLabelValues("wikipedia", strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, resp.StatusCode, fmt.Errorf("status %d: %w", resp.StatusCode, domain.ErrRateLimited)
		}
		return nil, resp.StatusCode, fmt.Errorf("status %d: %w", resp.StatusCode, domain.ErrUpstream)
	}

	var doc exportDoc
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode export: %w: %w", domain.ErrUpstream, err)
	}
	return &doc, resp.StatusCode, nil
}
