// Package crossref is a rate-limited client for the CrossRef REST API: journal discovery,
// cited-by ordered work streams and title lookups.
package crossref

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/citesearch/internal/domain"
	"github.com/kailas-cloud/citesearch/internal/metrics"
	"github.com/kailas-cloud/citesearch/internal/version"
)

const (
	// BaseURL is the public CrossRef REST API.
	BaseURL = "https://api.crossref.org"

	// DefaultRate stays well inside the polite pool allowance.
	DefaultRate = 10.0

	// DefaultRows is the cursor page size.
	DefaultRows = 100

	// DefaultRetries bounds attempts per request after the first.
	DefaultRetries = 4
)

// WorkFields is the fixed field list selected for every work.
var WorkFields = []string{
	"DOI", "abstract", "article-number", "author", "container-title", "group-title",
	"is-referenced-by-count", "issn-type", "issue", "link", "page", "published", "publisher",
	"publisher-location", "short-title", "subject", "subtitle", "title", "translator", "type", "volume",
}

// Client talks to CrossRef.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	mailto     string
	rows       int
	retries    int
	backoff    time.Duration
	logger     *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithMailto identifies the caller for the polite pool.
func WithMailto(addr string) ClientOption {
	return func(c *Client) { c.mailto = addr }
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

// WithRows sets the cursor page size.
func WithRows(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.rows = n
		}
	}
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

// NewClient creates a CrossRef client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRate), 1),
		baseURL:    BaseURL,
		rows:       DefaultRows,
		retries:    DefaultRetries,
		backoff:    time.Second,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-success HTTP reply.
type APIError struct {
	StatusCode int
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("crossref %s: status %d: %s", e.Path, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case e.StatusCode == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	default:
		return domain.ErrUpstream
	}
}

func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// getJSON fetches path?query and decodes the "message" envelope into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if c.mailto != "" {
		if query == nil {
			query = url.Values{}
		}
		query.Set("mailto", c.mailto)
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	backoff := c.backoff
	for attempt := 0; ; attempt++ {
		body, retryAfter, err := c.fetch(ctx, u, path)
		if err == nil {
			env := envelope{Message: out}
			if err := json.Unmarshal(body, &env); err != nil {
				return fmt.Errorf("decode %s: %w: %w", path, domain.ErrUpstream, err)
			}
			if env.Status != "" && env.Status != "ok" {
				return fmt.Errorf("crossref %s: status %q: %w", path, env.Status, domain.ErrUpstream)
			}
			return nil
		}

		var apiErr *APIError
		transient := !errors.As(err, &apiErr) || apiErr.retryable()
		if !transient || attempt >= c.retries || ctx.Err() != nil {
			return err
		}

		wait := max(backoff, retryAfter)
		c.logger.Warn("CrossRef request failed, retrying",
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		backoff *= 2
	}
}

func (c *Client) fetch(ctx context.Context, u, path string) ([]byte, time.Duration, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("crossref", "network_error").Inc()
		return nil, 0, fmt.Errorf("crossref %s: %w: %w", path, domain.ErrUpstream, err)
	}
	defer resp.Body.Close()
	metrics.UpstreamRequestsTotal.WithLabelValues("crossref", strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w: %w", path, domain.ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, retryAfter(resp.Header.Get("Retry-After")), &APIError{
			StatusCode: resp.StatusCode,
			Path:       path,
			Body:       snippet,
		}
	}
	return body, 0, nil
}

func (c *Client) userAgent() string {
	ua := "citesearch/" + version.Version
	if c.mailto != "" {
		ua += " (mailto:" + c.mailto + ")"
	}
	return ua
}

func retryAfter(h string) time.Duration {
	if secs, err := strconv.Atoi(h); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

type envelope struct {
	Status  string `json:"status"`
	Message any    `json:"message"`
}
