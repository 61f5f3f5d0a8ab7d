package citesearch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/citesearch/internal/db"
	dbRedis "github.com/kailas-cloud/citesearch/internal/db/redis"
	dompaper "github.com/kailas-cloud/citesearch/internal/domain/paper"
	"github.com/kailas-cloud/citesearch/internal/domain/search/result"
	paperrepo "github.com/kailas-cloud/citesearch/internal/repository/paper"
	sentencerepo "github.com/kailas-cloud/citesearch/internal/repository/sentence"
	healthuc "github.com/kailas-cloud/citesearch/internal/usecase/health"
	searchuc "github.com/kailas-cloud/citesearch/internal/usecase/search"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultIndexName        = "citesearch-sentences"
	defaultDimensions       = 384
)

type searchUseCase interface {
	ByText(ctx context.Context, text string, topK int) ([]result.Result, error)
	ByDOI(ctx context.Context, doi string, size int) ([]result.Result, error)
	Paper(ctx context.Context, doi string) (dompaper.Paper, error)
}

// Client is the citesearch SDK entry point.
type Client struct {
	conn      db.Conn
	searchSvc searchUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client and connects to the database.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		indexName:  defaultIndexName,
		dimensions: defaultDimensions,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("citesearch: database address required (use WithRedis or WithCluster)")
	}
	if cfg.embedder == nil {
		return nil, errors.New("citesearch: embedder required (use WithEmbedder)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Username: cfg.username,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("citesearch: create store: %w", err)
	}
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("citesearch: database not ready: %w", err)
	}

	return wireClient(db.Connected(store), store, cfg, obs), nil
}

func wireClient(conn db.Conn, store *dbRedis.Store, cfg *clientConfig, obs *observer) *Client {
	sentences := sentencerepo.New(conn, sentencerepo.Config{
		IndexName: cfg.indexName,
		Dim:       cfg.dimensions,
		EFRuntime: cfg.efRuntime,
	})
	papers := paperrepo.New(store)
	emb := &embedderAdapter{inner: cfg.embedder, prefix: cfg.prefix}

	return &Client{
		conn:      conn,
		searchSvc: searchuc.New(sentences, papers, emb),
		healthSvc: healthuc.New(conn, sentences, nil),
		obs:       obs,
	}
}

// Close releases all resources.
func (c *Client) Close() {
	c.conn.Close()
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.conn.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Search embeds text and returns the topK best-matching citing sentences,
// at most one per paper, best first.
func (c *Client) Search(ctx context.Context, text string, topK int) (hits []Hit, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	res, err := c.searchSvc.ByText(ctx, text, topK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return toHits(res), nil
}

// SentencesOf returns up to size indexed sentences of one paper.
func (c *Client) SentencesOf(ctx context.Context, doi string, size int) (hits []Hit, err error) {
	start := time.Now()
	defer func() { c.obs.observe("sentences", start, err) }()

	res, err := c.searchSvc.ByDOI(ctx, doi, size)
	if err != nil {
		return nil, fmt.Errorf("sentences of %s: %w", doi, err)
	}
	return toHits(res), nil
}

// Paper returns stored metadata for a DOI.
func (c *Client) Paper(ctx context.Context, doi string) (p Paper, err error) {
	start := time.Now()
	defer func() { c.obs.observe("paper", start, err) }()

	dp, err := c.searchSvc.Paper(ctx, doi)
	if err != nil {
		return Paper{}, fmt.Errorf("paper %s: %w", doi, err)
	}
	return toPaper(dp), nil
}
