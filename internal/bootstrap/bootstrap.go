// Package bootstrap assembles the store connection, embedder chain and sentence index from
// configuration. Both binaries share it as their composition root.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/citesearch/internal/config"
	"github.com/kailas-cloud/citesearch/internal/db"
	dbRedis "github.com/kailas-cloud/citesearch/internal/db/redis"
	"github.com/kailas-cloud/citesearch/internal/domain"
	"github.com/kailas-cloud/citesearch/internal/metrics"
	"github.com/kailas-cloud/citesearch/internal/repository/embcache"
	sentencerepo "github.com/kailas-cloud/citesearch/internal/repository/sentence"
	openaiEmb "github.com/kailas-cloud/citesearch/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/citesearch/internal/usecase/embedding"
)

// Connect opens the Redis/Valkey store with the configured retry policy. It never fails;
// the returned connection may be Unavailable.
func Connect(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) db.Conn {
	open := func() (db.Store, error) {
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	conn := db.Connect(ctx, open, db.RetryPolicy{
		Attempts:     cfg.ConnectAttempts,
		ReadyTimeout: cfg.ReadinessTimeoutDuration(),
		Backoff:      cfg.ConnectBackoff(),
	})
	if conn.Available() {
		logger.Info("Connected to database", zap.Strings("addrs", cfg.Addrs))
	} else {
		_, err := conn.Store()
		logger.Warn("Database unavailable", zap.Strings("addrs", cfg.Addrs), zap.Error(err))
	}
	return conn
}

// Embedders holds the query and document sides of one embedding model.
type Embedders struct {
	Query    *domain.PrefixEmbedder
	Document *domain.PrefixEmbedder
	Health   domain.HealthChecker
}

// NewEmbedders assembles the decorator chain:
// OpenAI -> Cached (when enabled and the store is up) -> Instrumented -> Prefix.
// The prefix is outermost so cache keys include it.
func NewEmbedders(cfg config.EmbeddingConfig, conn db.Conn, logger *zap.Logger) Embedders {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   cfg.Provider,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if store, err := conn.Store(); err == nil && cfg.CacheEnabled() {
		embedder = embcache.New(base, store, cfg.CacheTTL(), metrics.EmbeddingCacheTotal, logger)
	}

	instrumented := embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Provider, logger,
		embeddinguc.WithMaxBatchSize(cfg.BatchSize),
		embeddinguc.WithConcurrency(cfg.Concurrency),
		embeddinguc.WithDimensions(cfg.Dimensions),
	)

	logger.Info("Embedders created",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.Int("dimensions", cfg.Dimensions),
	)

	return Embedders{
		Query:    domain.NewPrefixEmbedder(instrumented, cfg.QueryPrefix),
		Document: domain.NewPrefixEmbedder(instrumented, cfg.DocumentPrefix),
		Health:   instrumented,
	}
}

// SentenceConfig maps configuration onto the sentence index layout.
func SentenceConfig(cfg config.Config) (sentencerepo.Config, error) {
	distance, err := db.ParseDistance(cfg.Index.Distance)
	if err != nil {
		return sentencerepo.Config{}, fmt.Errorf("index distance: %w", err)
	}
	return sentencerepo.Config{
		IndexName:   cfg.Index.Name,
		Dim:         cfg.Embedding.Dimensions,
		Distance:    distance,
		M:           cfg.Index.HNSWM,
		EFConstruct: cfg.Index.HNSWEFConstruct,
		EFRuntime:   cfg.Index.HNSWEFRuntime,
		BatchSize:   cfg.Index.UploadBatchSize,
		Retry: db.RetryPolicy{
			Attempts: cfg.Database.ConnectAttempts,
			Backoff:  cfg.Database.ConnectBackoff(),
		},
	}, nil
}

// Sentences builds the sentence index repository over conn.
func Sentences(cfg config.Config, conn db.Conn) (*sentencerepo.Repo, error) {
	sc, err := SentenceConfig(cfg)
	if err != nil {
		return nil, err
	}
	return sentencerepo.New(conn, sc), nil
}
