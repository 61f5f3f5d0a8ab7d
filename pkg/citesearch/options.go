package citesearch

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	addrs    []string
	username string
	password string

	embedder Embedder
	prefix   string

	indexName  string
	dimensions int
	efRuntime  int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithRedis configures the client to connect to a Redis or Valkey instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithCluster configures several seed addresses and ACL credentials.
func WithCluster(addrs []string, username, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = addrs
		c.username = username
		c.password = password
	})
}

// WithEmbedder sets the query embedding provider. Required.
// It must produce vectors with the model that embedded the indexed corpus.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithQueryPrefix prepends prefix to every query before embedding,
// for models trained with asymmetric instructions.
func WithQueryPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.prefix = prefix
	})
}

// WithIndex names the sentence index and its vector dimension.
// Defaults: "citesearch-sentences", 384.
func WithIndex(name string, dimensions int) Option {
	return optionFunc(func(c *clientConfig) {
		c.indexName = name
		c.dimensions = dimensions
	})
}

// WithEFRuntime sets the HNSW candidate list size used at query time.
func WithEFRuntime(ef int) Option {
	return optionFunc(func(c *clientConfig) {
		c.efRuntime = ef
	})
}

// WithLogger enables structured logging for client operations.
// Pass nil to disable (default).
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
