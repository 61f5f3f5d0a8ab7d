// Package config loads the YAML configuration shared by the citesearch server and CLI.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the citesearch configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Index      IndexConfig      `yaml:"index"`
	Crossref   CrossrefConfig   `yaml:"crossref"`
	Wikipedia  WikipediaConfig  `yaml:"wikipedia"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	LLM        LLMConfig        `yaml:"llm"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error (default: determined by env)
	Format string `yaml:"format"` // json, console (default: determined by env)
}

// AuthConfig holds API authentication settings. No keys disables auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis/Valkey connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	ConnectAttempts  int      `yaml:"connect_attempts"`
	ConnectBackoffMs int      `yaml:"connect_backoff_ms"`
}

// ReadinessTimeoutDuration returns ReadinessTimeout as a duration.
func (d DatabaseConfig) ReadinessTimeoutDuration() time.Duration {
	return time.Duration(d.ReadinessTimeout) * time.Second
}

// ConnectBackoff returns ConnectBackoffMs as a duration.
func (d DatabaseConfig) ConnectBackoff() time.Duration {
	return time.Duration(d.ConnectBackoffMs) * time.Millisecond
}

// EmbeddingConfig holds the embedding provider settings.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"`
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	Dimensions     int    `yaml:"dimensions"`
	BatchSize      int    `yaml:"batch_size"`
	Concurrency    int    `yaml:"concurrency"`
	CacheTTLHours  int    `yaml:"cache_ttl_hours"` // 0 = no cache, -1 = never expire
	QueryPrefix    string `yaml:"query_prefix"`
	DocumentPrefix string `yaml:"document_prefix"`
}

// CacheTTL returns the embedding cache TTL. Negative means entries never expire.
func (e EmbeddingConfig) CacheTTL() time.Duration {
	if e.CacheTTLHours < 0 {
		return 0
	}
	return time.Duration(e.CacheTTLHours) * time.Hour
}

// CacheEnabled reports whether embeddings are cached in the store.
func (e EmbeddingConfig) CacheEnabled() bool { return e.CacheTTLHours != 0 }

// IndexConfig holds the sentence index layout.
type IndexConfig struct {
	Name            string `yaml:"name"`
	Distance        string `yaml:"distance"` // cosine, ip, l2
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
	HNSWEFRuntime   int    `yaml:"hnsw_ef_runtime"`
	UploadBatchSize int    `yaml:"upload_batch_size"`
}

// CrossrefConfig holds the harvest source settings.
type CrossrefConfig struct {
	BaseURL      string  `yaml:"base_url"`
	Mailto       string  `yaml:"mailto"`
	RateLimit    float64 `yaml:"rate_limit"` // requests per second
	Rows         int     `yaml:"rows"`
	Retries      int     `yaml:"retries"`
	Keyword      string  `yaml:"keyword"`
	MinAbstracts int     `yaml:"min_abstracts"`
	MinCited     int     `yaml:"min_cited"`
	MaxJournals  int     `yaml:"max_journals"`
	MaxPapers    int     `yaml:"max_papers"`
}

// WikipediaConfig holds the citation-context source settings.
type WikipediaConfig struct {
	BaseURL   string  `yaml:"base_url"`
	RateLimit float64 `yaml:"rate_limit"`
	Contact   string  `yaml:"contact"`
}

// EvaluationConfig holds the retrieval evaluation settings.
type EvaluationConfig struct {
	Ks      []int  `yaml:"ks"`
	Tops    []int  `yaml:"tops"`
	MinLen  int    `yaml:"min_len"`
	MaxLen  int    `yaml:"max_len"`
	Variant string `yaml:"variant"`
	Metric  string `yaml:"metric"` // cosine, ip
	Workers int    `yaml:"workers"`
}

// LLMConfig holds the chat model used for claim extraction.
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
	Claims      int     `yaml:"claims"`
	Concurrency int     `yaml:"concurrency"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
// A .env file in the working directory, if present, is loaded before ${VAR} expansion.
func LoadFile(configPath string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands environment variables in data, decodes it, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.ConnectAttempts <= 0 {
		c.Database.ConnectAttempts = 3
	}
	if c.Database.ConnectBackoffMs <= 0 {
		c.Database.ConnectBackoffMs = 500
	}
	c.applyEmbeddingDefaults()
	if c.Index.Distance == "" {
		c.Index.Distance = "cosine"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Index.UploadBatchSize <= 0 {
		c.Index.UploadBatchSize = 200
	}
	c.applySourceDefaults()
	c.applyEvaluationDefaults()
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 512
	}
	if c.LLM.Claims <= 0 {
		c.LLM.Claims = 3
	}
	if c.LLM.Concurrency <= 0 {
		c.LLM.Concurrency = 4
	}
}

func (c *Config) applyEmbeddingDefaults() {
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 384
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 256
	}
	if c.Embedding.Concurrency <= 0 {
		c.Embedding.Concurrency = 2
	}
}

func (c *Config) applySourceDefaults() {
	if c.Crossref.RateLimit <= 0 {
		c.Crossref.RateLimit = 10
	}
	if c.Crossref.Rows <= 0 {
		c.Crossref.Rows = 1000
	}
	if c.Crossref.Retries <= 0 {
		c.Crossref.Retries = 3
	}
	if c.Crossref.MinAbstracts <= 0 {
		c.Crossref.MinAbstracts = 1000
	}
	if c.Crossref.MinCited <= 0 {
		c.Crossref.MinCited = 30
	}
	if c.Wikipedia.RateLimit <= 0 {
		c.Wikipedia.RateLimit = 5
	}
}

func (c *Config) applyEvaluationDefaults() {
	if len(c.Evaluation.Ks) == 0 {
		c.Evaluation.Ks = []int{5, 10, 20}
	}
	if len(c.Evaluation.Tops) == 0 {
		c.Evaluation.Tops = []int{1, 3, 5}
	}
	if c.Evaluation.MinLen <= 0 {
		c.Evaluation.MinLen = 75
	}
	if c.Evaluation.MaxLen <= 0 {
		c.Evaluation.MaxLen = 175
	}
	if c.Evaluation.Variant == "" {
		c.Evaluation.Variant = "titlesentenced"
	}
	if c.Evaluation.Metric == "" {
		c.Evaluation.Metric = "cosine"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Embedding.Provider != "openai" {
		return fmt.Errorf("embedding.provider must be \"openai\", got %q", c.Embedding.Provider)
	}
	switch strings.ToLower(c.Index.Distance) {
	case "cosine", "ip", "inner_product", "l2":
	default:
		return fmt.Errorf("index.distance must be cosine, ip or l2, got %q", c.Index.Distance)
	}
	if c.Evaluation.MinLen > c.Evaluation.MaxLen {
		return fmt.Errorf("evaluation.min_len %d exceeds evaluation.max_len %d",
			c.Evaluation.MinLen, c.Evaluation.MaxLen)
	}
	for _, v := range append(append([]int{}, c.Evaluation.Ks...), c.Evaluation.Tops...) {
		if v <= 0 {
			return fmt.Errorf("evaluation cutoffs must be positive, got %d", v)
		}
	}
	for i, key := range c.Auth.APIKeys {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("auth.api_keys[%d] is empty", i)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
