package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/citesearch/internal/config"
	"github.com/kailas-cloud/citesearch/internal/db"
)

func testConfig() config.Config {
	cfg := config.Config{Database: config.DatabaseConfig{Addrs: []string{"localhost:6379"}}}
	cfg.ApplyDefaults()
	return cfg
}

func TestSentenceConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Index.Distance = "ip"
	cfg.Index.HNSWEFRuntime = 50
	cfg.Embedding.Dimensions = 768

	sc, err := SentenceConfig(cfg)
	if err != nil {
		t.Fatalf("SentenceConfig: %v", err)
	}
	if sc.Distance != db.DistanceIP {
		t.Errorf("expected IP distance, got %s", sc.Distance)
	}
	if sc.Dim != 768 || sc.EFRuntime != 50 || sc.M != 16 || sc.BatchSize != 200 {
		t.Errorf("unexpected config %+v", sc)
	}
	if sc.Retry.Attempts != 3 || sc.Retry.Backoff != 500*time.Millisecond {
		t.Errorf("unexpected retry %+v", sc.Retry)
	}
}

func TestSentenceConfig_BadDistance(t *testing.T) {
	cfg := testConfig()
	cfg.Index.Distance = "hamming"
	if _, err := SentenceConfig(cfg); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewEmbedders_Unavailable(t *testing.T) {
	cfg := testConfig()
	cfg.Embedding.QueryPrefix = "query: "
	cfg.Embedding.CacheTTLHours = 24

	emb := NewEmbedders(cfg.Embedding, db.Unavailable(errors.New("down")), zap.NewNop())
	if emb.Query == nil || emb.Document == nil || emb.Health == nil {
		t.Fatalf("incomplete embedders %+v", emb)
	}
	if emb.Query.Model() != cfg.Embedding.Model {
		t.Errorf("expected model %q, got %q", cfg.Embedding.Model, emb.Query.Model())
	}
}

func TestConnect_UnreachableIsUnavailable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn := Connect(ctx, config.DatabaseConfig{
		Addrs:            []string{"127.0.0.1:1"},
		ConnectAttempts:  1,
		ReadinessTimeout: 1,
	}, zap.NewNop())
	if conn.Available() {
		t.Fatal("expected unavailable connection")
	}
	if err := conn.Ping(ctx); !errors.Is(err, db.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}
