package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/citesearch/internal/bootstrap"
	"github.com/kailas-cloud/citesearch/internal/config"
	logpkg "github.com/kailas-cloud/citesearch/internal/logger"
	"github.com/kailas-cloud/citesearch/internal/metrics"
	paperrepo "github.com/kailas-cloud/citesearch/internal/repository/paper"
	chiTransport "github.com/kailas-cloud/citesearch/internal/transport/chi"
	"github.com/kailas-cloud/citesearch/internal/version"
	healthuc "github.com/kailas-cloud/citesearch/internal/usecase/health"
	searchuc "github.com/kailas-cloud/citesearch/internal/usecase/search"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting citesearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Register embedding metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()

	// The server starts even when the store is down: search answers 503 and /health reports it.
	ctx := context.Background()
	conn := bootstrap.Connect(ctx, cfg.Database, logger)
	defer conn.Close()

	embedders := bootstrap.NewEmbedders(cfg.Embedding, conn, logger)

	sentences, err := bootstrap.Sentences(cfg, conn)
	if err != nil {
		logger.Fatal("Invalid index config", zap.Error(err))
	}
	if conn.Available() {
		if err := sentences.EnsureIndex(ctx); err != nil {
			logger.Warn("Sentence index not ready", zap.Error(err))
		}
	}

	// Pass a nil interface, not a typed nil pointer, when the store is down.
	var papers searchuc.PaperReader
	if store, err := conn.Store(); err == nil {
		papers = paperrepo.New(store)
	}

	searchSvc := searchuc.New(sentences, papers, embedders.Query)
	healthSvc := healthuc.New(conn, sentences, embedders.Health)

	server := chiTransport.NewServer(searchSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(chiTransport.JSONRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiTransport.RequestLogger(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Mount(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
