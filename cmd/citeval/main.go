// Package main provides the citeval CLI: it harvests papers and citation contexts, builds
// embedded corpora and query sets, and scores retrieval against them.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/citesearch/internal/bootstrap"
	"github.com/kailas-cloud/citesearch/internal/config"
	"github.com/kailas-cloud/citesearch/internal/db"
	logpkg "github.com/kailas-cloud/citesearch/internal/logger"
	"github.com/kailas-cloud/citesearch/internal/metrics"
	"github.com/kailas-cloud/citesearch/internal/version"
)

var (
	configPath string
	envName    string
)

// app holds what every subcommand needs once flags are parsed.
var app struct {
	cfg    config.Config
	env    string
	logger *zap.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		// SilenceErrors is set, so cobra leaves printing to us.
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(exitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "citeval",
	Short: "Build citation retrieval corpora and evaluate search over them",
	Long: `citeval runs the offline side of citesearch.

Pipeline:
  harvest   CrossRef journals -> papers (JSON Lines)
  segment   papers -> sentence sources
  embed     sources -> embedded corpus for one title variant
  scrape    Wikipedia index page -> citation context candidates
  queries   candidates + corpus -> embedded query set
  evaluate  corpus + query set -> MAP@K / any@top report
  baseline  sources + query set -> BM25 report
  upload    corpus -> sentence index served by citesearch
  claims    papers -> LLM-extracted claims`,
	Version:           version.Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		if app.logger != nil {
			_ = app.logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file (default: config/<env>.yaml)")
	rootCmd.PersistentFlags().StringVar(&envName, "env", "", "Environment name (default: $ENV or local)")
}

func setup(*cobra.Command, []string) error {
	app.env = envName
	if app.env == "" {
		app.env = config.GetEnv()
	}

	var err error
	if configPath != "" {
		app.cfg, err = config.LoadFile(configPath)
	} else {
		app.cfg, err = config.Load(app.env)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", errConfig, err)
	}

	app.logger, err = logpkg.NewLogger(app.env, app.cfg.Logging.Level, app.cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("%w: %w", errConfig, err)
	}

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterEvalMetrics()
	return nil
}

// cacheConn connects to the store only when the embedding cache is enabled.
func cacheConn(ctx context.Context) db.Conn {
	if !app.cfg.Embedding.CacheEnabled() {
		return db.Unavailable(errors.New("embedding cache disabled"))
	}
	return bootstrap.Connect(ctx, app.cfg.Database, app.logger)
}
