package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/citesearch/internal/bootstrap"
	"github.com/kailas-cloud/citesearch/internal/domain/corpus"
	"github.com/kailas-cloud/citesearch/internal/domain/queryset"
	"github.com/kailas-cloud/citesearch/internal/domain/search/engine"
	"github.com/kailas-cloud/citesearch/internal/repository/datafile"
	evaluateuc "github.com/kailas-cloud/citesearch/internal/usecase/evaluate"
)

var (
	evalCorpus  string
	evalQueries string
	evalOut     string

	baselineSources string
	baselineQueries string
	baselineOut     string
)

func init() {
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(baselineCmd)

	evaluateCmd.Flags().StringVar(&evalCorpus, "corpus", "corpus.json", "Embedded corpus file")
	evaluateCmd.Flags().StringVar(&evalQueries, "queries", "queries.json", "Query set file")
	evaluateCmd.Flags().StringVarP(&evalOut, "out", "o", "report.json", "Output report file")

	baselineCmd.Flags().StringVar(&baselineSources, "sources", "sources.jsonl", "Sources file (JSON Lines)")
	baselineCmd.Flags().StringVar(&baselineQueries, "queries", "queries.json", "Query set file")
	baselineCmd.Flags().StringVarP(&baselineOut, "out", "o", "baseline.json", "Output report file")
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score dense retrieval of the query set against the corpus",
	Long: `Evaluate ranks every query against every corpus unit by similarity, keeps the first
hit per DOI and reports average precision at each of evaluation.ks and whether any relevant
DOI appears within each of evaluation.tops. Queries saved without vectors are embedded
first with the query-side embedder.`,
	RunE: runEvaluate,
}

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Score BM25 retrieval of the query set against whole abstracts",
	RunE:  runBaseline,
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	c, err := datafile.LoadCorpus(evalCorpus)
	if err != nil {
		return err
	}
	set, err := datafile.LoadQuerySet(evalQueries)
	if err != nil {
		return err
	}
	if !set.Embedded() {
		if set, err = embedQueries(ctx, set); err != nil {
			return err
		}
	}

	metric, err := engine.ParseMetric(app.cfg.Evaluation.Metric)
	if err != nil {
		return fmt.Errorf("%w: %w", errConfig, err)
	}
	opts := []engine.Option{engine.WithMetric(metric)}
	if app.cfg.Evaluation.Workers > 0 {
		opts = append(opts, engine.WithWorkers(app.cfg.Evaluation.Workers))
	}

	run, err := newEvaluateService().Dense(ctx, c, set, opts...)
	if err != nil {
		return err
	}
	return writeRun(run, evalOut)
}

func runBaseline(cmd *cobra.Command, _ []string) error {
	dtos, err := datafile.Slice(datafile.ReadLines[datafile.SourceDTO](baselineSources))
	if err != nil {
		return fmt.Errorf("read sources: %w", err)
	}
	sources := make([]corpus.Source, len(dtos))
	for i, d := range dtos {
		sources[i] = d.Source()
	}
	set, err := datafile.LoadQuerySet(baselineQueries)
	if err != nil {
		return err
	}

	run, err := newEvaluateService().Baseline(cmd.Context(), sources, set)
	if err != nil {
		return err
	}
	return writeRun(run, baselineOut)
}

func embedQueries(ctx context.Context, set *queryset.Set) (*queryset.Set, error) {
	conn := cacheConn(ctx)
	defer conn.Close()
	embedders := bootstrap.NewEmbedders(app.cfg.Embedding, conn, app.logger)
	return set.Embed(ctx, embedders.Query)
}

func writeRun(run *evaluateuc.Run, out string) error {
	if err := datafile.WriteJSON(out, run.Report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	app.logger.Info("Report written",
		zap.String("run_id", run.ID.String()),
		zap.String("ranker", run.Ranker),
		zap.String("out", out),
	)
	return nil
}
