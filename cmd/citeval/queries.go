package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/citesearch/internal/bootstrap"
	"github.com/kailas-cloud/citesearch/internal/domain/eval"
	"github.com/kailas-cloud/citesearch/internal/domain/queryset"
	"github.com/kailas-cloud/citesearch/internal/repository/datafile"
	evaluateuc "github.com/kailas-cloud/citesearch/internal/usecase/evaluate"
)

var (
	queriesCandidates string
	queriesCorpus     string
	queriesOut        string
)

func init() {
	rootCmd.AddCommand(queriesCmd)

	queriesCmd.Flags().StringVar(&queriesCandidates, "candidates", "candidates.jsonl", "Input candidates file (JSON Lines)")
	queriesCmd.Flags().StringVar(&queriesCorpus, "corpus", "corpus.json", "Corpus the queries are evaluated against")
	queriesCmd.Flags().StringVarP(&queriesOut, "out", "o", "queries.json", "Output query set file")
}

var queriesCmd = &cobra.Command{
	Use:   "queries",
	Short: "Build an embedded query set from citation contexts",
	Long: `Queries keeps candidates whose length is within evaluation.min_len..max_len, that
contain no markup leftovers and that cite a DOI present in the corpus. Identical texts are
merged with the union of their DOIs. The accepted texts are embedded with the query-side
embedder, which must use the corpus model.`,
	RunE: runQueries,
}

func newEvaluateService() *evaluateuc.Service {
	ec := app.cfg.Evaluation
	return evaluateuc.New(eval.Config{Ks: ec.Ks, Tops: ec.Tops}, app.logger).
		WithQueryBounds(ec.MinLen, ec.MaxLen)
}

func runQueries(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	c, err := datafile.LoadCorpus(queriesCorpus)
	if err != nil {
		return err
	}
	candidates, err := datafile.Slice(mapRecords(
		datafile.ReadLines[datafile.CandidateDTO](queriesCandidates),
		func(d datafile.CandidateDTO) (queryset.Candidate, bool) { return d.Candidate(), true },
	))
	if err != nil {
		return fmt.Errorf("read candidates: %w", err)
	}

	conn := cacheConn(ctx)
	defer conn.Close()
	embedders := bootstrap.NewEmbedders(app.cfg.Embedding, conn, app.logger)

	set, err := newEvaluateService().BuildQueries(ctx, candidates, c, embedders.Query)
	if err != nil {
		return err
	}
	if err := datafile.SaveQuerySet(queriesOut, set); err != nil {
		return fmt.Errorf("save queries: %w", err)
	}

	app.logger.Info("Query set written", zap.Int("queries", set.Len()), zap.String("out", queriesOut))
	return nil
}
