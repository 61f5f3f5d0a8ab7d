package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/citesearch/internal/bootstrap"
	"github.com/kailas-cloud/citesearch/internal/db"
	"github.com/kailas-cloud/citesearch/internal/domain/corpus"
	paperrepo "github.com/kailas-cloud/citesearch/internal/repository/paper"
	"github.com/kailas-cloud/citesearch/internal/repository/datafile"
	"github.com/kailas-cloud/citesearch/internal/transport/crossref"
	harvestuc "github.com/kailas-cloud/citesearch/internal/usecase/harvest"
)

var (
	harvestOut          string
	harvestKeyword      string
	harvestMinAbstracts int
	harvestMinCited     int
	harvestMaxJournals  int
	harvestMaxPapers    int
	harvestCorpus       string
	harvestVariant      string
	harvestUpload       bool
	harvestSave         bool
)

func init() {
	rootCmd.AddCommand(harvestCmd)

	f := harvestCmd.Flags()
	f.StringVarP(&harvestOut, "out", "o", "papers.jsonl", "Output papers file (JSON Lines)")
	f.StringVar(&harvestKeyword, "keyword", "", "Journal search keyword (default: crossref.keyword)")
	f.IntVar(&harvestMinAbstracts, "min-abstracts", 0, "Minimum estimated abstracts per journal (default: crossref.min_abstracts)")
	f.IntVar(&harvestMinCited, "min-cited", 0, "Minimum citation count per paper (default: crossref.min_cited)")
	f.IntVar(&harvestMaxJournals, "max-journals", 0, "Stop after this many journals (0 = unlimited)")
	f.IntVar(&harvestMaxPapers, "max-papers", 0, "Stop after this many papers (0 = unlimited)")
	f.StringVar(&harvestCorpus, "corpus", "", "Also embed papers into this corpus file")
	f.StringVar(&harvestVariant, "variant", "", "Corpus variant when embedding (default: evaluation.variant)")
	f.BoolVar(&harvestUpload, "upload", false, "Also upload embedded sentences to the index")
	f.BoolVar(&harvestSave, "save", false, "Also store paper metadata in the database")
}

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Harvest papers with abstracts from CrossRef",
	Long: `Harvest walks CrossRef journals matching a keyword, keeps those with enough abstracts,
and streams their most cited journal articles. Papers without a title or a parseable
abstract are skipped.

Without --corpus or --upload only metadata is written. With either flag every batch of
papers is segmented, embedded and written on as it arrives.`,
	RunE: runHarvest,
}

func harvestParams() harvestuc.Params {
	cr := app.cfg.Crossref
	p := harvestuc.Params{
		Keyword:      cr.Keyword,
		MinAbstracts: cr.MinAbstracts,
		MinCited:     cr.MinCited,
		MaxJournals:  cr.MaxJournals,
		MaxPapers:    cr.MaxPapers,
	}
	if harvestKeyword != "" {
		p.Keyword = harvestKeyword
	}
	if harvestMinAbstracts > 0 {
		p.MinAbstracts = harvestMinAbstracts
	}
	if harvestMinCited > 0 {
		p.MinCited = harvestMinCited
	}
	if harvestMaxJournals > 0 {
		p.MaxJournals = harvestMaxJournals
	}
	if harvestMaxPapers > 0 {
		p.MaxPapers = harvestMaxPapers
	}
	return p
}

func newCrossrefClient() *crossref.Client {
	cr := app.cfg.Crossref
	opts := []crossref.ClientOption{
		crossref.WithMailto(cr.Mailto),
		crossref.WithRate(cr.RateLimit),
		crossref.WithRows(cr.Rows),
		crossref.WithRetries(cr.Retries, time.Second),
		crossref.WithLogger(app.logger),
	}
	if cr.BaseURL != "" {
		opts = append(opts, crossref.WithBaseURL(cr.BaseURL))
	}
	return crossref.NewClient(opts...)
}

func runHarvest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	params := harvestParams()
	if params.Keyword == "" {
		return fmt.Errorf("%w: a keyword is required (--keyword or crossref.keyword)", errConfig)
	}
	client := newCrossrefClient()

	if harvestCorpus == "" && !harvestUpload && !harvestSave {
		return harvestMetadata(ctx, client, params)
	}
	return harvestEmbedded(ctx, client, params)
}

func harvestMetadata(ctx context.Context, client *crossref.Client, params harvestuc.Params) error {
	svc := harvestuc.New(client, crossref.ParseAbstract, nil, nil, app.logger)
	stats := &harvestuc.Stats{Skipped: map[string]int{}}

	n, err := datafile.WriteLines(harvestOut, svc.Papers(ctx, params, stats))
	if err != nil {
		return fmt.Errorf("harvest: %w", err)
	}
	logStats(stats, zap.Int("written", n), zap.String("out", harvestOut))
	return nil
}

func harvestEmbedded(ctx context.Context, client *crossref.Client, params harvestuc.Params) error {
	variant, err := corpusVariant(harvestVariant)
	if err != nil {
		return err
	}

	conn := cacheConn(ctx)
	if harvestUpload || harvestSave {
		conn = bootstrap.Connect(ctx, app.cfg.Database, app.logger)
		if _, err := conn.Store(); err != nil {
			return fmt.Errorf("harvest: %w", err)
		}
	}
	defer conn.Close()

	embedders := bootstrap.NewEmbedders(app.cfg.Embedding, conn, app.logger)

	var papers harvestuc.PaperStore
	if harvestSave {
		store, _ := conn.Store()
		papers = paperrepo.New(store)
	}
	svc := harvestuc.New(client, crossref.ParseAbstract, embedders.Document, papers, app.logger).
		WithBatchSize(app.cfg.Index.UploadBatchSize)

	sink, collected, err := harvestSink(ctx, conn)
	if err != nil {
		return err
	}

	stats, err := svc.Run(ctx, params, variant, sink)
	if err != nil {
		return err
	}

	if harvestCorpus != "" {
		c, err := corpus.Build(*collected, embedders.Document.Model())
		if err != nil {
			return fmt.Errorf("build corpus: %w", err)
		}
		if err := datafile.SaveCorpus(harvestCorpus, c); err != nil {
			return fmt.Errorf("save corpus: %w", err)
		}
	}
	logStats(stats, zap.String("variant", string(variant)), zap.String("corpus", harvestCorpus))
	return nil
}

// harvestSink collects documents for the corpus file and uploads them when asked.
func harvestSink(ctx context.Context, conn db.Conn) (harvestuc.Sink, *[]corpus.Document, error) {
	var collected []corpus.Document
	var upload func(context.Context, []corpus.Document) error

	if harvestUpload {
		sentences, err := bootstrap.Sentences(app.cfg, conn)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", errConfig, err)
		}
		if err := sentences.EnsureIndex(ctx); err != nil {
			return nil, nil, fmt.Errorf("ensure index: %w", err)
		}
		upload = func(ctx context.Context, docs []corpus.Document) error {
			_, err := sentences.Upload(ctx, docs)
			return err
		}
	}

	sink := harvestuc.SinkFunc(func(ctx context.Context, docs []corpus.Document) error {
		if harvestCorpus != "" {
			collected = append(collected, docs...)
		}
		if upload != nil {
			return upload(ctx, docs)
		}
		return nil
	})
	return sink, &collected, nil
}

func logStats(stats *harvestuc.Stats, extra ...zap.Field) {
	fields := []zap.Field{
		zap.Int("journals", stats.Journals),
		zap.Int("papers", stats.Papers),
		zap.Int("documents", stats.Documents),
		zap.Int("units", stats.Units),
	}
	for reason, n := range stats.Skipped {
		fields = append(fields, zap.Int("skipped_"+reason, n))
	}
	app.logger.Info("Harvest finished", append(fields, extra...)...)
}

func corpusVariant(flag string) (corpus.Variant, error) {
	name := flag
	if name == "" {
		name = app.cfg.Evaluation.Variant
	}
	v, err := corpus.ParseVariant(name)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errConfig, err)
	}
	return v, nil
}
