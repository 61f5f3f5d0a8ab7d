package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/citesearch/internal/bootstrap"
	"github.com/kailas-cloud/citesearch/internal/domain/corpus"
	"github.com/kailas-cloud/citesearch/internal/repository/datafile"
	harvestuc "github.com/kailas-cloud/citesearch/internal/usecase/harvest"
)

var (
	embedIn      string
	embedOut     string
	embedVariant string
)

func init() {
	rootCmd.AddCommand(embedCmd)

	embedCmd.Flags().StringVarP(&embedIn, "in", "i", "sources.jsonl", "Input sources file (JSON Lines)")
	embedCmd.Flags().StringVarP(&embedOut, "out", "o", "corpus.json", "Output corpus file")
	embedCmd.Flags().StringVar(&embedVariant, "variant", "",
		"Unit variant: full, sentenced, title, titlefull, titlesentenced (default: evaluation.variant)")
}

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Embed segmented sources into a corpus",
	Long: `Embed builds the text units of every source for one variant, embeds them with the
document-side embedder and writes the corpus together with the model id. Sources that
yield no units are left out.`,
	RunE: runEmbed,
}

func runEmbed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	variant, err := corpusVariant(embedVariant)
	if err != nil {
		return err
	}

	dtos, err := datafile.Slice(datafile.ReadLines[datafile.SourceDTO](embedIn))
	if err != nil {
		return fmt.Errorf("read sources: %w", err)
	}

	conn := cacheConn(ctx)
	defer conn.Close()
	embedders := bootstrap.NewEmbedders(app.cfg.Embedding, conn, app.logger)
	svc := harvestuc.New(nil, nil, embedders.Document, nil, app.logger)

	batch := app.cfg.Index.UploadBatchSize
	var docs []corpus.Document
	for start := 0; start < len(dtos); start += batch {
		end := min(start+batch, len(dtos))
		sources := make([]corpus.Source, 0, end-start)
		for _, d := range dtos[start:end] {
			sources = append(sources, d.Source())
		}
		embedded, err := svc.Embed(ctx, sources, variant)
		if err != nil {
			return err
		}
		docs = append(docs, embedded...)
		app.logger.Info("Embedded sources", zap.Int("done", end), zap.Int("total", len(dtos)))
	}

	c, err := corpus.Build(docs, embedders.Document.Model())
	if err != nil {
		return fmt.Errorf("build corpus: %w", err)
	}
	if err := datafile.SaveCorpus(embedOut, c); err != nil {
		return fmt.Errorf("save corpus: %w", err)
	}

	app.logger.Info("Corpus written",
		zap.String("variant", string(variant)),
		zap.String("model", c.Model()),
		zap.Int("documents", len(c.Documents())),
		zap.Int("entries", c.Len()),
		zap.Int("excluded", len(c.Excluded())),
		zap.String("out", embedOut),
	)
	return nil
}
