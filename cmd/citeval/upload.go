package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/citesearch/internal/bootstrap"
	"github.com/kailas-cloud/citesearch/internal/repository/datafile"
)

var (
	uploadCorpus string
	uploadReset  bool
)

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().StringVar(&uploadCorpus, "corpus", "corpus.json", "Embedded corpus file")
	uploadCmd.Flags().BoolVar(&uploadReset, "reset", false, "Drop and recreate the index before uploading")
}

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload an embedded corpus to the sentence index",
	Long: `Upload writes every corpus unit as one indexed sentence (DOI, text, position, vector)
so that citesearch can serve it. The index is created when missing. The corpus dimension
must match embedding.dimensions.`,
	RunE: runUpload,
}

func runUpload(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	c, err := datafile.LoadCorpus(uploadCorpus)
	if err != nil {
		return err
	}
	if c.Len() > 0 && c.Dim() != app.cfg.Embedding.Dimensions {
		return fmt.Errorf("corpus dimension %d, index dimension %d: %w",
			c.Dim(), app.cfg.Embedding.Dimensions, errConfig)
	}

	conn := bootstrap.Connect(ctx, app.cfg.Database, app.logger)
	defer conn.Close()
	sentences, err := bootstrap.Sentences(app.cfg, conn)
	if err != nil {
		return fmt.Errorf("%w: %w", errConfig, err)
	}

	if uploadReset {
		if err := sentences.Reset(ctx); err != nil {
			return fmt.Errorf("reset index: %w", err)
		}
	} else if err := sentences.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}

	n, err := sentences.Upload(ctx, c.Documents())
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	app.logger.Info("Corpus uploaded",
		zap.Int("documents", len(c.Documents())),
		zap.Int("sentences", n),
		zap.String("model", c.Model()),
	)
	return nil
}
