package main

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/citesearch/internal/domain/queryset"
	"github.com/kailas-cloud/citesearch/internal/repository/datafile"
	"github.com/kailas-cloud/citesearch/internal/transport/wikipedia"
)

var (
	scrapeOut      string
	scrapeArticles bool
)

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringVarP(&scrapeOut, "out", "o", "candidates.jsonl", "Output candidates file (JSON Lines)")
	scrapeCmd.Flags().BoolVar(&scrapeArticles, "articles", false, "Treat arguments as articles instead of index pages")
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape <page>...",
	Short: "Collect citation contexts from Wikipedia",
	Long: `Scrape exports the given Wikipedia index pages (for example "Outline of food science"),
follows the articles linked from their bullet lists and pairs every DOI cited in a <ref>
with the prose sentence it supports. The pairs are query candidates for "queries".`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScrape,
}

func newWikipediaClient() *wikipedia.Client {
	wc := app.cfg.Wikipedia
	opts := []wikipedia.ClientOption{
		wikipedia.WithRate(wc.RateLimit),
		wikipedia.WithContact(wc.Contact),
		wikipedia.WithRetries(app.cfg.Crossref.Retries, time.Second),
		wikipedia.WithLogger(app.logger),
	}
	if wc.BaseURL != "" {
		opts = append(opts, wikipedia.WithBaseURL(wc.BaseURL))
	}
	return wikipedia.NewClient(opts...)
}

func runScrape(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client := newWikipediaClient()

	titles := args
	if !scrapeArticles {
		index, err := client.Export(ctx, args)
		if err != nil {
			return fmt.Errorf("export index pages: %w", err)
		}
		titles = nil
		for _, page := range index {
			for _, t := range wikipedia.ArticlesFromBullets(page.Text) {
				if !slices.Contains(titles, t) {
					titles = append(titles, t)
				}
			}
		}
		app.logger.Info("Index pages exported", zap.Int("pages", len(index)), zap.Int("articles", len(titles)))
	}

	articles, err := client.Export(ctx, titles)
	if err != nil {
		return fmt.Errorf("export articles: %w", err)
	}

	var candidates []queryset.Candidate
	for _, page := range articles {
		found := wikipedia.CitationContexts(page.Text)
		app.logger.Debug("Article scraped", zap.String("title", page.Title), zap.Int("contexts", len(found)))
		candidates = append(candidates, found...)
	}

	records := func(yield func(datafile.CandidateDTO, error) bool) {
		for _, c := range candidates {
			if !yield(datafile.CandidateToDTO(c), nil) {
				return
			}
		}
	}
	n, err := datafile.WriteLines(scrapeOut, records)
	if err != nil {
		return fmt.Errorf("write candidates: %w", err)
	}

	app.logger.Info("Citation contexts written",
		zap.Int("articles", len(articles)),
		zap.Int("candidates", n),
		zap.String("out", scrapeOut),
	)
	return nil
}
