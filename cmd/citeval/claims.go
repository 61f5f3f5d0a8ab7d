package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	domclaims "github.com/kailas-cloud/citesearch/internal/domain/claims"
	dompaper "github.com/kailas-cloud/citesearch/internal/domain/paper"
	"github.com/kailas-cloud/citesearch/internal/repository/datafile"
	openaiEmb "github.com/kailas-cloud/citesearch/internal/transport/openai"
	claimsuc "github.com/kailas-cloud/citesearch/internal/usecase/claims"
)

var (
	claimsIn  string
	claimsOut string
	claimsN   int
)

func init() {
	rootCmd.AddCommand(claimsCmd)

	claimsCmd.Flags().StringVarP(&claimsIn, "in", "i", "papers.jsonl", "Input papers file (JSON Lines)")
	claimsCmd.Flags().StringVarP(&claimsOut, "out", "o", "claims.jsonl", "Output claims file (JSON Lines)")
	claimsCmd.Flags().IntVarP(&claimsN, "n", "n", 0, "Claims per abstract (default: llm.claims)")
}

var claimsCmd = &cobra.Command{
	Use:   "claims",
	Short: "Extract a topic and short claims from each abstract with an LLM",
	RunE:  runClaims,
}

// claimRecord is one line of the claims file.
type claimRecord struct {
	DOI string `json:"doi"`
	domclaims.Result
}

func runClaims(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	papers, err := datafile.Slice(datafile.ReadLines[dompaper.Paper](claimsIn))
	if err != nil {
		return fmt.Errorf("read papers: %w", err)
	}

	llm := app.cfg.LLM
	completer := openaiEmb.NewCompleter(&openaiEmb.CompleterConfig{
		APIKey:      llm.APIKey,
		BaseURL:     llm.BaseURL,
		Model:       llm.Model,
		MaxTokens:   llm.MaxTokens,
		Temperature: llm.Temperature,
		Logger:      app.logger,
	})
	n := llm.Claims
	if claimsN > 0 {
		n = claimsN
	}
	svc := claimsuc.New(completer, n, app.logger).WithConcurrency(llm.Concurrency)

	abstracts := make([]string, len(papers))
	for i, p := range papers {
		abstracts[i] = p.Text
	}
	results, err := svc.ExtractAll(ctx, abstracts)
	if err != nil {
		return err
	}

	records := func(yield func(claimRecord, error) bool) {
		for i, r := range results {
			if !yield(claimRecord{DOI: papers[i].DOI, Result: r}, nil) {
				return
			}
		}
	}
	written, err := datafile.WriteLines(claimsOut, records)
	if err != nil {
		return fmt.Errorf("write claims: %w", err)
	}

	app.logger.Info("Claims written", zap.Int("papers", written), zap.String("model", llm.Model))
	return nil
}
