package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	dompaper "github.com/kailas-cloud/citesearch/internal/domain/paper"
	"github.com/kailas-cloud/citesearch/internal/repository/datafile"
	"github.com/kailas-cloud/citesearch/internal/transport/crossref"
	harvestuc "github.com/kailas-cloud/citesearch/internal/usecase/harvest"
)

var (
	segmentIn  string
	segmentOut string
)

func init() {
	rootCmd.AddCommand(segmentCmd)

	segmentCmd.Flags().StringVarP(&segmentIn, "in", "i", "papers.jsonl", "Input papers file (JSON Lines)")
	segmentCmd.Flags().StringVarP(&segmentOut, "out", "o", "sources.jsonl", "Output sources file (JSON Lines)")
}

var segmentCmd = &cobra.Command{
	Use:   "segment",
	Short: "Split paper abstracts into sentences",
	Long: `Segment reads harvested papers and writes one source record per paper: DOI, title,
plain-text abstract and its ordered sentences. Papers whose abstract cannot be parsed
are skipped.`,
	RunE: runSegment,
}

func runSegment(*cobra.Command, []string) error {
	skipped := 0
	sources := mapRecords(datafile.ReadLines[dompaper.Paper](segmentIn), func(p dompaper.Paper) (datafile.SourceDTO, bool) {
		if p.Text == "" {
			text, err := crossref.ParseAbstract(p.Abstract)
			if err != nil {
				app.logger.Debug("Skipping paper", zap.String("doi", p.DOI), zap.Error(err))
				skipped++
				return datafile.SourceDTO{}, false
			}
			p.Text = text
		}
		return datafile.SourceToDTO(harvestuc.Segment(p)), true
	})

	n, err := datafile.WriteLines(segmentOut, sources)
	if err != nil {
		return fmt.Errorf("segment: %w", err)
	}
	app.logger.Info("Segmented papers",
		zap.Int("sources", n),
		zap.Int("skipped", skipped),
		zap.String("out", segmentOut),
	)
	return nil
}
