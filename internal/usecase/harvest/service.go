// Package harvest turns journal metadata into embedded corpus documents.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/citesearch/internal/domain"
	"github.com/kailas-cloud/citesearch/internal/domain/corpus"
	dompaper "github.com/kailas-cloud/citesearch/internal/domain/paper"
	"github.com/kailas-cloud/citesearch/internal/domain/segment"
)

// DefaultBatchSize is the number of papers embedded and written together.
const DefaultBatchSize = 200

// Params selects what to harvest.
type Params struct {
	Keyword      string
	MinAbstracts int
	MinCited     int
	// MaxJournals and MaxPapers cap the harvest; zero means unlimited.
	MaxJournals int
	MaxPapers   int
}

// Stats counts what a harvest saw and kept.
type Stats struct {
	Journals  int
	Papers    int
	Skipped   map[string]int
	Documents int
	Units     int
}

func newStats() *Stats { return &Stats{Skipped: map[string]int{}} }

// Service runs the harvest pipeline.
type Service struct {
	source    Source
	parse     AbstractParser
	embedder  Embedder
	papers    PaperStore
	batchSize int
	logger    *zap.Logger
}

// New creates a harvest service. embedder and papers can be nil when only metadata is
// harvested.
func New(source Source, parse AbstractParser, embedder Embedder, papers PaperStore, logger *zap.Logger) *Service {
	return &Service{
		source:    source,
		parse:     parse,
		embedder:  embedder,
		papers:    papers,
		batchSize: DefaultBatchSize,
		logger:    logger,
	}
}

// WithBatchSize overrides the paper batch size.
func (s *Service) WithBatchSize(n int) *Service {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

// Papers streams usable papers: valid metadata and a parseable abstract, each DOI once.
// stats may be nil.
func (s *Service) Papers(ctx context.Context, p Params, stats *Stats) iter.Seq2[dompaper.Paper, error] {
	if stats == nil {
		stats = newStats()
	}
	return func(yield func(dompaper.Paper, error) bool) {
		seen := make(map[string]struct{})
		for issn, err := range s.source.Journals(ctx, p.Keyword, p.MinAbstracts) {
			if err != nil {
				yield(dompaper.Paper{}, fmt.Errorf("journals: %w", err))
				return
			}
			if p.MaxJournals > 0 && stats.Journals >= p.MaxJournals {
				return
			}
			stats.Journals++
			s.logger.Info("Harvesting journal", zap.String("issn", issn), zap.Int("journal", stats.Journals))

			for raw, err := range s.source.Works(ctx, issn, p.MinCited) {
				if err != nil {
					yield(dompaper.Paper{}, fmt.Errorf("works: %w", err))
					return
				}
				paper, ok := s.accept(raw, seen, stats)
				if !ok {
					continue
				}
				stats.Papers++
				if !yield(paper, nil) {
					return
				}
				if p.MaxPapers > 0 && stats.Papers >= p.MaxPapers {
					return
				}
			}
		}
	}
}

func (s *Service) accept(raw dompaper.Paper, seen map[string]struct{}, stats *Stats) (dompaper.Paper, bool) {
	paper, err := dompaper.New(raw)
	if err != nil {
		stats.Skipped[skipReason(err)]++
		s.logger.Debug("Skipping paper", zap.String("doi", raw.DOI), zap.Error(err))
		return dompaper.Paper{}, false
	}
	if _, dup := seen[paper.DOI]; dup {
		stats.Skipped["duplicate"]++
		return dompaper.Paper{}, false
	}
	seen[paper.DOI] = struct{}{}

	text, err := s.parse(paper.Abstract)
	if err != nil {
		stats.Skipped[skipReason(err)]++
		s.logger.Debug("Skipping paper", zap.String("doi", paper.DOI), zap.Error(err))
		return dompaper.Paper{}, false
	}
	paper.Text = text
	return paper, true
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoTitle):
		return "no_title"
	case errors.Is(err, domain.ErrMissingAbstract):
		return "missing_abstract"
	default:
		return "invalid"
	}
}

// Segment splits a parsed paper into the unembedded source of corpus units.
func Segment(p dompaper.Paper) corpus.Source {
	return corpus.Source{
		DOI:       p.DOI,
		Title:     p.Title,
		Abstract:  p.Text,
		Sentences: segment.Split(p.Text),
	}
}

// Embed builds the units of each source for variant v and embeds them in one batch call.
// Sources without units are dropped.
func (s *Service) Embed(ctx context.Context, sources []corpus.Source, v corpus.Variant) ([]corpus.Document, error) {
	if s.embedder == nil {
		return nil, errors.New("harvest: no embedder configured")
	}

	docs := make([]corpus.Document, 0, len(sources))
	var texts []string
	for _, src := range sources {
		units, err := v.Units(src)
		if err != nil {
			s.logger.Warn("Skipping source", zap.String("doi", src.DOI), zap.Error(err))
			continue
		}
		if len(units) == 0 {
			s.logger.Debug("Source has no units", zap.String("doi", src.DOI))
			continue
		}
		docs = append(docs, corpus.Document{DOI: src.DOI, Units: units})
		texts = append(texts, units...)
	}
	if len(texts) == 0 {
		return nil, nil
	}

	res, err := s.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed units: %w", err)
	}
	if err := domain.CheckBatch(res, len(texts), 0); err != nil {
		return nil, fmt.Errorf("embed units: %w", err)
	}

	offset := 0
	for i := range docs {
		n := len(docs[i].Units)
		docs[i].Vectors = res.Embeddings[offset : offset+n]
		offset += n
	}
	return docs, nil
}

// Run harvests papers, embeds them batch by batch for variant v and hands every batch to
// sink in order. Fetching the next batch overlaps embedding of the current one.
func (s *Service) Run(ctx context.Context, p Params, v corpus.Variant, sink Sink) (*Stats, error) {
	stats := newStats()
	batches := make(chan []dompaper.Paper, 1)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(batches)
		batch := make([]dompaper.Paper, 0, s.batchSize)
		for paper, err := range s.Papers(gctx, p, stats) {
			if err != nil {
				return err
			}
			batch = append(batch, paper)
			if len(batch) < s.batchSize {
				continue
			}
			select {
			case batches <- batch:
			case <-gctx.Done():
				return gctx.Err()
			}
			batch = make([]dompaper.Paper, 0, s.batchSize)
		}
		if len(batch) > 0 {
			select {
			case batches <- batch:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	var documents, units int
	g.Go(func() error {
		for batch := range batches {
			if s.papers != nil {
				if err := s.papers.Save(gctx, batch); err != nil {
					return fmt.Errorf("save papers: %w", err)
				}
			}
			sources := make([]corpus.Source, len(batch))
			for i, paper := range batch {
				sources[i] = Segment(paper)
			}
			docs, err := s.Embed(gctx, sources, v)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				continue
			}
			if err := sink.Write(gctx, docs); err != nil {
				return fmt.Errorf("write batch: %w", err)
			}
			documents += len(docs)
			for _, d := range docs {
				units += len(d.Units)
			}
			s.logger.Info("Batch harvested",
				zap.Int("documents", documents),
				zap.Int("units", units),
			)
		}
		return nil
	})

	err := g.Wait()
	// the producer goroutine has exited, so stats is no longer written
	stats.Documents = documents
	stats.Units = units
	if err != nil {
		return stats, fmt.Errorf("harvest: %w", err)
	}
	return stats, nil
}
