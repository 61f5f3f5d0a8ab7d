package harvest

import (
	"context"
	"iter"

	"github.com/kailas-cloud/citesearch/internal/domain"
	"github.com/kailas-cloud/citesearch/internal/domain/corpus"
	dompaper "github.com/kailas-cloud/citesearch/internal/domain/paper"
)

// Source streams journals and their works from a metadata API.
type Source interface {
	Journals(ctx context.Context, keyword string, minAbstracts int) iter.Seq2[string, error]
	Works(ctx context.Context, issn string, minCited int) iter.Seq2[dompaper.Paper, error]
}

// AbstractParser reduces raw abstract markup to plain text, failing with
// domain.ErrMissingAbstract when nothing usable is left.
type AbstractParser func(raw string) (string, error)

// PaperStore persists harvested metadata.
type PaperStore interface {
	Save(ctx context.Context, papers []dompaper.Paper) error
}

// Sink receives embedded documents batch by batch, in harvest order.
type Sink interface {
	Write(ctx context.Context, docs []corpus.Document) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, docs []corpus.Document) error

// Write calls f.
func (f SinkFunc) Write(ctx context.Context, docs []corpus.Document) error { return f(ctx, docs) }

// Embedder vectorizes text units in one call per batch.
type Embedder interface {
	domain.BatchEmbedder
}
