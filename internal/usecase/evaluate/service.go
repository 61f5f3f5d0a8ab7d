// Package evaluate runs retrieval evaluations: build the query set, rank it, score it.
package evaluate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/citesearch/internal/domain"
	"github.com/kailas-cloud/citesearch/internal/domain/corpus"
	"github.com/kailas-cloud/citesearch/internal/domain/eval"
	"github.com/kailas-cloud/citesearch/internal/domain/queryset"
	"github.com/kailas-cloud/citesearch/internal/domain/search/engine"
	"github.com/kailas-cloud/citesearch/internal/domain/search/result"
	"github.com/kailas-cloud/citesearch/internal/metrics"
)

// Ranker names.
const (
	RankerDense = "dense"
	RankerBM25  = "bm25"
)

// Run is one finished evaluation.
type Run struct {
	ID        uuid.UUID
	Ranker    string
	StartedAt time.Time
	Duration  time.Duration
	Report    eval.Report
}

// Service orchestrates evaluation runs.
type Service struct {
	cfg            eval.Config
	cfgErr         error
	minLen, maxLen int
	logger         *zap.Logger
}

// New creates an evaluation service reporting the cutoffs in cfg. Empty cutoff lists take
// the eval defaults; an invalid cutoff fails every run.
func New(cfg eval.Config, logger *zap.Logger) *Service {
	norm, err := cfg.Normalize()
	return &Service{
		cfg:    norm,
		cfgErr: err,
		minLen: queryset.DefaultMinLen,
		maxLen: queryset.DefaultMaxLen,
		logger: logger,
	}
}

// WithQueryBounds overrides the accepted query length range. Zero keeps the default.
func (s *Service) WithQueryBounds(minLen, maxLen int) *Service {
	if minLen > 0 {
		s.minLen = minLen
	}
	if maxLen > 0 {
		s.maxLen = maxLen
	}
	return s
}

// BuildQueries filters candidates against the corpus DOIs, dedupes them and embeds the
// accepted texts with the corpus model.
func (s *Service) BuildQueries(
	ctx context.Context, candidates []queryset.Candidate, c *corpus.Corpus, be domain.BatchEmbedder,
) (*queryset.Set, error) {
	if be.Model() != c.Model() {
		return nil, fmt.Errorf("corpus %q, embedder %q: %w", c.Model(), be.Model(), domain.ErrModelMismatch)
	}

	policy := queryset.DefaultPolicy(c.DOIs())
	policy.MinLen, policy.MaxLen = s.minLen, s.maxLen

	set := queryset.Build(candidates, policy)
	st := set.Stats()
	fields := []zap.Field{
		zap.Int("candidates", st.Candidates),
		zap.Int("accepted", st.Accepted),
		zap.Int("queries", st.Queries),
	}
	for reason, n := range st.Rejected {
		fields = append(fields, zap.Int("rejected_"+string(reason), n))
	}
	s.logger.Info("Query set built", fields...)

	embedded, err := set.Embed(ctx, be)
	if err != nil {
		return nil, fmt.Errorf("build queries: %w", err)
	}
	return embedded, nil
}

// Dense ranks queries against the embedded corpus. n_docs counts corpus entries, one per
// embedded unit.
func (s *Service) Dense(
	ctx context.Context, c *corpus.Corpus, queries *queryset.Set, opts ...engine.Option,
) (*Run, error) {
	return s.Evaluate(ctx, RankerDense, engine.New(c, opts...), queries, c.Len())
}

// Baseline ranks query texts against whole abstracts with BM25.
func (s *Service) Baseline(ctx context.Context, sources []corpus.Source, queries *queryset.Set) (*Run, error) {
	docs := make([]engine.TextDocument, 0, len(sources))
	for _, src := range sources {
		if src.Abstract == "" {
			continue
		}
		docs = append(docs, engine.TextDocument{DOI: src.DOI, Text: src.Abstract})
	}
	return s.Evaluate(ctx, RankerBM25, engine.NewBM25(docs), queries, len(docs))
}

// Evaluate ranks every query with r and scores the rankings.
func (s *Service) Evaluate(
	ctx context.Context, name string, r engine.Ranker, queries *queryset.Set, nDocs int,
) (*Run, error) {
	if s.cfgErr != nil {
		return nil, fmt.Errorf("evaluate: %w", s.cfgErr)
	}
	run := &Run{ID: uuid.New(), Ranker: name, StartedAt: time.Now()}
	logger := s.logger.With(zap.String("run_id", run.ID.String()), zap.String("ranker", name))

	rankings, err := r.RankQueries(ctx, queries, s.cfg.Depth())
	if err != nil {
		return nil, fmt.Errorf("rank queries: %w", err)
	}
	dois := make([][]string, len(rankings))
	for i, ranked := range rankings {
		dois[i] = result.DOIs(ranked)
	}

	report, err := eval.Evaluate(queries.Queries(), dois, nDocs, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	run.Report = report
	run.Duration = time.Since(run.StartedAt)

	s.record(run)

	fields := []zap.Field{
		zap.Int("n_claims", report.NClaims),
		zap.Int("n_docs", report.NDocs),
		zap.Duration("duration", run.Duration),
	}
	for k, v := range report.MAP {
		fields = append(fields, zap.Float64("map@"+strconv.Itoa(k), v))
	}
	for top, v := range report.CountAny {
		fields = append(fields, zap.Float64("countany@"+strconv.Itoa(top), v))
	}
	logger.Info("Evaluation finished", fields...)

	return run, nil
}

func (s *Service) record(run *Run) {
	metrics.EvalDuration.WithLabelValues(run.Ranker).Observe(run.Duration.Seconds())
	metrics.EvalQueries.WithLabelValues(run.Ranker).Set(float64(run.Report.NClaims))
	for k, v := range run.Report.MAP {
		metrics.EvalMAP.WithLabelValues(run.Ranker, strconv.Itoa(k)).Set(v)
	}
	for top, v := range run.Report.CountAny {
		metrics.EvalAnyAtTop.WithLabelValues(run.Ranker, strconv.Itoa(top)).Set(v)
	}
}
