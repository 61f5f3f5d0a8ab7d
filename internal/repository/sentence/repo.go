// Package sentence stores embedded abstract sentences in an FT vector index and serves
// KNN and per-document lookups over it.
package sentence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/citesearch/internal/db"
	"github.com/kailas-cloud/citesearch/internal/domain"
	"github.com/kailas-cloud/citesearch/internal/domain/corpus"
	"github.com/kailas-cloud/citesearch/internal/domain/search/result"
)

const (
	fieldDOI      = "doi"
	fieldSentence = "sentence"
	fieldPosition = "position"
	fieldVector   = "vector"
)

// Config describes the index layout.
type Config struct {
	IndexName   string
	Dim         int
	Distance    db.DistanceMetric
	M           int
	EFConstruct int
	EFRuntime   int
	BatchSize   int
	Retry       db.RetryPolicy
}

func (c Config) withDefaults() Config {
	if c.IndexName == "" {
		c.IndexName = domain.KeyPrefix + "sentences"
	}
	if c.Dim <= 0 {
		c.Dim = 384
	}
	if c.Distance == "" {
		c.Distance = db.DistanceCosine
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 200
	}
	if c.Retry.Attempts <= 0 {
		c.Retry.Attempts = 3
	}
	if c.Retry.Backoff <= 0 {
		c.Retry.Backoff = 500 * time.Millisecond
	}
	return c
}

// Prefix is the hash key prefix of every indexed sentence.
const Prefix = domain.KeyPrefix + "sent:"

// Repo is the sentence index repository.
type Repo struct {
	conn db.Conn
	cfg  Config
}

// New creates a sentence repository. conn may be Unavailable; every operation then fails
// with domain.ErrIndexUnavailable.
func New(conn db.Conn, cfg Config) *Repo {
	return &Repo{conn: conn, cfg: cfg.withDefaults()}
}

// Definition returns the FT index schema.
func (r *Repo) Definition() (*db.IndexDefinition, error) {
	return db.NewIndex(r.cfg.IndexName).
		Prefix(Prefix).
		Tag(fieldDOI, "|").
		Text(fieldSentence).
		NumericSortable(fieldPosition).
		VectorHNSW(fieldVector, r.cfg.Dim, r.cfg.Distance, r.cfg.M, r.cfg.EFConstruct).
		Build()
}

// EnsureIndex creates the index unless it already exists. Transport failures are retried.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	s, err := r.store()
	if err != nil {
		return err
	}
	def, err := r.Definition()
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	backoff := r.cfg.Retry.Backoff
	for attempt := 1; ; attempt++ {
		err = s.CreateIndex(ctx, def)
		if err == nil || errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		if !errors.Is(err, db.ErrUnavailable) || attempt >= r.cfg.Retry.Attempts {
			return wrap("create index", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// Reset drops the index (keeping nothing indexed under it) and recreates it.
func (r *Repo) Reset(ctx context.Context) error {
	s, err := r.store()
	if err != nil {
		return err
	}
	if err := s.DropIndex(ctx, r.cfg.IndexName); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return wrap("drop index", err)
	}
	return r.EnsureIndex(ctx)
}

// Upload writes one hash per sentence, pipelined in batches. It returns the number of
// sentences written.
func (r *Repo) Upload(ctx context.Context, docs []corpus.Document) (int, error) {
	s, err := r.store()
	if err != nil {
		return 0, err
	}

	batch := make([]db.HashSetItem, 0, r.cfg.BatchSize)
	written := 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.HSetMulti(ctx, batch); err != nil {
			return wrap("upload sentences", err)
		}
		written += len(batch)
		batch = batch[:0]
		return nil
	}

	for _, d := range docs {
		if len(d.Units) != len(d.Vectors) {
			return written, fmt.Errorf("document %q: %w", d.DOI, domain.ErrMisaligned)
		}
		for i, unit := range d.Units {
			if len(d.Vectors[i]) != r.cfg.Dim {
				return written, fmt.Errorf("document %q unit %d: %w",
					d.DOI, i, domain.NewDimensionError(r.cfg.Dim, len(d.Vectors[i])))
			}
			batch = append(batch, db.HashSetItem{
				Key: Key(d.DOI, i),
				Fields: map[string]string{
					fieldDOI:      d.DOI,
					fieldSentence: unit,
					fieldPosition: strconv.Itoa(i),
					fieldVector:   db.EncodeVector(d.Vectors[i]),
				},
			})
			if len(batch) == r.cfg.BatchSize {
				if err := flush(); err != nil {
					return written, err
				}
			}
		}
	}
	if err := flush(); err != nil {
		return written, err
	}
	return written, nil
}

// KNN returns the k sentences nearest to vector. candidates widens the HNSW search pool,
// zero keeps the engine default.
func (r *Repo) KNN(ctx context.Context, vector []float32, k, candidates int) ([]result.Result, error) {
	if len(vector) != r.cfg.Dim {
		return nil, domain.NewDimensionError(r.cfg.Dim, len(vector))
	}
	s, err := r.store()
	if err != nil {
		return nil, err
	}

	sr, err := s.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.cfg.IndexName,
		Field:        fieldVector,
		Vector:       vector,
		K:            k,
		EFRuntime:    max(candidates, r.cfg.EFRuntime),
		ReturnFields: []string{fieldDOI, fieldSentence},
	})
	if err != nil {
		return nil, wrap("knn search", err)
	}
	return toResults(sr, true), nil
}

// ByDOI returns up to size sentences of one document in abstract order.
func (r *Repo) ByDOI(ctx context.Context, doi string, size int) ([]result.Result, error) {
	s, err := r.store()
	if err != nil {
		return nil, err
	}

	sr, err := s.SearchList(ctx, &db.ListQuery{
		IndexName:    r.cfg.IndexName,
		Query:        db.TagMatch(fieldDOI, doi),
		Limit:        size,
		SortBy:       fieldPosition,
		ReturnFields: []string{fieldDOI, fieldSentence},
	})
	if err != nil {
		return nil, wrap("search by doi", err)
	}
	return toResults(sr, false), nil
}

// Count returns the number of indexed sentences.
func (r *Repo) Count(ctx context.Context) (int, error) {
	s, err := r.store()
	if err != nil {
		return 0, err
	}
	n, err := s.SearchCount(ctx, r.cfg.IndexName, "*")
	if err != nil {
		return 0, wrap("count sentences", err)
	}
	return n, nil
}

// HealthCheck verifies the store answers and the index exists.
func (r *Repo) HealthCheck(ctx context.Context) error {
	s, err := r.store()
	if err != nil {
		return err
	}
	ok, err := s.IndexExists(ctx, r.cfg.IndexName)
	if err != nil {
		return wrap("index info", err)
	}
	if !ok {
		return fmt.Errorf("index %s: %w", r.cfg.IndexName, domain.ErrNotFound)
	}
	return nil
}

// Key returns the hash key of the i-th sentence of a document.
func Key(doi string, i int) string {
	return Prefix + doi + ":" + strconv.Itoa(i)
}

func (r *Repo) store() (db.Store, error) {
	s, err := r.conn.Store()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}
	return s, nil
}

func wrap(op string, err error) error {
	if errors.Is(err, db.ErrUnavailable) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrIndexUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func toResults(sr *db.SearchResult, scored bool) []result.Result {
	if sr == nil {
		return []result.Result{}
	}
	out := make([]result.Result, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		doi := e.Fields[fieldDOI]
		if doi == "" {
			doi = doiFromKey(e.Key)
		}
		score := e.Score
		if !scored {
			score = 0
		}
		out = append(out, result.New(doi, e.Fields[fieldSentence], score, -1))
	}
	return out
}

func doiFromKey(key string) string {
	rest := strings.TrimPrefix(key, Prefix)
	if i := strings.LastIndexByte(rest, ':'); i >= 0 {
		return rest[:i]
	}
	return rest
}
