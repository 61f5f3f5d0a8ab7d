// Package claims asks a chat model for the key claims of abstracts.
package claims

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	domclaims "github.com/kailas-cloud/citesearch/internal/domain/claims"
)

// DefaultClaims is the number of claims requested per abstract.
const DefaultClaims = 3

// Completer runs one chat completion.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Service extracts claims through a Completer.
type Service struct {
	completer   Completer
	n           int
	concurrency int
	logger      *zap.Logger
}

// New creates a claims service requesting n claims per abstract (DefaultClaims when n <= 0).
func New(completer Completer, n int, logger *zap.Logger) *Service {
	if n <= 0 {
		n = DefaultClaims
	}
	return &Service{completer: completer, n: n, concurrency: 1, logger: logger}
}

// WithConcurrency sets how many completions run at once in ExtractAll.
func (s *Service) WithConcurrency(n int) *Service {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

// Extract returns the topic and claims of one abstract. Abstracts shorter than
// MinAbstractLen get no claims and never reach the model.
func (s *Service) Extract(ctx context.Context, abstract string) (domclaims.Result, error) {
	abstract = strings.TrimSpace(abstract)
	res := domclaims.Result{Abstract: abstract, Claims: []string{}}
	if len(abstract) < domclaims.MinAbstractLen {
		return res, nil
	}

	system, user := domclaims.Messages(abstract, s.n)
	reply, err := s.completer.Complete(ctx, system, user)
	if err != nil {
		return domclaims.Result{}, fmt.Errorf("complete: %w", err)
	}
	res.Topic, res.Claims = domclaims.Parse(reply)
	if len(res.Claims) == 0 {
		s.logger.Warn("Model reply has no claims", zap.Int("reply_len", len(reply)))
	}
	return res, nil
}

// ExtractAll runs Extract for every abstract; results are aligned with the input.
func (s *Service) ExtractAll(ctx context.Context, abstracts []string) ([]domclaims.Result, error) {
	out := make([]domclaims.Result, len(abstracts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, a := range abstracts {
		g.Go(func() error {
			res, err := s.Extract(gctx, a)
			if err != nil {
				return fmt.Errorf("abstract %d: %w", i, err)
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // wrapped per abstract
	}
	return out, nil
}
