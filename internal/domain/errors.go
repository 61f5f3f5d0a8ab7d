package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest signals a malformed client request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrIndexUnavailable signals that the backing search index cannot be reached.
	ErrIndexUnavailable = errors.New("search index unavailable")

	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrEmptyBatch signals an embedding call with nothing to embed.
	ErrEmptyBatch = errors.New("empty embedding batch")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrModelMismatch signals that corpus and queries were embedded by different models.
	ErrModelMismatch = errors.New("embedding model mismatch")

	// ErrEmptyRelevant signals a query without ground-truth documents reaching evaluation.
	ErrEmptyRelevant = errors.New("query has no relevant documents")
	// ErrMisaligned signals text units and vectors of different lengths.
	ErrMisaligned = errors.New("text units and vectors are not aligned")

	// ErrMissingAbstract signals an upstream paper without a usable abstract.
	ErrMissingAbstract = errors.New("missing abstract")
	// ErrNoTitle signals an upstream paper without a title.
	ErrNoTitle = errors.New("missing title")
	// ErrRateLimited signals an upstream rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrUpstream signals a failed call to an external metadata API.
	ErrUpstream = errors.New("upstream api error")
)

// DimensionError wraps ErrVectorDimMismatch with the offending sizes.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: want %d, got %d", ErrVectorDimMismatch.Error(), e.Want, e.Got)
}

func (e *DimensionError) Unwrap() error { return ErrVectorDimMismatch }

// NewDimensionError creates a dimension mismatch error.
func NewDimensionError(want, got int) error {
	return &DimensionError{Want: want, Got: got}
}
