package main

import (
	"errors"

	"github.com/kailas-cloud/citesearch/internal/db"
	"github.com/kailas-cloud/citesearch/internal/domain"
)

// Exit codes.
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration could not be loaded or is invalid
	ExitDataError   = 3 // Input violates a precondition (misaligned corpus, mixed models, empty relevant set)
	ExitUpstream    = 4 // CrossRef, Wikipedia or the embedding provider failed
	ExitUnavailable = 5 // The index store cannot be reached
)

var errConfig = errors.New("config")

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, errConfig):
		return ExitConfigError
	case errors.Is(err, domain.ErrEmptyRelevant),
		errors.Is(err, domain.ErrMisaligned),
		errors.Is(err, domain.ErrModelMismatch),
		errors.Is(err, domain.ErrVectorDimMismatch),
		errors.Is(err, domain.ErrInvalidRequest):
		return ExitDataError
	case errors.Is(err, domain.ErrRateLimited),
		errors.Is(err, domain.ErrUpstream),
		errors.Is(err, domain.ErrEmbeddingProviderError),
		errors.Is(err, domain.ErrEmptyBatch):
		return ExitUpstream
	case errors.Is(err, domain.ErrIndexUnavailable), errors.Is(err, db.ErrUnavailable):
		return ExitUnavailable
	default:
		return ExitError
	}
}
