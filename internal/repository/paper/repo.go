// Package paper persists harvested paper metadata as JSON documents.
package paper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kailas-cloud/citesearch/internal/db"
	"github.com/kailas-cloud/citesearch/internal/domain"
	dompaper "github.com/kailas-cloud/citesearch/internal/domain/paper"
)

const keyPrefix = domain.KeyPrefix + "paper:"

// store is the consumer interface for paper metadata (ISP).
type store interface {
	JSONSetMulti(ctx context.Context, items []db.JSONSetItem) error
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	Del(ctx context.Context, keys ...string) error
}

// Repo stores one JSON document per DOI.
type Repo struct {
	store store
}

// New creates a paper repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Save upserts papers in a single pipeline.
func (r *Repo) Save(ctx context.Context, papers []dompaper.Paper) error {
	if len(papers) == 0 {
		return nil
	}
	items := make([]db.JSONSetItem, len(papers))
	for i := range papers {
		data, err := json.Marshal(papers[i])
		if err != nil {
			return fmt.Errorf("marshal paper %s: %w", papers[i].DOI, err)
		}
		items[i] = db.JSONSetItem{Key: Key(papers[i].DOI), Data: data}
	}
	if err := r.store.JSONSetMulti(ctx, items); err != nil {
		return wrap("save papers", err)
	}
	return nil
}

// Get returns the paper stored under doi.
func (r *Repo) Get(ctx context.Context, doi string) (dompaper.Paper, error) {
	doi = dompaper.NormalizeDOI(doi)
	data, err := r.store.JSONGet(ctx, Key(doi))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return dompaper.Paper{}, fmt.Errorf("paper %s: %w", doi, domain.ErrNotFound)
		}
		return dompaper.Paper{}, wrap("get paper", err)
	}

	// JSON.GET without a path returns the root value; with "$" it returns a one-element array.
	var p dompaper.Paper
	if err := json.Unmarshal(data, &p); err != nil {
		var arr []dompaper.Paper
		if err2 := json.Unmarshal(data, &arr); err2 != nil || len(arr) == 0 {
			return dompaper.Paper{}, fmt.Errorf("decode paper %s: %w", doi, err)
		}
		p = arr[0]
	}
	return p, nil
}

// Delete removes stored papers.
func (r *Repo) Delete(ctx context.Context, dois ...string) error {
	keys := make([]string, len(dois))
	for i, d := range dois {
		keys[i] = Key(dompaper.NormalizeDOI(d))
	}
	if err := r.store.Del(ctx, keys...); err != nil {
		return wrap("delete papers", err)
	}
	return nil
}

// Key returns the storage key of a paper.
func Key(doi string) string {
	return keyPrefix + doi
}

func wrap(op string, err error) error {
	if errors.Is(err, db.ErrUnavailable) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrIndexUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
