// Package corpus flattens embedded documents into the sentence-level entry list searched by
// the similarity engine.
package corpus

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/citesearch/internal/domain"
)

// ErrDuplicateDOI signals two input documents sharing one identifier.
var ErrDuplicateDOI = errors.New("duplicate document identifier")

// Document is one paper with its text units and their positionally aligned vectors.
type Document struct {
	DOI     string
	Units   []string
	Vectors [][]float32
}

// Entry is one searchable unit. Every unit of a document becomes its own entry.
type Entry struct {
	DOI    string
	Text   string
	Vector []float32
}

// Corpus is an immutable snapshot built once per run.
type Corpus struct {
	docs     []Document
	entries  []Entry
	excluded []string
	dim      int
	model    string
}

// Build validates docs and flattens them in document order, then unit order.
// Documents without units are skipped and reported by Excluded.
func Build(docs []Document, model string) (*Corpus, error) {
	c := &Corpus{model: model}
	seen := make(map[string]struct{}, len(docs))

	for i := range docs {
		d := docs[i]
		if len(d.Units) != len(d.Vectors) {
			return nil, fmt.Errorf("document %q: %d units, %d vectors: %w",
				d.DOI, len(d.Units), len(d.Vectors), domain.ErrMisaligned)
		}
		if _, dup := seen[d.DOI]; dup {
			return nil, fmt.Errorf("document %q: %w", d.DOI, ErrDuplicateDOI)
		}
		seen[d.DOI] = struct{}{}
		if len(d.Units) == 0 {
			c.excluded = append(c.excluded, d.DOI)
			continue
		}
		for j, v := range d.Vectors {
			if len(v) == 0 {
				return nil, fmt.Errorf("document %q unit %d: empty vector: %w",
					d.DOI, j, domain.ErrVectorDimMismatch)
			}
			if c.dim == 0 {
				c.dim = len(v)
			}
			if len(v) != c.dim {
				return nil, fmt.Errorf("document %q unit %d: %w", d.DOI, j, domain.NewDimensionError(c.dim, len(v)))
			}
			c.entries = append(c.entries, Entry{DOI: d.DOI, Text: d.Units[j], Vector: v})
		}
		c.docs = append(c.docs, d)
	}
	return c, nil
}

// Entries returns the flat entry list. Callers must not mutate it.
func (c *Corpus) Entries() []Entry { return c.entries }

// Documents returns the included documents in input order.
func (c *Corpus) Documents() []Document { return c.docs }

// Excluded returns identifiers of documents dropped for having no units.
func (c *Corpus) Excluded() []string { return c.excluded }

// Dim returns the vector dimension, 0 for an empty corpus.
func (c *Corpus) Dim() int { return c.dim }

// Model returns the id of the model that produced the vectors.
func (c *Corpus) Model() string { return c.model }

// Len returns the number of entries.
func (c *Corpus) Len() int { return len(c.entries) }

// DOIs returns the set of included document identifiers.
func (c *Corpus) DOIs() map[string]struct{} {
	out := make(map[string]struct{}, len(c.docs))
	for _, d := range c.docs {
		out[d.DOI] = struct{}{}
	}
	return out
}
