package citesearch

import (
	"time"

	dompaper "github.com/kailas-cloud/citesearch/internal/domain/paper"
	"github.com/kailas-cloud/citesearch/internal/domain/search/result"
)

// Hit is one matching sentence and the paper it belongs to.
type Hit struct {
	DOI      string
	Sentence string
	Score    float64
}

// Paper is the stored metadata of one harvested work.
type Paper struct {
	DOI       string
	Title     string
	Abstract  string
	Journal   string
	Publisher string
	Authors   []string
	Subjects  []string
	CitedBy   int
	Published time.Time
}

func toHits(res []result.Result) []Hit {
	hits := make([]Hit, len(res))
	for i := range res {
		hits[i] = Hit{
			DOI:      res[i].DOI(),
			Sentence: res[i].Sentence(),
			Score:    res[i].Score(),
		}
	}
	return hits
}

func toPaper(p dompaper.Paper) Paper {
	authors := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		if name := a.Name(); name != "" {
			authors = append(authors, name)
		}
	}
	abstract := p.Text
	if abstract == "" {
		abstract = p.Abstract
	}
	return Paper{
		DOI:       p.DOI,
		Title:     p.Title,
		Abstract:  abstract,
		Journal:   p.Journal,
		Publisher: p.Publisher,
		Authors:   authors,
		Subjects:  p.Subjects,
		CitedBy:   p.CitedBy,
		Published: p.Published,
	}
}
