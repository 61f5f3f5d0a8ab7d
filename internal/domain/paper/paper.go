// Package paper holds the typed metadata record harvested for each scholarly work.
package paper

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/citesearch/internal/domain"
)

// Author is one contributor of a paper.
type Author struct {
	Given  string `json:"given,omitempty"`
	Family string `json:"family,omitempty"`
	ORCID  string `json:"orcid,omitempty"`
}

// Name returns "Given Family", or whichever part is present.
func (a Author) Name() string {
	return strings.TrimSpace(a.Given + " " + a.Family)
}

// Paper is the fixed field list kept from upstream work metadata.
// Abstract holds the raw JATS markup; Text is its plain-text form once parsed.
type Paper struct {
	DOI               string    `json:"doi"`
	Title             string    `json:"title"`
	Subtitle          string    `json:"subtitle,omitempty"`
	ShortTitle        string    `json:"short_title,omitempty"`
	Abstract          string    `json:"abstract,omitempty"`
	Text              string    `json:"text,omitempty"`
	Journal           string    `json:"journal,omitempty"`
	ISSN              string    `json:"issn,omitempty"`
	Publisher         string    `json:"publisher,omitempty"`
	PublisherLocation string    `json:"publisher_location,omitempty"`
	Type              string    `json:"type,omitempty"`
	Volume            string    `json:"volume,omitempty"`
	Issue             string    `json:"issue,omitempty"`
	Page              string    `json:"page,omitempty"`
	ArticleNumber     string    `json:"article_number,omitempty"`
	Subjects          []string  `json:"subjects,omitempty"`
	Authors           []Author  `json:"authors,omitempty"`
	Links             []string  `json:"links,omitempty"`
	CitedBy           int       `json:"cited_by"`
	Published         time.Time `json:"published,omitzero"`
}

// New normalizes p and validates its required fields: DOI, title and a raw abstract.
// DOIs are case-insensitive and stored lowercased.
func New(p Paper) (Paper, error) {
	p.DOI = NormalizeDOI(p.DOI)
	p.Title = strings.Join(strings.Fields(p.Title), " ")
	p.Abstract = strings.TrimSpace(p.Abstract)

	if p.DOI == "" {
		return Paper{}, fmt.Errorf("paper without doi: %w", domain.ErrInvalidRequest)
	}
	if p.Title == "" {
		return Paper{}, fmt.Errorf("paper %s: %w", p.DOI, domain.ErrNoTitle)
	}
	if p.Abstract == "" {
		return Paper{}, fmt.Errorf("paper %s: %w", p.DOI, domain.ErrMissingAbstract)
	}
	if p.CitedBy < 0 {
		p.CitedBy = 0
	}
	return p, nil
}

// NormalizeDOI trims resolver prefixes and lowercases a DOI.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi:"} {
		if len(doi) >= len(prefix) && strings.EqualFold(doi[:len(prefix)], prefix) {
			doi = doi[len(prefix):]
			break
		}
	}
	return strings.ToLower(doi)
}

// HasText reports whether the abstract was parsed into usable plain text.
func (p Paper) HasText() bool {
	return p.Text != "" && !IsMissing(p.Text)
}

// MissingAbstract is the placeholder stored in place of an unusable abstract.
const MissingAbstract = "> Missing Abstract"

// IsMissing reports whether s is a placeholder rather than real abstract text.
func IsMissing(s string) bool {
	return strings.HasPrefix(s, ">")
}
