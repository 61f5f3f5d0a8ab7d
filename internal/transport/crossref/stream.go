package crossref

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/citesearch/internal/domain/paper"
)

// Journals streams electronic ISSNs of journals matching keyword whose estimated abstract
// count exceeds minAbstracts. A failed page fetch ends the stream with that error.
func (c *Client) Journals(ctx context.Context, keyword string, minAbstracts int) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		cursor := "*"
		for cursor != "" {
			q := url.Values{}
			q.Set("query", keyword)
			q.Set("rows", strconv.Itoa(c.rows))
			q.Set("cursor", cursor)

			var page journalPage
			if err := c.getJSON(ctx, "/journals", q, &page); err != nil {
				yield("", fmt.Errorf("journals page: %w", err))
				return
			}
			cursor = nextCursor(page.NextCursor, len(page.Items), page.ItemsPerPage)

			for _, j := range page.Items {
				if j.usableAbstracts() <= float64(minAbstracts) {
					continue
				}
				issn := j.electronicISSN()
				if issn == "" {
					continue
				}
				if !yield(issn, nil) {
					return
				}
			}
		}
	}
}

// Works streams journal articles with abstracts from one journal, most cited first.
// Ordering lets the stream stop at the first work cited fewer than minCited times.
func (c *Client) Works(ctx context.Context, issn string, minCited int) iter.Seq2[paper.Paper, error] {
	return func(yield func(paper.Paper, error) bool) {
		cursor := "*"
		for cursor != "" {
			q := url.Values{}
			q.Set("filter", "issn:"+issn+",type:journal-article,has-abstract:true")
			q.Set("sort", "is-referenced-by-count")
			q.Set("order", "desc")
			q.Set("select", strings.Join(WorkFields, ","))
			q.Set("rows", strconv.Itoa(c.rows))
			q.Set("cursor", cursor)

			var page workPage
			if err := c.getJSON(ctx, "/works", q, &page); err != nil {
				yield(paper.Paper{}, fmt.Errorf("works page for %s: %w", issn, err))
				return
			}
			cursor = nextCursor(page.NextCursor, len(page.Items), page.ItemsPerPage)

			for i := range page.Items {
				w := &page.Items[i]
				if w.CitedBy < minCited {
					c.logger.Debug("Citation floor reached",
						zap.String("issn", issn), zap.Int("cited_by", w.CitedBy))
					return
				}
				if !yield(toPaper(w), nil) {
					return
				}
			}
		}
	}
}

// nextCursor ends pagination on a short page.
func nextCursor(next string, items, perPage int) string {
	if items == 0 || items < perPage {
		return ""
	}
	return next
}

func toPaper(w *work) paper.Paper {
	p := paper.Paper{
		DOI:               w.DOI,
		Title:             StripTags(first(w.Title)),
		Subtitle:          StripTags(first(w.Subtitle)),
		ShortTitle:        first(w.ShortTitle),
		Abstract:          w.Abstract,
		Journal:           first(w.ContainerTitle),
		Publisher:         w.Publisher,
		PublisherLocation: w.PublisherLocation,
		Type:              w.Type,
		Volume:            w.Volume,
		Issue:             w.Issue,
		Page:              w.Page,
		ArticleNumber:     w.ArticleNumber,
		Subjects:          w.Subject,
		CitedBy:           w.CitedBy,
		Published:         w.Published.time(),
	}
	for _, t := range w.ISSNType {
		if t.Type == "electronic" || p.ISSN == "" {
			p.ISSN = t.Value
		}
	}
	for _, a := range w.Author {
		p.Authors = append(p.Authors, paper.Author{Given: a.Given, Family: a.Family, ORCID: a.ORCID})
	}
	for _, l := range w.Link {
		p.Links = append(p.Links, l.URL)
	}
	return p
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// time converts CrossRef date-parts ([[year, month?, day?]]) to a UTC date.
func (d dateParts) time() time.Time {
	if len(d.Parts) == 0 || len(d.Parts[0]) == 0 || d.Parts[0][0] == 0 {
		return time.Time{}
	}
	parts := d.Parts[0]
	month, day := 1, 1
	if len(parts) > 1 && parts[1] > 0 {
		month = parts[1]
	}
	if len(parts) > 2 && parts[2] > 0 {
		day = parts[2]
	}
	return time.Date(parts[0], time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
