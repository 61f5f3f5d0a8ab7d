package crossref

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/kailas-cloud/citesearch/internal/domain"
)

// ParseAbstract extracts the plain text of the first paragraph (<jats:p> or <p>) of a JATS
// abstract. Markup inside the paragraph is dropped and whitespace collapsed.
// An abstract without a non-empty paragraph yields domain.ErrMissingAbstract.
func ParseAbstract(raw string) (string, error) {
	z := html.NewTokenizer(strings.NewReader(raw))
	depth := 0
	var b strings.Builder

	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) && depth > 0 {
				// unterminated paragraph: keep what was read
				return finish(b.String())
			}
			return "", domain.ErrMissingAbstract
		case html.StartTagToken:
			name, _ := z.TagName()
			if isParagraph(name) {
				depth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if isParagraph(name) && depth > 0 {
				depth--
				if depth == 0 {
					return finish(b.String())
				}
			}
		case html.TextToken:
			if depth > 0 {
				b.Write(z.Text())
			}
		}
	}
}

func isParagraph(name []byte) bool {
	s := string(name)
	return s == "p" || s == "jats:p"
}

func finish(s string) (string, error) {
	s = collapse(s)
	if s == "" {
		return "", domain.ErrMissingAbstract
	}
	return s, nil
}

// StripTags removes markup (e.g. <i>, <sub>, <mml:math>) and collapses whitespace.
func StripTags(s string) string {
	if !strings.Contains(s, "<") {
		return collapse(s)
	}
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return collapse(b.String())
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Title looks up the title of a work. Unknown DOIs and works without a title yield
// domain.ErrNoTitle.
func (c *Client) Title(ctx context.Context, doi string) (string, error) {
	var w work
	err := c.getJSON(ctx, "/works/"+url.PathEscape(doi), nil, &w)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("%s: no resource: %w", doi, domain.ErrNoTitle)
		}
		return "", err
	}
	title := StripTags(first(w.Title))
	if title == "" {
		return "", fmt.Errorf("%s: %w", doi, domain.ErrNoTitle)
	}
	return title, nil
}
