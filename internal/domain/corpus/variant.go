package corpus

import (
	"fmt"

	"github.com/kailas-cloud/citesearch/internal/domain"
)

// Variant selects which text of a paper becomes its searchable units.
type Variant string

// Supported variants.
const (
	Full           Variant = "full"
	Sentenced      Variant = "sentenced"
	Title          Variant = "title"
	TitleFull      Variant = "titlefull"
	TitleSentenced Variant = "titlesentenced"
)

// Variants lists every supported variant in a stable order.
var Variants = []Variant{Full, Sentenced, Title, TitleFull, TitleSentenced}

// ParseVariant validates a variant name.
func ParseVariant(s string) (Variant, error) {
	for _, v := range Variants {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown corpus variant %q: %w", s, domain.ErrInvalidRequest)
}

// Source is the unembedded text of one paper.
type Source struct {
	DOI       string
	Title     string
	Abstract  string
	Sentences []string
}

// Units builds the text units of src for variant v. Title variants need a title.
func (v Variant) Units(src Source) ([]string, error) {
	needsTitle := v == Title || v == TitleFull || v == TitleSentenced
	if needsTitle && src.Title == "" {
		return nil, fmt.Errorf("%s: %w", src.DOI, domain.ErrNoTitle)
	}
	switch v {
	case Full:
		if src.Abstract == "" {
			return nil, nil
		}
		return []string{src.Abstract}, nil
	case Sentenced:
		return append([]string(nil), src.Sentences...), nil
	case Title:
		return []string{src.Title}, nil
	case TitleFull:
		if src.Abstract == "" {
			return nil, nil
		}
		return []string{src.Title + ": " + src.Abstract}, nil
	case TitleSentenced:
		out := make([]string, len(src.Sentences))
		for i, s := range src.Sentences {
			out[i] = src.Title + ": " + s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown corpus variant %q: %w", string(v), domain.ErrInvalidRequest)
	}
}
