package queryset

import (
	"strings"
	"unicode/utf8"
)

// Reason names why a candidate was rejected.
type Reason string

// Rejection reasons.
const (
	ReasonTooShort   Reason = "too_short"
	ReasonTooLong    Reason = "too_long"
	ReasonDisallowed Reason = "disallowed_substring"
	ReasonUnknownDOI Reason = "unknown_doi"
)

// Defaults for citation-context queries.
const (
	DefaultMinLen = 75
	DefaultMaxLen = 175
)

// DefaultDisallowed rejects wiki markup and raw links leaking into query text.
var DefaultDisallowed = []string{"|", "{", "}", "http"}

// Policy decides which candidates become queries. Lengths count characters, not bytes.
// A nil Known accepts any DOI.
type Policy struct {
	MinLen     int
	MaxLen     int
	Disallowed []string
	Known      map[string]struct{}
}

// DefaultPolicy returns the standard bounds restricted to the known DOIs.
func DefaultPolicy(known map[string]struct{}) Policy {
	return Policy{
		MinLen:     DefaultMinLen,
		MaxLen:     DefaultMaxLen,
		Disallowed: append([]string(nil), DefaultDisallowed...),
		Known:      known,
	}
}

// Check returns the first reason c is rejected, or ok=true when it is accepted.
func (p Policy) Check(c Candidate) (Reason, bool) {
	n := utf8.RuneCountInString(c.Text)
	if n < p.MinLen {
		return ReasonTooShort, false
	}
	if p.MaxLen > 0 && n > p.MaxLen {
		return ReasonTooLong, false
	}
	for _, d := range p.Disallowed {
		if d != "" && strings.Contains(c.Text, d) {
			return ReasonDisallowed, false
		}
	}
	if p.Known != nil {
		if _, ok := p.Known[c.DOI]; !ok {
			return ReasonUnknownDOI, false
		}
	}
	return "", true
}
