// Package segment splits plain-text abstracts into ordered sentences.
package segment

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// abbreviations never end a sentence. Keys are lowercased and include the trailing dot.
var abbreviations = map[string]struct{}{
	"al.": {}, "approx.": {}, "ca.": {}, "cf.": {}, "co.": {}, "dr.": {},
	"e.g.": {}, "eq.": {}, "eqs.": {}, "fig.": {}, "figs.": {}, "i.e.": {},
	"inc.": {}, "jr.": {}, "ltd.": {}, "max.": {}, "min.": {}, "mr.": {},
	"mrs.": {}, "ms.": {}, "no.": {}, "nos.": {}, "prof.": {}, "ref.": {},
	"refs.": {}, "resp.": {}, "sec.": {}, "sect.": {}, "sp.": {}, "spp.": {},
	"sr.": {}, "st.": {}, "viz.": {}, "vol.": {}, "vs.": {}, "wt.": {},
}

// Split returns the sentences of abstract in order, trimmed, with empty ones dropped.
// Text without any sentence content yields an empty slice.
func Split(abstract string) []string {
	text := strings.Join(strings.Fields(norm.NFC.String(abstract)), " ")
	if text == "" {
		return []string{}
	}

	var out []string
	start := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isTerminal(r) {
			i += size
			continue
		}
		end := i + size
		for end < len(text) {
			next, n := utf8.DecodeRuneInString(text[end:])
			if !isTerminal(next) && !isCloser(next) {
				break
			}
			end += n
		}
		if boundary(text, start, i, end) {
			out = appendSentence(out, text[start:end])
			start = end + 1
			i = start
			continue
		}
		i = end
	}
	if start < len(text) {
		out = appendSentence(out, text[start:])
	}
	if out == nil {
		return []string{}
	}
	return out
}

// boundary reports whether the terminal run text[dot:end] closes the sentence opened at start.
func boundary(text string, start, dot, end int) bool {
	if end >= len(text) || text[end] != ' ' || end+1 >= len(text) {
		return false
	}
	next, _ := utf8.DecodeRuneInString(text[end+1:])
	if !unicode.IsUpper(next) && !unicode.IsDigit(next) && !isOpener(next) {
		return false
	}
	if text[dot] != '.' {
		return true
	}
	return !isAbbreviation(lastWord(text[start : dot+1]))
}

func lastWord(s string) string {
	word := s[strings.LastIndexByte(s, ' ')+1:]
	return strings.TrimLeftFunc(word, isOpener)
}

func isAbbreviation(word string) bool {
	if _, ok := abbreviations[strings.ToLower(word)]; ok {
		return true
	}
	body := strings.TrimSuffix(word, ".")
	if utf8.RuneCountInString(body) == 1 {
		r, _ := utf8.DecodeRuneInString(body)
		return unicode.IsUpper(r)
	}
	// dotted initialisms such as "U.S." or "p.m."
	if strings.Contains(body, ".") {
		for _, part := range strings.Split(body, ".") {
			if utf8.RuneCountInString(part) != 1 {
				return false
			}
		}
		return true
	}
	return false
}

func appendSentence(out []string, s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || !strings.ContainsFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) {
		return out
	}
	return append(out, s)
}

func isTerminal(r rune) bool { return r == '.' || r == '!' || r == '?' }

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '}', '”', '’', '»':
		return true
	}
	return false
}

func isOpener(r rune) bool {
	switch r {
	case '"', '\'', '(', '[', '{', '“', '‘', '«':
		return true
	}
	return false
}
