package wikipedia

import (
	"regexp"
	"strings"

	"github.com/kailas-cloud/citesearch/internal/domain/paper"
	"github.com/kailas-cloud/citesearch/internal/domain/queryset"
	"github.com/kailas-cloud/citesearch/internal/domain/segment"
)

var (
	linkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)

	// <ref name="x">body</ref>, <ref name=x /> and bare <ref>body</ref>
	refRe     = regexp.MustCompile(`(?is)<ref(\s[^>]*?)?(/>|>(.*?)</ref\s*>)`)
	refNameRe = regexp.MustCompile(`(?i)name\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s/>]+))`)

	doiParamRe = regexp.MustCompile(`(?i)\bdoi\s*=\s*(10\.\d{4,9}/[^\s|}<\]]+)`)
	doiTmplRe  = regexp.MustCompile(`(?i)\{\{\s*doi\s*\|\s*(10\.\d{4,9}/[^\s|}<\]]+)`)
	doiURLRe   = regexp.MustCompile(`(?i)doi\.org/(10\.\d{4,9}/[^\s|}<\]]+)`)

	commentRe = regexp.MustCompile(`(?s)<!--.*?-->`)
	tagRe     = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	extLinkRe = regexp.MustCompile(`\[(?:https?:)?//\S+(?:\s+([^\]]*))?\]`)
	quoteRe   = regexp.MustCompile(`'{2,}`)
)

// ArticlesFromBullets returns the lowercased titles linked from bullet lines ("* ...").
// Labels (|label) and section anchors (#section) are dropped and duplicates removed per line.
func ArticlesFromBullets(wikitext string) []string {
	var out []string
	for line := range strings.SplitSeq(wikitext, "\n") {
		if len(line) <= 3 || !strings.HasPrefix(line, "* ") {
			continue
		}
		seen := map[string]struct{}{}
		for _, m := range linkRe.FindAllStringSubmatch(line, -1) {
			title := m[1]
			if i := strings.IndexByte(title, '|'); i >= 0 {
				title = title[:i]
			}
			if i := strings.IndexByte(title, '#'); i >= 0 {
				title = title[:i]
			}
			title = strings.ToLower(strings.TrimSpace(title))
			if title == "" {
				continue
			}
			if _, dup := seen[title]; dup {
				continue
			}
			seen[title] = struct{}{}
			out = append(out, title)
		}
	}
	return out
}

// CitationContexts pairs every DOI cited in a <ref> with the sentence of prose the ref
// follows. Named refs reused later (<ref name="x"/>) cite the DOIs of their definition.
func CitationContexts(wikitext string) []queryset.Candidate {
	wikitext = commentRe.ReplaceAllString(wikitext, "")
	named := namedRefDOIs(wikitext)

	var out []queryset.Candidate
	for line := range strings.SplitSeq(wikitext, "\n") {
		if !isProse(line) {
			continue
		}
		for _, loc := range refRe.FindAllStringSubmatchIndex(line, -1) {
			dois := refDOIs(line, loc, named)
			if len(dois) == 0 {
				continue
			}
			sentences := segment.Split(Clean(line[:loc[0]]))
			if len(sentences) == 0 {
				continue
			}
			text := sentences[len(sentences)-1]
			for _, doi := range dois {
				out = append(out, queryset.Candidate{Text: text, DOI: doi})
			}
		}
	}
	return out
}

func namedRefDOIs(wikitext string) map[string][]string {
	named := map[string][]string{}
	for _, m := range refRe.FindAllStringSubmatch(wikitext, -1) {
		name := refName(m[1])
		if name == "" || m[3] == "" {
			continue
		}
		if dois := extractDOIs(m[3]); len(dois) > 0 {
			named[name] = dois
		}
	}
	return named
}

func refDOIs(line string, loc []int, named map[string][]string) []string {
	var attrs, body string
	if loc[2] >= 0 {
		attrs = line[loc[2]:loc[3]]
	}
	if loc[6] >= 0 {
		body = line[loc[6]:loc[7]]
	}
	if dois := extractDOIs(body); len(dois) > 0 {
		return dois
	}
	return named[refName(attrs)]
}

func refName(attrs string) string {
	m := refNameRe.FindStringSubmatch(attrs)
	if m == nil {
		return ""
	}
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}

func extractDOIs(s string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, re := range []*regexp.Regexp{doiParamRe, doiTmplRe, doiURLRe} {
		for _, m := range re.FindAllStringSubmatch(s, -1) {
			doi := paper.NormalizeDOI(strings.TrimRight(m[1], ".,;"))
			if _, dup := seen[doi]; dup {
				continue
			}
			seen[doi] = struct{}{}
			out = append(out, doi)
		}
	}
	return out
}

// isProse skips table rows, headings, templates and file embeds.
func isProse(line string) bool {
	t := strings.TrimSpace(line)
	if t == "" {
		return false
	}
	for _, p := range []string{"{|", "|", "!", "=", "{{", "}}", "[[File:", "[[Image:", "[[Category:"} {
		if strings.HasPrefix(t, p) {
			return false
		}
	}
	return true
}

// Clean reduces a wikitext fragment to plain prose: refs, templates, comments and HTML tags
// are removed, links are replaced by their label and bold/italic quotes dropped.
func Clean(s string) string {
	s = commentRe.ReplaceAllString(s, "")
	s = refRe.ReplaceAllString(s, "")
	s = stripTemplates(s)
	s = linkRe.ReplaceAllStringFunc(s, func(m string) string {
		inner := m[2 : len(m)-2]
		if i := strings.LastIndexByte(inner, '|'); i >= 0 {
			return inner[i+1:]
		}
		return inner
	})
	s = extLinkRe.ReplaceAllString(s, "$1")
	s = tagRe.ReplaceAllString(s, "")
	s = quoteRe.ReplaceAllString(s, "")
	s = strings.TrimLeft(strings.TrimSpace(s), "*#:; ")
	return strings.Join(strings.Fields(s), " ")
}

// stripTemplates removes {{...}} blocks, honoring nesting. An unclosed template swallows the
// rest of the text.
func stripTemplates(s string) string {
	var b strings.Builder
	depth := 0
	for i := 0; i < len(s); i++ {
		switch {
		case strings.HasPrefix(s[i:], "{{"):
			depth++
			i++
		case depth > 0 && strings.HasPrefix(s[i:], "}}"):
			depth--
			i++
		case depth == 0:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
