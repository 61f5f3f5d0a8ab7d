package wikipedia

import (
	"slices"
	"testing"

	"github.com/kailas-cloud/citesearch/internal/domain/queryset"
)

func TestArticlesFromBullets(t *testing.T) {
	text := "Intro line with [[Ignored]] link\n" +
		"* [[Food science]] and [[Food Science|food]] and [[Nutrition#History]]\n" +
		"* \n" +
		"** [[Nested]]\n" +
		"* [[Agronomy]]\n"

	got := ArticlesFromBullets(text)
	want := []string{"food science", "nutrition", "agronomy"}
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestCitationContexts_InlineRef(t *testing.T) {
	text := "Graphene is a single layer of carbon atoms. It conducts electricity very well." +
		"<ref>{{cite journal |title=X |doi=10.1000/ABC.1 |doi-access=free}}</ref> Trailing text.\n"

	got := CitationContexts(text)
	want := []queryset.Candidate{{Text: "It conducts electricity very well.", DOI: "10.1000/abc.1"}}
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestCitationContexts_NamedRefReuse(t *testing.T) {
	text := "First claim about [[soil|soils]] here.<ref name=\"smith\">{{doi|10.1000/s1}}</ref>\n" +
		"Second claim is ''emphasised'' here.<ref name=\"smith\" />\n"

	got := CitationContexts(text)
	want := []queryset.Candidate{
		{Text: "First claim about soils here.", DOI: "10.1000/s1"},
		{Text: "Second claim is emphasised here.", DOI: "10.1000/s1"},
	}
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestCitationContexts_SkipsNonProseAndRefsWithoutDOI(t *testing.T) {
	text := "== Heading<ref>doi=10.1000/h</ref> ==\n" +
		"{| class=\"wikitable\"\n" +
		"| Cell text.<ref>doi=10.1000/t</ref>\n" +
		"Prose without identifiers.<ref>Some book, 1999.</ref>\n" +
		"<!-- Commented.<ref>doi=10.1000/c</ref> -->\n"

	if got := CitationContexts(text); len(got) != 0 {
		t.Fatalf("expected no candidates, got %v", got)
	}
}

func TestCitationContexts_MultipleDOIsInOneRef(t *testing.T) {
	text := "Two papers agree.<ref>https://doi.org/10.1000/a; {{cite journal|doi=10.1000/b}}</ref>\n"

	got := CitationContexts(text)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %v", got)
	}
	dois := []string{got[0].DOI, got[1].DOI}
	slices.Sort(dois)
	if !slices.Equal(dois, []string{"10.1000/a", "10.1000/b"}) {
		t.Errorf("unexpected dois %v", dois)
	}
	for _, c := range got {
		if c.Text != "Two papers agree." {
			t.Errorf("unexpected text %q", c.Text)
		}
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"link label", "[[Carbon|carbon atoms]] bond", "carbon atoms bond"},
		{"plain link", "see [[Graphite]]", "see Graphite"},
		{"nested template", "a {{lang|fr|{{small|x}}}} b", "a b"},
		{"external link", "visit [https://example.org the site] now", "visit the site now"},
		{"bold italic", "'''bold''' and ''italic''", "bold and italic"},
		{"tags", "H<sub>2</sub>O is water", "H2O is water"},
		{"list marker", "*# item text", "item text"},
		{"self-closing ref", "text<ref name=a /> more", "text more"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
