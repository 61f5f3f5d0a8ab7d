package result

// Result is a single ranked hit: the document that owns the best-matching unit.
type Result struct {
	doi      string
	sentence string
	score    float64
	entry    int
}

// New creates a ranked hit. entry is the position of the matched unit in the corpus, -1 when
// the hit did not come from an in-process corpus.
func New(doi, sentence string, score float64, entry int) Result {
	return Result{doi: doi, sentence: sentence, score: score, entry: entry}
}

// DOI returns the document identifier.
func (r *Result) DOI() string { return r.doi }

// Sentence returns the text of the matched unit.
func (r *Result) Sentence() string { return r.sentence }

// Score returns the similarity score of the matched unit.
func (r *Result) Score() float64 { return r.score }

// Entry returns the corpus position of the matched unit.
func (r *Result) Entry() int { return r.entry }

// DOIs projects ranked hits to their document identifiers, keeping order.
func DOIs(results []Result) []string {
	out := make([]string, len(results))
	for i := range results {
		out[i] = results[i].doi
	}
	return out
}
