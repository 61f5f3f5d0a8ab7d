package datafile

import (
	"encoding/json"

	"github.com/kailas-cloud/citesearch/internal/domain/corpus"
	"github.com/kailas-cloud/citesearch/internal/domain/queryset"
)

// unitDTO is one embedded unit of a corpus document. Files written by other tools may hold a
// bare vector per unit; it decodes with empty text.
type unitDTO struct {
	Text   string    `json:"text"`
	Vector []float32 `json:"vector"`
}

func (u *unitDTO) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		u.Text = ""
		return json.Unmarshal(data, &u.Vector)
	}
	type plain unitDTO
	return json.Unmarshal(data, (*plain)(u))
}

// queryDTO is one query record. Vector is absent before embedding.
type queryDTO struct {
	Text   string    `json:"text"`
	DOIs   []string  `json:"dois"`
	Vector []float32 `json:"vector,omitempty"`
}

// metaFile is the sidecar carrying the model id of a corpus or query file.
type metaFile struct {
	Model string `json:"model"`
}

// CandidateDTO is one citation context line in a candidates file.
type CandidateDTO struct {
	Text string `json:"text"`
	DOI  string `json:"doi"`
}

// SourceDTO is one segmented paper line in a sources file.
type SourceDTO struct {
	DOI       string   `json:"doi"`
	Title     string   `json:"title"`
	Abstract  string   `json:"abstract"`
	Sentences []string `json:"sentences"`
}

func unitsToDTO(d corpus.Document) []unitDTO {
	out := make([]unitDTO, len(d.Units))
	for i := range d.Units {
		out[i] = unitDTO{Text: d.Units[i], Vector: d.Vectors[i]}
	}
	return out
}

func documentFromDTO(doi string, units []unitDTO) corpus.Document {
	d := corpus.Document{DOI: doi, Units: make([]string, len(units)), Vectors: make([][]float32, len(units))}
	for i, u := range units {
		d.Units[i], d.Vectors[i] = u.Text, u.Vector
	}
	return d
}

func queryToDTO(q queryset.Query) queryDTO {
	return queryDTO{Text: q.Text, DOIs: q.Relevant, Vector: q.Vector}
}

func queryFromDTO(i int, d queryDTO) queryset.Query {
	return queryset.Query{Index: i, Text: d.Text, Relevant: d.DOIs, Vector: d.Vector}
}

// Source converts the line to the corpus source record.
func (s SourceDTO) Source() corpus.Source {
	return corpus.Source(s)
}

// SourceToDTO converts a corpus source record to its file line.
func SourceToDTO(s corpus.Source) SourceDTO {
	return SourceDTO(s)
}

// Candidate converts the line to a query candidate.
func (c CandidateDTO) Candidate() queryset.Candidate {
	return queryset.Candidate(c)
}

// CandidateToDTO converts a query candidate to its file line.
func CandidateToDTO(c queryset.Candidate) CandidateDTO {
	return CandidateDTO(c)
}
