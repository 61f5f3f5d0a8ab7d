package crossref

// journalPage is the /journals message.
type journalPage struct {
	TotalResults int       `json:"total-results"`
	ItemsPerPage int       `json:"items-per-page"`
	NextCursor   string    `json:"next-cursor"`
	Items        []journal `json:"items"`
}

type journal struct {
	Title    string     `json:"title"`
	ISSNType []typedVal `json:"issn-type"`
	Counts   struct {
		TotalDOIs int `json:"total-dois"`
	} `json:"counts"`
	Coverage struct {
		All struct {
			Abstracts float64 `json:"abstracts"`
		} `json:"all"`
	} `json:"coverage-type"`
}

// usableAbstracts estimates how many works of the journal carry an abstract.
func (j journal) usableAbstracts() float64 {
	return float64(j.Counts.TotalDOIs) * j.Coverage.All.Abstracts
}

func (j journal) electronicISSN() string {
	for _, t := range j.ISSNType {
		if t.Type == "electronic" {
			return t.Value
		}
	}
	return ""
}

// workPage is the /works message.
type workPage struct {
	TotalResults int    `json:"total-results"`
	ItemsPerPage int    `json:"items-per-page"`
	NextCursor   string `json:"next-cursor"`
	Items        []work `json:"items"`
}

type work struct {
	DOI               string     `json:"DOI"`
	Abstract          string     `json:"abstract"`
	ArticleNumber     string     `json:"article-number"`
	Author            []author   `json:"author"`
	ContainerTitle    []string   `json:"container-title"`
	CitedBy           int        `json:"is-referenced-by-count"`
	ISSNType          []typedVal `json:"issn-type"`
	Issue             string     `json:"issue"`
	Link              []link     `json:"link"`
	Page              string     `json:"page"`
	Published         dateParts  `json:"published"`
	Publisher         string     `json:"publisher"`
	PublisherLocation string     `json:"publisher-location"`
	ShortTitle        []string   `json:"short-title"`
	Subject           []string   `json:"subject"`
	Subtitle          []string   `json:"subtitle"`
	Title             []string   `json:"title"`
	Type              string     `json:"type"`
	Volume            string     `json:"volume"`
}

type author struct {
	Given  string `json:"given"`
	Family string `json:"family"`
	ORCID  string `json:"ORCID"`
}

type link struct {
	URL string `json:"URL"`
}

type typedVal struct {
	Value string `json:"value"`
	Type  string `json:"type"`
}

type dateParts struct {
	Parts [][]int `json:"date-parts"`
}
