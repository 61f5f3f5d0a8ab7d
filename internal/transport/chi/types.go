package chi

// ErrorCode is the machine-readable error code of an ErrorResponse.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest             ErrorCode = "bad_request"
	CodeValidationFailed       ErrorCode = "validation_failed"
	CodeUnauthorized           ErrorCode = "unauthorized"
	CodeNotFound               ErrorCode = "not_found"
	CodeVectorDimMismatch      ErrorCode = "vector_dim_mismatch"
	CodeRateLimited            ErrorCode = "rate_limited"
	CodeIndexUnavailable       ErrorCode = "index_unavailable"
	CodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	CodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// VectorSearchRequest is the body of POST /search/vector.
type VectorSearchRequest struct {
	Text string `json:"text"`
	TopK *int   `json:"top_k,omitempty"`
}

// SearchHit is one matching sentence.
type SearchHit struct {
	DOI      string  `json:"doi"`
	Sentence string  `json:"sentence"`
	Score    float64 `json:"score"`
}

// SearchResponse lists hits best first.
type SearchResponse struct {
	Results []SearchHit `json:"results"`
}

// PaperResponse is the stored metadata of one paper.
type PaperResponse struct {
	DOI       string   `json:"doi"`
	Title     string   `json:"title"`
	Abstract  string   `json:"abstract,omitempty"`
	Journal   string   `json:"journal,omitempty"`
	ISSN      string   `json:"issn,omitempty"`
	Authors   []string `json:"authors"`
	CitedBy   int      `json:"cited_by"`
	Published *string  `json:"published,omitempty"`
}

// HealthResponse reports component health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
