package citesearch

import (
	"context"

	healthuc "github.com/kailas-cloud/citesearch/internal/usecase/health"
)

// Health check names.
const (
	CheckStore     = "database"
	CheckIndex     = "index"
	CheckEmbedding = "embedding"
)

// HealthStatus is the state of the citation store, the sentence index and, when configured,
// the embedding provider. Status is "ok" only when every check passes.
type HealthStatus struct {
	Status string
	Checks map[string]string
}

// Searchable reports whether citation search can answer: the store and the sentence index
// both respond. A failing embedding provider still leaves lookups by paper available.
func (h HealthStatus) Searchable() bool {
	return h.Checks[CheckStore] == "ok" && h.Checks[CheckIndex] == "ok"
}

// Health pings the citation store and the sentence index.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for name, res := range report.Checks {
		checks[name] = string(res)
	}
	return HealthStatus{Status: string(report.Status), Checks: checks}
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}
