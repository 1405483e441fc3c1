package api

import (
	"net/http"

	"sceneforge/pkg/pipeline"
	"sceneforge/pkg/registry"
	"sceneforge/pkg/tracker"
)

// StatsHandler reports provider outcomes and scheduler load.
type StatsHandler struct {
	tracker *tracker.Tracker
	pipe    *pipeline.Pipeline
	reg     *registry.Registry
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(t *tracker.Tracker, p *pipeline.Pipeline, reg *registry.Registry) *StatsHandler {
	return &StatsHandler{tracker: t, pipe: p, reg: reg}
}

// ProviderStatsDTO mirrors tracker counters for one provider.
type ProviderStatsDTO struct {
	Successes int64 `json:"successes"`
	Failures  int64 `json:"failures"`
	Retries   int64 `json:"retries"`
}

// StatsResponse is the full stats payload.
type StatsResponse struct {
	Providers  map[string]ProviderStatsDTO `json:"providers"`
	Schedulers map[string]int              `json:"schedulers"`
	QueueDepth int                         `json:"queue_depth"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Providers:  make(map[string]ProviderStatsDTO),
		Schedulers: h.pipe.Stats(),
		QueueDepth: len(h.reg.Queue()),
	}
	for provider, stats := range h.tracker.Snapshot() {
		resp.Providers[provider] = ProviderStatsDTO{
			Successes: stats.Successes,
			Failures:  stats.Failures,
			Retries:   stats.Retries,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
