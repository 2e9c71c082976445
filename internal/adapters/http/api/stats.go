package api

import (
	"net/http"
	"time"
)

// StatsProvider exposes the service's runtime counters.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// playCounter is implemented by play feed indexes that know their size.
type playCounter interface {
	Len() int
}

// StatsHandler serves GET /stats: the provider's counters plus server
// uptime and play feed availability.
type StatsHandler struct {
	provider StatsProvider
	plays    PlayFeeds
	started  time.Time
}

// NewStatsHandler wraps provider. plays may be nil.
func NewStatsHandler(provider StatsProvider, plays PlayFeeds) *StatsHandler {
	return &StatsHandler{provider: provider, plays: plays, started: time.Now()}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, _ *http.Request) {
	out := make(map[string]interface{})
	if h.provider != nil {
		for k, v := range h.provider.GetStats() {
			out[k] = v
		}
	}
	out["uptimeSeconds"] = int64(time.Since(h.started).Seconds())

	feeds := map[string]interface{}{"enabled": h.plays != nil}
	if c, ok := h.plays.(playCounter); ok {
		feeds["count"] = c.Len()
	}
	out["playFeeds"] = feeds
	writeJSON(w, http.StatusOK, out)
}
