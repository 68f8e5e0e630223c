package handlers

import (
	"net/http"

	"github.com/marmos91/execgate/pkg/backpressure"
	"github.com/marmos91/execgate/pkg/cache"
)

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated and provide:
//   - Liveness probe: Is the server process running?
//   - Readiness probe: Are the cache and backpressure manager wired up?
type HealthHandler struct {
	cache   *cache.AvailabilityCache
	manager *backpressure.Manager
}

// NewHealthHandler creates a new health handler.
//
// Either parameter may be nil, in which case the readiness probe reports
// unhealthy.
func NewHealthHandler(c *cache.AvailabilityCache, manager *backpressure.Manager) *HealthHandler {
	return &HealthHandler{cache: c, manager: manager}
}

// Liveness handles GET /health - simple liveness probe.
//
// Returns 200 OK if the server process is running. Designed for Kubernetes
// liveness probes; succeeds as long as the HTTP server is responsive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "execgate",
	}))
}

// Readiness handles GET /health/ready - readiness probe.
//
// Returns 200 OK once the availability cache and backpressure manager are
// initialized, 503 Service Unavailable otherwise.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("availability cache not initialized"))
		return
	}
	if h.manager == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("backpressure manager not initialized"))
		return
	}

	stats := h.cache.Stats()
	writeJSON(w, http.StatusOK, healthyResponse(map[string]interface{}{
		"dirty_entries":  stats.DirtyEntries,
		"cached_entries": stats.CachedEntries,
	}))
}
