package handlers

import (
	"net/http"

	"github.com/marmos91/execgate/internal/bytesize"
	"github.com/marmos91/execgate/pkg/backpressure"
	"github.com/marmos91/execgate/pkg/cache"
)

// StatusHandler handles the admission-state status endpoint.
type StatusHandler struct {
	cache      *cache.AvailabilityCache
	manager    *backpressure.Manager
	subscriber *backpressure.Subscriber
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(c *cache.AvailabilityCache, manager *backpressure.Manager) *StatusHandler {
	h := &StatusHandler{cache: c, manager: manager}
	if manager != nil {
		h.subscriber = manager.Subscribe()
	}
	return h
}

// StatusResponse is the admission-state snapshot returned by GET /status.
type StatusResponse struct {
	Watermarks   backpressure.Watermarks `json:"watermarks"`
	Backpressure bool                    `json:"backpressure"`
	Cache        cache.Stats             `json:"cache"`

	// Footprint is the cache byte footprint rendered human-readable,
	// e.g. "1.25MiB".
	Footprint string `json:"footprint"`
}

// Status handles GET /status - one consistent snapshot of the admission
// state: checkpoint watermarks, the effective backpressure flag (after the
// suppression rule), and cache occupancy.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil || h.manager == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("admission state not initialized"))
		return
	}

	stats := h.cache.Stats()
	writeJSON(w, http.StatusOK, okResponse(StatusResponse{
		Watermarks:   h.manager.Watermarks(),
		Backpressure: h.subscriber.IsBackpressureActive(),
		Cache:        stats,
		Footprint:    bytesize.ByteSize(stats.FootprintBytes).String(),
	}))
}
