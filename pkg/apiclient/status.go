package apiclient

// Watermarks mirrors the checkpoint watermark pair in the status response.
type Watermarks struct {
	Executed  uint64 `json:"executed"`
	Certified uint64 `json:"certified"`
}

// CacheStats mirrors the cache occupancy section of the status response.
type CacheStats struct {
	PendingWaiters int   `json:"pending_waiters"`
	PendingKeys    int   `json:"pending_keys"`
	DirtyEntries   int   `json:"dirty_entries"`
	CachedEntries  int   `json:"cached_entries"`
	Markers        int   `json:"markers"`
	FootprintBytes int64 `json:"footprint_bytes"`
}

// Status is the admission-state snapshot returned by GET /status.
type Status struct {
	Watermarks   Watermarks `json:"watermarks"`
	Backpressure bool       `json:"backpressure"`
	Cache        CacheStats `json:"cache"`
	Footprint    string     `json:"footprint"`
}

// GetStatus fetches the admission-state snapshot.
func (c *Client) GetStatus() (*Status, error) {
	var status Status
	if err := c.get("/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Readiness describes the service's readiness probe result.
type Readiness struct {
	DirtyEntries  int `json:"dirty_entries"`
	CachedEntries int `json:"cached_entries"`
}

// GetReadiness fetches the readiness probe. A *APIError with
// IsUnavailable() set means the service is up but not ready.
func (c *Client) GetReadiness() (*Readiness, error) {
	var ready Readiness
	if err := c.get("/health/ready", &ready); err != nil {
		return nil, err
	}
	return &ready, nil
}

// CheckHealth performs the liveness probe.
func (c *Client) CheckHealth() error {
	return c.get("/health", nil)
}
