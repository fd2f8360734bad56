package models

// SearchResponse is the response for the /api/v1/search endpoints.
type SearchResponse struct {
	// Success indicates whether the search completed without errors.
	// A search that found nothing is still a success with zero results.
	Success bool `json:"success"`

	// Page echoes the requested zero-based results page.
	Page int `json:"page"`

	// Total is len(Results).
	Total int `json:"total"`

	// Results are in the order the engine listed them.
	Results []SearchResult `json:"results"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent serving a request.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// PoolStats reports the state of the browser session pool.
type PoolStats struct {
	MaxSessions    int `json:"max_sessions"`
	LiveSessions   int `json:"live_sessions"`
	ActiveSessions int `json:"active_sessions"`
	Retired        int `json:"retired"`
}
