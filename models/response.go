package models

// QueryResult is the outcome of one preset query, handed to formatters and
// transports. When Success is false only Error is meaningful.
type QueryResult struct {
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	ErrorCode   string    `json:"-"`
	Kind        QueryKind `json:"kind"`
	StockCode   string    `json:"stock_code"`
	Warrants    []Warrant `json:"warrants"`
	Total       int       `json:"total"`
	Scanned     int       `json:"scanned"`
	Filter      string    `json:"filter"`    // "無" when no name filter applies
	MaxPages    int       `json:"max_pages"` // 0 means every page
	FailedPages []int     `json:"failed_pages"`
	Cached      bool      `json:"-"`
}

// QueryResponse is the response for GET /api/v1/warrants/:code.
type QueryResponse struct {
	// Success indicates whether the crawl completed.
	Success bool `json:"success"`

	// Result is populated on success.
	Result *QueryResult `json:"result,omitempty"`

	// Timing provides the end-to-end duration.
	Timing TimingInfo `json:"timing"`

	// CacheStatus is "hit" or "miss" when caching is enabled.
	CacheStatus string `json:"cache_status,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent serving a request.
type TimingInfo struct {
	TotalMs int64 `json:"total_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status       string `json:"status"` // "healthy" or "degraded"
	Uptime       string `json:"uptime"`
	Engine       string `json:"engine"`
	ActiveCrawls int    `json:"active_crawls"`
	MaxCrawls    int    `json:"max_crawls"`
	Version      string `json:"version"`
}
