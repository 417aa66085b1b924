package models

// Job statuses.
const (
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobPartial    = "partial" // finished, but some pages failed
	JobFailed     = "failed"
)

// JobResponse is the immediate response for POST /api/v1/jobs.
type JobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// JobStatusResponse is the response for GET /api/v1/jobs/:id.
type JobStatusResponse struct {
	ID        string       `json:"id"`
	Status    string       `json:"status"`
	StockCode string       `json:"stock_code"`
	Result    *QueryResult `json:"result,omitempty"`
}

// QueryJob tracks an asynchronous query.
type QueryJob struct {
	ID            string
	Status        string
	StockCode     string
	Result        *QueryResult
	CreatedAt     int64 // unix timestamp
	WebhookURL    string
	WebhookSecret string
}
