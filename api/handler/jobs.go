package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/13g7895123/stock.warrant/models"
	"github.com/13g7895123/stock.warrant/webhook"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	jobTTL        = time.Hour
	jobTimeout    = 10 * time.Minute
	jobSweepEvery = 5 * time.Minute
)

// Jobs holds in-flight and finished query jobs for one hour.
type Jobs struct {
	store sync.Map // id -> *job
	now   func() time.Time
}

// job guards a models.QueryJob written by its worker and read by handlers.
type job struct {
	mu sync.Mutex
	models.QueryJob
}

func (j *job) status() models.JobStatusResponse {
	j.mu.Lock()
	defer j.mu.Unlock()
	return models.JobStatusResponse{
		ID:        j.ID,
		Status:    j.Status,
		StockCode: j.StockCode,
		Result:    j.Result,
	}
}

// NewJobs returns a store whose expired jobs are swept until ctx ends.
func NewJobs(ctx context.Context) *Jobs {
	j := &Jobs{now: time.Now}
	go func() {
		ticker := time.NewTicker(jobSweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.sweep()
			}
		}
	}()
	return j
}

func (j *Jobs) sweep() {
	cutoff := j.now().Add(-jobTTL).Unix()
	j.store.Range(func(key, value any) bool {
		if value.(*job).CreatedAt < cutoff {
			j.store.Delete(key)
		}
		return true
	})
}

// PostJob returns a handler for POST /api/v1/jobs.
//
// The query runs in the background; its result is kept for an hour and,
// when webhook_url is set, posted there signed with webhook_secret.
func PostJob(jobs *Jobs, queries QueryRunner) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req models.JobRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err), start)
			return
		}
		intent, err := req.Intent()
		if err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err), start)
			return
		}
		if !models.ValidStockCode(intent.StockCode) {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput,
				"stock code must be 4 to 6 digits", nil), start)
			return
		}

		j := &job{QueryJob: models.QueryJob{
			ID:            uuid.NewString(),
			Status:        models.JobProcessing,
			StockCode:     intent.StockCode,
			CreatedAt:     jobs.now().Unix(),
			WebhookURL:    req.WebhookURL,
			WebhookSecret: req.WebhookSecret,
		}}
		jobs.store.Store(j.ID, j)

		go runJob(j, queries, intent)

		c.JSON(http.StatusAccepted, models.JobResponse{
			ID:     j.ID,
			Status: models.JobProcessing,
		})
	}
}

// GetJob returns a handler for GET /api/v1/jobs/:id.
func GetJob(jobs *Jobs) gin.HandlerFunc {
	return func(c *gin.Context) {
		val, ok := jobs.store.Load(c.Param("id"))
		if !ok {
			respondError(c, models.NewScrapeError(models.ErrCodeNotFound, "job not found", nil), time.Now())
			return
		}
		c.JSON(http.StatusOK, val.(*job).status())
	}
}

func runJob(j *job, queries QueryRunner, intent models.QueryIntent) {
	log := slog.With("job_id", j.ID, "stock", intent.StockCode, "kind", intent.Kind)

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	res := queries.Run(ctx, intent)

	status := models.JobCompleted
	switch {
	case !res.Success:
		status = models.JobFailed
	case len(res.FailedPages) > 0:
		status = models.JobPartial
	}

	j.mu.Lock()
	j.Status = status
	j.Result = res
	url, secret := j.WebhookURL, j.WebhookSecret
	j.mu.Unlock()

	log.Info("job finished", "status", status, "total", res.Total)

	if url == "" {
		return
	}
	eventType := webhook.EventQueryCompleted
	if status == models.JobFailed {
		eventType = webhook.EventQueryFailed
	}
	webhook.DeliverAsync(url, secret, &webhook.Event{
		Type:      eventType,
		JobID:     j.ID,
		Timestamp: time.Now().Unix(),
		Data:      j.status(),
	}, nil)
}
