package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/13g7895123/stock.warrant/models"
	"github.com/gin-gonic/gin"
)

// QueryRunner executes a query. *query.Service satisfies it.
type QueryRunner interface {
	Run(ctx context.Context, intent models.QueryIntent) *models.QueryResult
}

// GetWarrants returns a handler for GET /api/v1/warrants/:code.
//
// Flow:
//  1. Bind kind, max_pages and name from the query string.
//  2. Run the query on the request context (client disconnect cancels it).
//  3. Map failures to a status code, or return the result.
func GetWarrants(queries QueryRunner) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.QueryRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err), start)
			return
		}
		code := c.Param("code")
		if !models.ValidStockCode(code) {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput,
				"stock code must be 4 to 6 digits", nil), start)
			return
		}
		kind, err := models.ParseQueryKind(req.Kind)
		if err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err), start)
			return
		}

		// ── 2. Query ────────────────────────────────────────────────
		res := queries.Run(c.Request.Context(), models.QueryIntent{
			Kind:         kind,
			StockCode:    code,
			MaxPages:     req.MaxPages,
			NameContains: req.Name,
		})

		// ── 3. Respond ──────────────────────────────────────────────
		if !res.Success {
			respondError(c, resultError(res), start)
			return
		}
		cacheStatus := "miss"
		if res.Cached {
			cacheStatus = "hit"
		}
		c.JSON(http.StatusOK, models.QueryResponse{
			Success:     true,
			Result:      res,
			Timing:      models.TimingInfo{TotalMs: time.Since(start).Milliseconds()},
			CacheStatus: cacheStatus,
		})
	}
}

// resultError rebuilds the error carried by a failed result.
func resultError(res *models.QueryResult) *models.ScrapeError {
	code := res.ErrorCode
	if code == "" {
		code = models.ErrCodeInternal
	}
	return models.NewScrapeError(code, res.Error, nil)
}

// respondError maps a ScrapeError to the correct HTTP status code and writes
// a structured JSON error response.
func respondError(c *gin.Context, err error, start time.Time) {
	var scrapeErr *models.ScrapeError
	if !errors.As(err, &scrapeErr) {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
	}

	c.JSON(mapErrorToStatus(scrapeErr), models.QueryResponse{
		Success: false,
		Error:   scrapeErr.ToDetail(),
		Timing:  models.TimingInfo{TotalMs: time.Since(start).Milliseconds()},
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodePageLoad:
		return http.StatusBadGateway // 502
	case models.ErrCodeBrowserLaunch:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodePageTimeout:
		return http.StatusGatewayTimeout // 504
	default:
		return http.StatusInternalServerError // 500
	}
}
