package handler

import (
	"net/http"
	"time"

	"github.com/13g7895123/stock.warrant/models"
	"github.com/gin-gonic/gin"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// ActiveCounter reports sessions currently held. Both scraper launchers
// satisfy it.
type ActiveCounter interface {
	Active() int
}

// Health returns a handler for GET /api/v1/health.
//
// Status is "degraded" while every crawl slot is busy, since new queries
// will queue.
func Health(sessions ActiveCounter, engine string, maxCrawls int, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		active := sessions.Active()

		status := "healthy"
		if maxCrawls > 0 && active >= maxCrawls {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:       status,
			Uptime:       time.Since(startTime).Round(time.Second).String(),
			Engine:       engine,
			ActiveCrawls: active,
			MaxCrawls:    maxCrawls,
			Version:      Version,
		})
	}
}
