package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/13g7895123/stock.warrant/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_CrawlLifecycle(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.CrawlStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeCrawls))

	m.CrawlFinished("partial", 3*time.Second)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.activeCrawls))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.crawlsTotal.WithLabelValues("partial")))

	m.ObserveCrawl("launch_failed", 0)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.activeCrawls))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.crawlsTotal.WithLabelValues("launch_failed")))
}

func TestMetrics_PagesAndAttempts(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObservePage(models.PageOutcome{
		Status:  models.PageSuccess,
		Records: make([]models.Warrant, 15),
	})
	m.ObservePage(models.PageOutcome{Status: models.PageSuccess, Empty: models.EmptyNoRows})
	m.ObserveAttempt(nil)
	m.ObserveAttempt(models.NewScrapeError(models.ErrCodePageTimeout, "slow", errors.New("deadline")))

	assert.Equal(t, 15.0, testutil.ToFloat64(m.recordsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pagesTotal.WithLabelValues("success", "no_rows")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attemptsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attemptsTotal.WithLabelValues(models.ErrCodePageTimeout)))
}

func TestMetrics_QueriesByKind(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveQuery(models.QueryQuick, "ok")
	m.ObserveQuery(models.QueryQuick, "ok")
	m.ObserveQuery(models.QueryOutOfMoney, "error")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.queriesTotal.WithLabelValues("quick", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queriesTotal.WithLabelValues("outofmoney", "error")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CrawlStarted()
		m.CrawlFinished("completed", time.Second)
		m.ObservePage(models.PageOutcome{})
		m.ObserveAttempt(nil)
		m.ObserveQuery(models.QueryNormal, "ok")
	})
}
