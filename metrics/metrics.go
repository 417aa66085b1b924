// Package metrics exposes crawl and query counters to Prometheus.
//
// Every method is safe on a nil *Metrics, so components can run without
// telemetry in tests and one-shot CLI runs.
package metrics

import (
	"time"

	"github.com/13g7895123/stock.warrant/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors registered for one process.
type Metrics struct {
	crawlsTotal   *prometheus.CounterVec
	crawlDuration *prometheus.HistogramVec
	pagesTotal    *prometheus.CounterVec
	attemptsTotal *prometheus.CounterVec
	recordsTotal  prometheus.Counter
	queriesTotal  *prometheus.CounterVec
	activeCrawls  prometheus.Gauge
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in
// binaries and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		crawlsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warrant_crawls_total",
			Help: "Crawls finished, by status.",
		}, []string{"status"}),
		crawlDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "warrant_crawl_duration_seconds",
			Help:    "Wall time of a crawl from session acquisition to release.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"status"}),
		pagesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warrant_pages_total",
			Help: "Pages fetched, by outcome and empty reason.",
		}, []string{"status", "reason"}),
		attemptsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warrant_page_attempts_total",
			Help: "Page load attempts, by result code.",
		}, []string{"result"}),
		recordsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "warrant_records_total",
			Help: "Warrant rows extracted.",
		}),
		queriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warrant_queries_total",
			Help: "Preset queries served, by kind and status.",
		}, []string{"kind", "status"}),
		activeCrawls: f.NewGauge(prometheus.GaugeOpts{
			Name: "warrant_active_crawls",
			Help: "Crawls currently holding a browser session.",
		}),
	}
}

// CrawlStarted marks a session as acquired.
func (m *Metrics) CrawlStarted() {
	if m == nil {
		return
	}
	m.activeCrawls.Inc()
}

// CrawlFinished records the end of a crawl that held a session.
func (m *Metrics) CrawlFinished(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.activeCrawls.Dec()
	m.ObserveCrawl(status, d)
}

// ObserveCrawl records a crawl outcome without touching the active gauge.
func (m *Metrics) ObserveCrawl(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.crawlsTotal.WithLabelValues(status).Inc()
	m.crawlDuration.WithLabelValues(status).Observe(d.Seconds())
}

// ObservePage records one page outcome.
func (m *Metrics) ObservePage(out models.PageOutcome) {
	if m == nil {
		return
	}
	m.pagesTotal.WithLabelValues(out.Status.String(), out.Empty.String()).Inc()
	m.recordsTotal.Add(float64(len(out.Records)))
}

// ObserveAttempt records one navigation attempt. err is nil on success.
func (m *Metrics) ObserveAttempt(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = models.ErrorCode(err)
	}
	m.attemptsTotal.WithLabelValues(result).Inc()
}

// ObserveQuery records a served preset query.
func (m *Metrics) ObserveQuery(kind models.QueryKind, status string) {
	if m == nil {
		return
	}
	m.queriesTotal.WithLabelValues(string(kind), status).Inc()
}
