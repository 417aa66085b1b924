// Package query turns chat and API intents into crawls using the preset
// rules of each query kind.
package query

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"time"

	"github.com/13g7895123/stock.warrant/cache"
	"github.com/13g7895123/stock.warrant/config"
	"github.com/13g7895123/stock.warrant/metrics"
	"github.com/13g7895123/stock.warrant/models"
	"golang.org/x/sync/semaphore"
)

// NoFilter is the filter label of queries without a name filter.
const NoFilter = "無"

// Crawler runs one crawl. *warrant.Crawler satisfies it.
type Crawler interface {
	Run(ctx context.Context, stockCode string, headless bool, filter models.FilterSpec) (*models.CrawlResult, error)
}

// Options configures a Service.
type Options struct {
	// QueryFile is the quick-query preset file, re-read on every quick query.
	QueryFile string
	// Headless is used by normal and out-of-money queries.
	Headless bool
	// MaxConcurrent bounds crawls in flight. Default 2.
	MaxConcurrent int
}

// Service resolves query presets, bounds concurrency and caches results.
type Service struct {
	crawler Crawler
	cache   *cache.Cache
	metrics *metrics.Metrics
	logger  *slog.Logger
	opts    Options
	sem     *semaphore.Weighted
}

// NewService builds a Service. c, m and logger may be nil.
func NewService(crawler Crawler, c *cache.Cache, m *metrics.Metrics, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 2
	}
	return &Service{
		crawler: crawler,
		cache:   c,
		metrics: m,
		logger:  logger,
		opts:    opts,
		sem:     semaphore.NewWeighted(int64(opts.MaxConcurrent)),
	}
}

// MaxConcurrent returns the crawl concurrency bound.
func (s *Service) MaxConcurrent() int {
	return s.opts.MaxConcurrent
}

// Plan is a resolved query: how to crawl and how to label the result.
type Plan struct {
	Headless bool
	Filter   models.FilterSpec
}

// Resolve applies the preset of intent.Kind. Explicit MaxPages and
// NameContains on the intent override the preset.
func (s *Service) Resolve(intent models.QueryIntent) Plan {
	p := Plan{Headless: s.opts.Headless}

	switch intent.Kind {
	case models.QueryQuick:
		qf := s.loadQueryFile()
		p.Headless = qf.HeadlessOr(config.DefaultQuickHeadless)
		p.Filter.MaxPages = qf.MaxPagesOr(config.DefaultQuickMaxPages)
		p.Filter.NameContains = qf.FilterNameOr(config.DefaultQuickFilter)
	case models.QueryOutOfMoney:
		p.Filter.OutOfMoneyOnly = true
	}

	if intent.MaxPages > 0 {
		p.Filter.MaxPages = intent.MaxPages
	}
	if intent.NameContains != "" {
		p.Filter.NameContains = intent.NameContains
	}
	return p
}

func (s *Service) loadQueryFile() *config.QueryFile {
	if s.opts.QueryFile == "" {
		return nil
	}
	qf, err := config.LoadQueryFile(s.opts.QueryFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Debug("query file missing, using defaults", "path", s.opts.QueryFile)
		return nil
	case err != nil:
		s.logger.Warn("query file unreadable, using defaults", "path", s.opts.QueryFile, "error", err)
		return nil
	}
	return qf
}

// Run executes intent and always returns a result. Failures are reported
// through Success, Error and ErrorCode.
func (s *Service) Run(ctx context.Context, intent models.QueryIntent) *models.QueryResult {
	if intent.Kind == "" {
		intent.Kind = models.QueryNormal
	}
	log := s.logger.With("kind", intent.Kind, "stock", intent.StockCode)

	if !models.ValidStockCode(intent.StockCode) {
		s.metrics.ObserveQuery(intent.Kind, "invalid")
		return failed(intent, models.NewScrapeError(models.ErrCodeInvalidInput,
			"stock code must be 4 to 6 digits", nil))
	}

	key := cache.Key(intent)
	if res, ok := s.cache.Get(key); ok {
		s.metrics.ObserveQuery(intent.Kind, "cached")
		log.Info("query served from cache")
		hit := *res
		hit.Cached = true
		return &hit
	}

	plan := s.Resolve(intent)

	// ── Bound concurrent browsers ────────────────────────────────────
	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.metrics.ObserveQuery(intent.Kind, "canceled")
		return failed(intent, err)
	}
	start := time.Now()
	crawl, err := s.crawler.Run(ctx, intent.StockCode, plan.Headless, plan.Filter)
	s.sem.Release(1)

	if err != nil {
		s.metrics.ObserveQuery(intent.Kind, "error")
		log.Error("query failed", "error", err)
		return failed(intent, err)
	}

	res := &models.QueryResult{
		Success:     true,
		Kind:        intent.Kind,
		StockCode:   intent.StockCode,
		Warrants:    crawl.Records,
		Total:       len(crawl.Records),
		Scanned:     crawl.Scanned,
		Filter:      filterLabel(plan.Filter),
		MaxPages:    plan.Filter.MaxPages,
		FailedPages: crawl.FailedPages,
	}
	status := "ok"
	if len(res.FailedPages) > 0 {
		status = "partial"
	}
	s.metrics.ObserveQuery(intent.Kind, status)
	s.cache.Set(key, res)

	log.Info("query done",
		"total", res.Total,
		"scanned", res.Scanned,
		"failed_pages", res.FailedPages,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return res
}

func filterLabel(f models.FilterSpec) string {
	if f.NameContains == "" {
		return NoFilter
	}
	return f.NameContains
}

func failed(intent models.QueryIntent, err error) *models.QueryResult {
	return &models.QueryResult{
		Success:   false,
		Error:     err.Error(),
		ErrorCode: models.ErrorCode(err),
		Kind:      intent.Kind,
		StockCode: intent.StockCode,
	}
}
