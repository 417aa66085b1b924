package warrant

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/13g7895123/stock.warrant/metrics"
	"github.com/13g7895123/stock.warrant/models"
)

// Options tunes the crawl loop. Zero fields take the defaults noted.
type Options struct {
	MaxAttempts       int           // default: 3
	NavigationTimeout time.Duration // default: 30s
	TableTimeout      time.Duration // default: 10s
	BackoffMin        time.Duration // default: 1s
	BackoffMax        time.Duration // default: 3s
	PageDelay         time.Duration // default: 500ms
	BaseURL           string        // default: BaseURL
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = 30 * time.Second
	}
	if o.TableTimeout <= 0 {
		o.TableTimeout = 10 * time.Second
	}
	if o.BackoffMin <= 0 {
		o.BackoffMin = time.Second
	}
	if o.BackoffMax < o.BackoffMin {
		o.BackoffMax = o.BackoffMin + 2*time.Second
	}
	if o.BaseURL == "" {
		o.BaseURL = BaseURL
	}
	if o.PageDelay < 0 {
		o.PageDelay = 0
	} else if o.PageDelay == 0 {
		o.PageDelay = 500 * time.Millisecond
	}
	return o
}

// Crawler walks the paged warrant list of one stock at a time. A Crawler
// holds no per-crawl state and may run several crawls concurrently; each
// crawl acquires its own session.
type Crawler struct {
	launcher  Launcher
	opts      Options
	extractor *Extractor
	logger    *slog.Logger
	metrics   *metrics.Metrics

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64 // uniform in [0, 1)
}

// NewCrawler returns a Crawler that gets its sessions from launcher.
// logger and m may be nil.
func NewCrawler(launcher Launcher, opts Options, logger *slog.Logger, m *metrics.Metrics) *Crawler {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()
	return &Crawler{
		launcher:  launcher,
		opts:      opts,
		extractor: &Extractor{TableTimeout: opts.TableTimeout, Logger: logger},
		logger:    logger,
		metrics:   m,
		sleep:     sleepCtx,
		jitter:    rand.Float64,
	}
}

// session is the mutable state of one crawl. It never leaves Run.
type session struct {
	stockCode   string
	accumulated []models.Warrant
	failedPages []int
	lastPage    *int
	hintChecked bool
	fetched     int
}

// Run crawls every page of stockCode's warrant list until the data runs
// out, a page exhausts its retries, the discovered last page is reached, or
// filter.MaxPages pages have been fetched. The session is released on every
// return path.
//
// Only a failure to start the browser, or ctx ending, is returned as an
// error. Pages that could not be loaded are listed in FailedPages.
func (c *Crawler) Run(ctx context.Context, stockCode string, headless bool, filter models.FilterSpec) (*models.CrawlResult, error) {
	start := time.Now()
	log := c.logger.With("stock", stockCode)

	sess, err := c.launcher.Acquire(ctx, headless)
	if err != nil {
		c.metrics.ObserveCrawl("launch_failed", time.Since(start))
		var se *models.ScrapeError
		if !errors.As(err, &se) || se.Code != models.ErrCodeBrowserLaunch {
			err = models.NewScrapeError(models.ErrCodeBrowserLaunch, "failed to start browser session", err)
		}
		log.Error("crawl aborted", "error", err)
		return nil, err
	}
	c.metrics.CrawlStarted()
	status := "canceled"
	defer func() {
		sess.Release()
		c.metrics.CrawlFinished(status, time.Since(start))
	}()

	s := &session{stockCode: stockCode}
	for n := 1; ; n++ {
		out := c.attempt(ctx, sess, stockCode, n, log)
		s.fetched++
		c.metrics.ObservePage(out)

		if err := ctx.Err(); err != nil {
			log.Warn("crawl canceled", "page", n, "error", err)
			return nil, err
		}

		if n == 1 && !s.hintChecked && out.Status == models.PageSuccess {
			s.hintChecked = true
			s.lastPage = DiscoverLastPage(ctx, sess, log)
			if s.lastPage != nil {
				log.Info("last page discovered", "last_page", *s.lastPage)
			}
		}

		if out.Status == models.PageFailed {
			s.failedPages = append(s.failedPages, n)
			log.Error("page failed, stopping", "page", n, "attempts", out.Attempts, "error", out.Err)
			break
		}
		if len(out.Records) == 0 {
			log.Info("page has no records, stopping", "page", n, "reason", out.Empty.String())
			break
		}
		s.accumulated = append(s.accumulated, out.Records...)
		log.Info("page done", "page", n, "records", len(out.Records), "total", len(s.accumulated))

		if s.lastPage != nil && *s.lastPage >= 1 && n >= *s.lastPage {
			log.Info("reached last page", "page", n)
			break
		}
		if filter.MaxPages > 0 && n >= filter.MaxPages {
			log.Info("reached page limit", "max_pages", filter.MaxPages)
			break
		}

		if err := c.sleep(ctx, c.opts.PageDelay); err != nil {
			log.Warn("crawl canceled", "page", n, "error", err)
			return nil, err
		}
	}

	status = "completed"
	if len(s.failedPages) > 0 {
		status = "partial"
	}
	res := s.snapshot(filter, time.Since(start))
	log.Info("crawl finished",
		"records", len(res.Records),
		"scanned", res.Scanned,
		"pages", res.PagesFetched,
		"failed_pages", res.FailedPages,
		"duration", res.Duration.Round(time.Millisecond),
	)
	return res, nil
}

// attempt loads and extracts page n, retrying with randomized backoff.
func (c *Crawler) attempt(ctx context.Context, page Page, stockCode string, n int, log *slog.Logger) models.PageOutcome {
	target := composeURL(c.opts.BaseURL, stockCode, n)
	var lastErr error
	tries := 0

	for tries < c.opts.MaxAttempts {
		tries++
		log.Debug("loading page", "page", n, "url", target, "attempt", tries)

		ext, err := c.fetchOnce(ctx, page, target)
		c.metrics.ObserveAttempt(err)
		if err == nil {
			return models.PageOutcome{
				Page:     n,
				Status:   models.PageSuccess,
				Records:  ext.Records,
				Empty:    ext.Empty,
				Attempts: tries,
			}
		}
		lastErr = err
		log.Warn("page attempt failed",
			"page", n,
			"attempt", tries,
			"max_attempts", c.opts.MaxAttempts,
			"error", err,
		)
		if ctx.Err() != nil || tries == c.opts.MaxAttempts || !models.IsRetryable(err) {
			break
		}

		delay := c.backoff()
		log.Info("retrying page", "page", n, "delay", delay.Round(100*time.Millisecond))
		if err := c.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	return models.PageOutcome{
		Page:     n,
		Status:   models.PageFailed,
		Attempts: tries,
		Err:      lastErr,
	}
}

// fetchOnce is one Navigating → Extracting pass.
func (c *Crawler) fetchOnce(ctx context.Context, page Page, target string) (models.Extraction, error) {
	navCtx, cancel := context.WithTimeout(ctx, c.opts.NavigationTimeout)
	err := page.Navigate(navCtx, target)
	cancel()
	if err != nil {
		return models.Extraction{}, categorizeError(err, "navigation to warrant page failed")
	}
	return c.extractor.Extract(ctx, page)
}

func (c *Crawler) backoff() time.Duration {
	span := c.opts.BackoffMax - c.opts.BackoffMin
	return c.opts.BackoffMin + time.Duration(c.jitter()*float64(span))
}

// categorizeError maps a navigation error onto the retryable error codes.
func categorizeError(err error, msg string) *models.ScrapeError {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodePageTimeout, msg, err)
	default:
		return models.NewScrapeError(models.ErrCodePageLoad, msg, err)
	}
}

func (s *session) snapshot(filter models.FilterSpec, d time.Duration) *models.CrawlResult {
	res := &models.CrawlResult{
		StockCode:    s.stockCode,
		Records:      Apply(s.accumulated, filter),
		Scanned:      len(s.accumulated),
		FailedPages:  append([]int{}, s.failedPages...),
		PagesFetched: s.fetched,
		Duration:     d,
	}
	if s.lastPage != nil {
		n := *s.lastPage
		res.LastPage = &n
	}
	return res
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
