package scraper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/13g7895123/stock.warrant/warrant"
)

// ActiveLauncher is a session provider that can count its open sessions.
type ActiveLauncher interface {
	warrant.Launcher
	Active() int
}

// EscalatingLauncher starts sessions on a cheap launcher and moves a
// session to a heavier one the first time an awaited element is missing.
// When the heavier launcher finds it, new sessions skip the cheap one
// until the memory expires. Selected with WARRANT_ENGINE=auto.
type EscalatingLauncher struct {
	light      ActiveLauncher
	heavy      ActiveLauncher
	ttl        time.Duration
	navTimeout time.Duration
	logger     *slog.Logger
	now        func() time.Time

	mu        sync.Mutex
	heavyTill time.Time
}

// NewEscalatingLauncher returns a launcher trying light before heavy.
// ttl is how long a successful escalation is remembered (default 24h).
// navTimeout bounds the heavy session's reload of the page (default 30s).
func NewEscalatingLauncher(light, heavy ActiveLauncher, ttl, navTimeout time.Duration, logger *slog.Logger) *EscalatingLauncher {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if navTimeout <= 0 {
		navTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EscalatingLauncher{
		light:      light,
		heavy:      heavy,
		ttl:        ttl,
		navTimeout: navTimeout,
		logger:     logger,
		now:        time.Now,
	}
}

func (l *EscalatingLauncher) Acquire(ctx context.Context, headless bool) (warrant.Session, error) {
	if l.preferHeavy() {
		return l.heavy.Acquire(ctx, headless)
	}
	s, err := l.light.Acquire(ctx, headless)
	if err != nil {
		return nil, err
	}
	return &escalatingSession{l: l, cur: s, headless: headless}, nil
}

// Active returns open sessions across both launchers.
func (l *EscalatingLauncher) Active() int {
	return l.light.Active() + l.heavy.Active()
}

func (l *EscalatingLauncher) preferHeavy() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.now().Before(l.heavyTill)
}

func (l *EscalatingLauncher) remember() {
	l.mu.Lock()
	l.heavyTill = l.now().Add(l.ttl)
	l.mu.Unlock()
}

// escalatingSession is used by one crawl goroutine at a time.
type escalatingSession struct {
	l         *EscalatingLauncher
	cur       warrant.Session
	headless  bool
	escalated bool
	lastURL   string
}

func (s *escalatingSession) Navigate(ctx context.Context, url string) error {
	s.lastURL = url
	return s.cur.Navigate(ctx, url)
}

func (s *escalatingSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	err := s.cur.WaitFor(ctx, selector, timeout)
	if err == nil || s.escalated || s.lastURL == "" {
		return err
	}
	if !errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return err
	}

	log := s.l.logger.With("url", s.lastURL, "selector", selector)
	heavy, herr := s.l.heavy.Acquire(ctx, s.headless)
	if herr != nil {
		log.Warn("escalation failed, keeping static session", "error", herr)
		return err
	}
	s.cur.Release()
	s.cur = heavy
	s.escalated = true
	log.Info("escalated session to browser")

	navCtx, cancel := context.WithTimeout(ctx, s.l.navTimeout)
	err = heavy.Navigate(navCtx, s.lastURL)
	cancel()
	if err != nil {
		return err
	}
	if err := heavy.WaitFor(ctx, selector, timeout); err != nil {
		return err
	}
	s.l.remember()
	return nil
}

func (s *escalatingSession) FindTable(ctx context.Context, selectors []string) (warrant.Table, bool, error) {
	return s.cur.FindTable(ctx, selectors)
}

func (s *escalatingSession) FindLinks(ctx context.Context, selector string) ([]warrant.Link, error) {
	return s.cur.FindLinks(ctx, selector)
}

func (s *escalatingSession) Release() {
	s.cur.Release()
}
