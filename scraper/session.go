package scraper

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/13g7895123/stock.warrant/warrant"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

// rodSession is a warrant.Session backed by one Chromium tab.
type rodSession struct {
	browser   *rod.Browser
	conn      io.Closer // the CDP websocket
	page      *rod.Page
	proc      *launcher.Launcher // nil when attached over CDP
	router    *rod.HijackRouter
	logger    *slog.Logger
	onRelease func()

	mu      sync.Mutex
	doc     *Document // snapshot of the current page, built lazily
	release sync.Once
}

// Navigate loads url and waits for the network to go idle. The wait is
// armed before navigation so early idle events are not missed.
func (s *rodSession) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	s.doc = nil
	s.mu.Unlock()

	p := s.page.Context(ctx)
	waitIdle := p.WaitNavigation(proto.PageLifecycleEventNameNetworkIdle)
	if err := p.Navigate(url); err != nil {
		return err
	}
	waitIdle()
	return ctx.Err()
}

// WaitFor polls the live DOM until selector matches or timeout elapses.
func (s *rodSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	p := s.page.Context(ctx).Timeout(timeout)
	defer p.CancelTimeout()
	_, err := p.Element(selector)
	return err
}

func (s *rodSession) FindTable(ctx context.Context, selectors []string) (warrant.Table, bool, error) {
	doc, err := s.document(ctx)
	if err != nil {
		return nil, false, err
	}
	return doc.FindTable(selectors)
}

func (s *rodSession) FindLinks(ctx context.Context, selector string) ([]warrant.Link, error) {
	doc, err := s.document(ctx)
	if err != nil {
		return nil, err
	}
	return doc.FindLinks(selector)
}

// document snapshots the rendered HTML once per navigation.
func (s *rodSession) document(ctx context.Context) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc != nil {
		return s.doc, nil
	}
	raw, err := s.page.Context(ctx).HTML()
	if err != nil {
		return nil, err
	}
	doc, err := NewDocument(raw)
	if err != nil {
		return nil, err
	}
	s.doc = doc
	return doc, nil
}

// Release closes the tab, the browser process this session launched if any,
// and the CDP connection.
func (s *rodSession) Release() {
	s.release.Do(func() {
		if s.router != nil {
			_ = s.router.Stop()
		}
		if err := s.page.Close(); err != nil {
			s.logger.Warn("closing tab failed", "error", err)
		}
		closeBrowser(s.browser, s.conn, s.proc)
		if s.onRelease != nil {
			s.onRelease()
		}
		s.logger.Info("browser session released")
	})
}

// setExtraHeaders sends headers with every request the page makes.
func setExtraHeaders(page *rod.Page, headers map[string]string) {
	if len(headers) == 0 {
		return
	}
	_ = proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(headers)}.Call(page)
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
