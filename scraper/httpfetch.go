package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/13g7895123/stock.warrant/config"
	"github.com/13g7895123/stock.warrant/warrant"
	tls "github.com/refraction-networking/utls"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// maxBody caps a fetched page.
const maxBody = 10 << 20

// chromeH1Spec is Chrome's ClientHello with ALPN limited to http/1.1, since
// http.Transport cannot speak h2 over a utls connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		panic(fmt.Sprintf("httpfetch: chrome hello spec: %v", err))
	}
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// StaticLauncher serves sessions that fetch pages over plain HTTP with a
// Chrome TLS fingerprint. No JavaScript runs, so it only works while the
// warrant table is rendered server side. Selected with WARRANT_ENGINE=http.
type StaticLauncher struct {
	client *http.Client
	logger *slog.Logger
	active atomic.Int32
}

// NewStaticLauncher builds the shared HTTP client.
func NewStaticLauncher(cfg config.BrowserConfig, logger *slog.Logger) *StaticLauncher {
	if logger == nil {
		logger = slog.Default()
	}
	transport := &http.Transport{
		DialTLSContext:    dialChromeTLS,
		ForceAttemptHTTP2: false,
		MaxIdleConns:      10,
		IdleConnTimeout:   90 * time.Second,
	}
	if cfg.Proxy != "" {
		if u, err := url.Parse(cfg.Proxy); err == nil {
			transport.Proxy = http.ProxyURL(u)
		} else {
			logger.Warn("ignoring unparsable proxy", "proxy", cfg.Proxy, "error", err)
		}
	}
	return &StaticLauncher{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		logger: logger,
	}
}

// Acquire never fails; headless has no meaning without a browser.
func (l *StaticLauncher) Acquire(ctx context.Context, headless bool) (warrant.Session, error) {
	l.active.Add(1)
	return &staticSession{
		client:    l.client,
		logger:    l.logger,
		onRelease: func() { l.active.Add(-1) },
	}, nil
}

// Active returns the number of sessions not yet released.
func (l *StaticLauncher) Active() int {
	return int(l.active.Load())
}

func dialChromeTLS(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
	if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
		conn.Close()
		return nil, fmt.Errorf("httpfetch: apply tls spec: %w", err)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// staticSession keeps the last fetched document and answers lookups from it.
type staticSession struct {
	client    *http.Client
	logger    *slog.Logger
	onRelease func()

	mu      sync.Mutex
	doc     *Document
	release sync.Once
}

func (s *staticSession) Navigate(ctx context.Context, target string) error {
	s.mu.Lock()
	s.doc = nil
	s.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("httpfetch: build request: %w", err)
	}
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-TW,zh;q=0.9,en;q=0.8")
	req.Header.Set("Referer", "https://histock.tw/")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("httpfetch: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("httpfetch: HTTP %d for %s", resp.StatusCode, target)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("httpfetch: read body: %w", err)
	}
	doc, err := NewDocument(string(body))
	if err != nil {
		return err
	}
	s.logger.Debug("page fetched", "url", target, "bytes", len(body))

	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	return nil
}

// WaitFor checks the fetched document once. A static page cannot change,
// so a missing element is reported as a deadline at once.
func (s *staticSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	doc, err := s.current()
	if err != nil {
		return err
	}
	found, err := doc.Has(selector)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("httpfetch: %q not in page: %w", selector, context.DeadlineExceeded)
	}
	return nil
}

func (s *staticSession) FindTable(ctx context.Context, selectors []string) (warrant.Table, bool, error) {
	doc, err := s.current()
	if err != nil {
		return nil, false, err
	}
	return doc.FindTable(selectors)
}

func (s *staticSession) FindLinks(ctx context.Context, selector string) ([]warrant.Link, error) {
	doc, err := s.current()
	if err != nil {
		return nil, err
	}
	return doc.FindLinks(selector)
}

func (s *staticSession) Release() {
	s.release.Do(func() {
		if s.onRelease != nil {
			s.onRelease()
		}
	})
}

func (s *staticSession) current() (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil, fmt.Errorf("httpfetch: no page loaded")
	}
	return s.doc, nil
}
