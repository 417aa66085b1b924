package scraper

import (
	"context"
	"io"
	"strings"
	"log/slog"
	"sync/atomic"

	"github.com/13g7895123/stock.warrant/config"
	"github.com/13g7895123/stock.warrant/models"
	"github.com/13g7895123/stock.warrant/warrant"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Launcher starts one Chromium process per crawl and hands out a session
// holding a single tab. It is safe for concurrent use.
type Launcher struct {
	browserCfg config.BrowserConfig
	scraperCfg config.ScraperConfig
	logger     *slog.Logger
	active     atomic.Int32
}

// NewLauncher returns a Launcher for the given configuration.
func NewLauncher(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{browserCfg: browserCfg, scraperCfg: scraperCfg, logger: logger}
}

// Active returns the number of sessions not yet released.
func (l *Launcher) Active() int {
	return int(l.active.Load())
}

// Acquire launches a browser (or connects to the configured CDP endpoint)
// and opens the session's tab. Any failure is a BROWSER_LAUNCH_FAILED error
// and leaves no process behind.
func (l *Launcher) Acquire(ctx context.Context, headless bool) (warrant.Session, error) {
	var (
		proc       *launcher.Launcher
		controlURL = l.browserCfg.CDPURL
	)

	// ── 1. Launch or attach ──────────────────────────────────────────
	if controlURL == "" {
		proc = l.newProcess(headless)
		u, err := proc.Launch()
		if err != nil {
			return nil, models.NewScrapeError(models.ErrCodeBrowserLaunch, "failed to launch browser", err)
		}
		controlURL = u
	}

	// The socket is dialed here so Release can close it; rod keeps a
	// reader goroutine on it for as long as it is open.
	ws, err := dialCDP(ctx, controlURL, proc == nil)
	if err != nil {
		killProcess(proc)
		return nil, models.NewScrapeError(models.ErrCodeBrowserLaunch, "failed to connect to browser", err)
	}
	browser := rod.New().Client(cdp.New().Start(ws))
	if err := browser.Connect(); err != nil {
		closeBrowser(nil, ws, proc)
		return nil, models.NewScrapeError(models.ErrCodeBrowserLaunch, "failed to connect to browser", err)
	}

	// ── 2. Open the session's only tab ───────────────────────────────
	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		closeBrowser(browser, ws, proc)
		return nil, models.NewScrapeError(models.ErrCodeBrowserLaunch, "failed to open tab", err)
	}
	page = page.Context(context.Background())

	// ── 3. Stealth + headers, before the first navigation ────────────
	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		l.logger.Warn("stealth injection failed, proceeding without stealth", "error", err)
	}
	setExtraHeaders(page, map[string]string{
		"Accept-Language": "zh-TW,zh;q=0.9,en;q=0.8",
		"Referer":         "https://histock.tw/",
	})
	router := setupHijack(page, l.scraperCfg.BlockedResourceTypes)

	l.active.Add(1)
	l.logger.Info("browser session acquired", "headless", headless, "remote", proc == nil)

	return &rodSession{
		browser: browser,
		conn:    ws,
		page:    page,
		proc:    proc,
		router:  router,
		logger:  l.logger,
		onRelease: func() {
			l.active.Add(-1)
		},
	}, nil
}

func (l *Launcher) newProcess(headless bool) *launcher.Launcher {
	p := launcher.New().
		Headless(headless).
		NoSandbox(l.browserCfg.NoSandbox)

	if l.browserCfg.BrowserBin != "" {
		p = p.Bin(l.browserCfg.BrowserBin)
	}
	if l.browserCfg.Proxy != "" {
		p = p.Proxy(l.browserCfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	p.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	p.Delete(flags.Flag("enable-automation"))
	p.Set(flags.Flag("disable-features"), "TranslateUI")
	p.Set(flags.Flag("disable-popup-blocking"))
	p.Set(flags.Flag("disable-renderer-backgrounding"))
	p.Set(flags.Flag("disable-background-timer-throttling"))
	p.Set(flags.Flag("disable-dev-shm-usage"))
	p.Set(flags.Flag("disable-extensions"))
	p.Set(flags.Flag("no-first-run"))
	p.Set(flags.Flag("lang"), "zh-TW")
	return p
}

// dialCDP opens the DevTools websocket. A remote endpoint given as a
// host, port or http address is resolved to its websocket URL first.
func dialCDP(ctx context.Context, controlURL string, remote bool) (*cdp.WebSocket, error) {
	if remote && !strings.Contains(controlURL, "/devtools/") {
		u, err := launcher.ResolveURL(controlURL)
		if err != nil {
			return nil, err
		}
		controlURL = u
	}
	ws := &cdp.WebSocket{}
	if err := ws.Connect(ctx, controlURL, nil); err != nil {
		return nil, err
	}
	return ws, nil
}

// closeBrowser shuts down a browser this process launched, then drops the
// connection. A remote browser (proc == nil) is left running; only the
// connection is closed. b may be nil when no browser was set up.
func closeBrowser(b *rod.Browser, conn io.Closer, proc *launcher.Launcher) {
	if proc != nil && b != nil {
		_ = b.Close()
	}
	if conn != nil {
		_ = conn.Close()
	}
	killProcess(proc)
}

func killProcess(proc *launcher.Launcher) {
	if proc == nil {
		return
	}
	proc.Kill()
	proc.Cleanup()
}
