package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/13g7895123/stock.warrant/config"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCloser struct{ closed int }

func (c *countingCloser) Close() error {
	c.closed++
	return nil
}

func TestCloseBrowser_RemoteKeepsBrowserRunning(t *testing.T) {
	conn := &countingCloser{}

	// An unconnected browser panics on any CDP call, so this also checks
	// that no shutdown command is sent to a browser we did not launch.
	assert.NotPanics(t, func() { closeBrowser(rod.New(), conn, nil) })
	assert.Equal(t, 1, conn.closed)
}

func TestCloseBrowser_BeforeBrowserExists(t *testing.T) {
	conn := &countingCloser{}
	closeBrowser(nil, conn, nil)
	assert.Equal(t, 1, conn.closed)

	assert.NotPanics(t, func() { closeBrowser(nil, nil, nil) })
}

func TestDialCDP_UnreachableRemote(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := dialCDP(context.Background(), addr, true)
	assert.Error(t, err)
}

func TestLauncher_AcquireUnreachableRemoteIsLaunchFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	l := NewLauncher(config.BrowserConfig{CDPURL: addr}, config.ScraperConfig{}, nil)
	_, err := l.Acquire(context.Background(), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BROWSER_LAUNCH_FAILED")
	assert.Zero(t, l.Active())
}

// Needs a local Chromium; skipped otherwise.
func TestLauncher_WaitForTimesOutAndReleases(t *testing.T) {
	if testing.Short() {
		t.Skip("starts a browser")
	}
	if _, ok := launcher.LookPath(); !ok {
		t.Skip("no local chromium")
	}

	l := NewLauncher(config.BrowserConfig{NoSandbox: true}, config.ScraperConfig{}, nil)
	ctx := context.Background()
	s, err := l.Acquire(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, l.Active())

	navCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	require.NoError(t, s.Navigate(navCtx, "about:blank"))

	start := time.Now()
	err = s.WaitFor(ctx, "table#GCWT1", 200*time.Millisecond)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.Less(t, time.Since(start), 5*time.Second)

	// The session's page context is not bounded by the wait's timeout.
	require.NoError(t, s.Navigate(navCtx, "about:blank"))

	s.Release()
	s.Release()
	assert.Zero(t, l.Active())
}
