package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "rod", cfg.Browser.Engine)
	assert.Equal(t, 24*time.Hour, cfg.Browser.EscalationTTL)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 3, cfg.Scraper.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Scraper.NavigationTimeout)
	assert.Equal(t, 10*time.Second, cfg.Scraper.TableTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Scraper.PageDelay)
	assert.Equal(t, []string{"Image", "Font", "Media"}, cfg.Scraper.BlockedResourceTypes)
	assert.Equal(t, "config.json", cfg.Query.File)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("WARRANT_PORT", "8088")
	t.Setenv("WARRANT_ENGINE", "http")
	t.Setenv("WARRANT_NAV_TIMEOUT", "45s")
	t.Setenv("WARRANT_API_KEYS", " a , b ,,")
	t.Setenv("WARRANT_HEADLESS", "not-a-bool")
	t.Setenv("LINE_CHANNEL_SECRET", "secret")
	t.Setenv("LINE_CHANNEL_ACCESS_TOKEN", "token")

	cfg := Load()

	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, "http", cfg.Browser.Engine)
	assert.Equal(t, 45*time.Second, cfg.Scraper.NavigationTimeout)
	assert.Equal(t, []string{"a", "b"}, cfg.Auth.APIKeys)
	assert.True(t, cfg.Browser.Headless, "unparsable bool falls back to default")
	assert.True(t, cfg.Line.Enabled())
}

func TestLoadQueryFile(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantHeadless bool
		wantPages    int
		wantFilter   string
	}{
		{"full", `{"headless": false, "max_pages": 5, "filter_name": "凱基"}`, false, 5, "凱基"},
		{"missing keys use defaults", `{}`, DefaultQuickHeadless, DefaultQuickMaxPages, DefaultQuickFilter},
		{"explicit nulls mean unbounded", `{"max_pages": null, "filter_name": null}`, DefaultQuickHeadless, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o600))

			q, err := LoadQueryFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantHeadless, q.HeadlessOr(DefaultQuickHeadless))
			assert.Equal(t, tt.wantPages, q.MaxPagesOr(DefaultQuickMaxPages))
			assert.Equal(t, tt.wantFilter, q.FilterNameOr(DefaultQuickFilter))
		})
	}
}

func TestLoadQueryFile_Errors(t *testing.T) {
	_, err := LoadQueryFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"max_pages": "three"}`), 0o600))
	_, err = LoadQueryFile(path)
	assert.Error(t, err)
}

func TestQueryFile_NilReceiver(t *testing.T) {
	var q *QueryFile
	assert.True(t, q.HeadlessOr(true))
	assert.Equal(t, 3, q.MaxPagesOr(3))
	assert.Equal(t, "元大", q.FilterNameOr("元大"))
}
