package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/13g7895123/stock.warrant/api"
	"github.com/13g7895123/stock.warrant/api/handler"
	"github.com/13g7895123/stock.warrant/cache"
	"github.com/13g7895123/stock.warrant/config"
	"github.com/13g7895123/stock.warrant/linebot"
	"github.com/13g7895123/stock.warrant/metrics"
	"github.com/13g7895123/stock.warrant/query"
	"github.com/13g7895123/stock.warrant/scraper"
	"github.com/13g7895123/stock.warrant/warrant"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

// launcher is a session provider that can report its open sessions.
type launcher interface {
	warrant.Launcher
	handler.ActiveCounter
}

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: .env not loaded: %v\n", err)
	}
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("warrantd starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"engine", cfg.Browser.Engine,
		"maxConcurrentCrawls", cfg.Scraper.MaxConcurrentCrawls,
		"line", cfg.Line.Enabled(),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// ── 3. Session provider ─────────────────────────────────────────
	var sessions launcher
	switch cfg.Browser.Engine {
	case "http":
		sessions = scraper.NewStaticLauncher(cfg.Browser, slog.Default())
	case "rod":
		sessions = scraper.NewLauncher(cfg.Browser, cfg.Scraper, slog.Default())
	case "auto":
		sessions = scraper.NewEscalatingLauncher(
			scraper.NewStaticLauncher(cfg.Browser, slog.Default()),
			scraper.NewLauncher(cfg.Browser, cfg.Scraper, slog.Default()),
			cfg.Browser.EscalationTTL, cfg.Scraper.NavigationTimeout, slog.Default())
	default:
		slog.Error("unknown engine", "engine", cfg.Browser.Engine)
		os.Exit(1)
	}

	// ── 4. Crawler, cache, query service ────────────────────────────
	m := metrics.New(prometheus.DefaultRegisterer)
	crawler := warrant.NewCrawler(sessions, warrant.Options{
		MaxAttempts:       cfg.Scraper.MaxAttempts,
		NavigationTimeout: cfg.Scraper.NavigationTimeout,
		TableTimeout:      cfg.Scraper.TableTimeout,
		BackoffMin:        cfg.Scraper.BackoffMin,
		BackoffMax:        cfg.Scraper.BackoffMax,
		PageDelay:         cfg.Scraper.PageDelay,
	}, slog.Default(), m)

	cc := cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	defer cc.Close()

	queries := query.NewService(crawler, cc, m, slog.Default(), query.Options{
		QueryFile:     cfg.Query.File,
		Headless:      cfg.Browser.Headless,
		MaxConcurrent: cfg.Scraper.MaxConcurrentCrawls,
	})

	// ── 5. LINE bot (optional) ──────────────────────────────────────
	var bot *linebot.Bot
	if cfg.Line.Enabled() {
		client := linebot.NewClient(cfg.Line.APIBase, cfg.Line.ChannelAccessToken)
		bot = linebot.NewBot(cfg.Line.ChannelSecret, client, queries, slog.Default(), linebot.Options{})
	} else {
		slog.Warn("LINE_CHANNEL_SECRET or LINE_CHANNEL_ACCESS_TOKEN not set, /callback disabled")
	}

	// ── 6. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(ctx, api.Deps{
		Config:    cfg,
		Queries:   queries,
		Sessions:  sessions,
		MaxCrawls: queries.MaxConcurrent(),
		Jobs:      handler.NewJobs(ctx),
		Bot:       bot,
		StartTime: time.Now(),
	})

	// ── 7. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 8. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// Running chat queries are canceled; their sessions release on return.
	if bot != nil {
		if err := bot.Close(shutdownCtx); err != nil {
			slog.Warn("background queries still running at exit", "error", err)
		}
	}
	stop()
	slog.Info("warrantd stopped", "openSessions", sessions.Active())
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(h))
}
