package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/13g7895123/stock.warrant/config"
	"github.com/13g7895123/stock.warrant/models"
	"github.com/13g7895123/stock.warrant/scraper"
	"github.com/13g7895123/stock.warrant/warrant"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type flags struct {
	normal     bool
	configPath string
	headless   bool
	maxPages   int
	name       string
	outOfMoney bool
	format     string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "warrant <stock_code>",
		Short: "權證爬蟲：從 HiStock 爬取指定股票的權證資料",
		Example: `  warrant 6669               # 使用 config.json 設定查詢股票 6669
  warrant 2330 -c my.json    # 使用自訂設定檔查詢股票 2330
  warrant -n 2330            # 普通查詢股票代號 2330（無篩選）
  warrant 2330 -n --out-of-money --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0], f)
		},
	}

	bindFlags(cmd, f)
	return cmd
}

func bindFlags(cmd *cobra.Command, f *flags) {
	fl := cmd.Flags()
	fl.BoolVarP(&f.normal, "normal", "n", false, "普通查詢模式：無任何篩選條件，爬取全部頁面")
	fl.StringVarP(&f.configPath, "config", "c", "config.json", "設定檔路徑")
	fl.BoolVar(&f.headless, "headless", false, "不顯示瀏覽器視窗")
	fl.IntVar(&f.maxPages, "max-pages", 0, "最多爬取頁數（0 表示依設定檔）")
	fl.StringVar(&f.name, "name", "", "只保留名稱包含此字串的權證")
	fl.BoolVar(&f.outOfMoney, "out-of-money", false, "只保留價外權證")
	fl.StringVar(&f.format, "format", formatTable, "輸出格式：table、csv 或 json")
}

func run(cmd *cobra.Command, stockCode string, f *flags) error {
	if !models.ValidStockCode(stockCode) {
		return fmt.Errorf("股票代號格式錯誤: %q（需為 4-6 位數字）", stockCode)
	}
	if !validFormat(f.format) {
		return fmt.Errorf("unknown format %q", f.format)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: .env not loaded: %v\n", err)
	}
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.Log.Level)})))

	// ── 1. Resolve settings ─────────────────────────────────────────
	s, err := resolve(cmd, f)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if f.format != formatJSON {
		printSettings(out, stockCode, s)
	}

	// ── 2. Crawl ────────────────────────────────────────────────────
	var sessions warrant.Launcher
	switch cfg.Browser.Engine {
	case "http":
		sessions = scraper.NewStaticLauncher(cfg.Browser, slog.Default())
	case "auto":
		sessions = scraper.NewEscalatingLauncher(
			scraper.NewStaticLauncher(cfg.Browser, slog.Default()),
			scraper.NewLauncher(cfg.Browser, cfg.Scraper, slog.Default()),
			cfg.Browser.EscalationTTL, cfg.Scraper.NavigationTimeout, slog.Default())
	default:
		sessions = scraper.NewLauncher(cfg.Browser, cfg.Scraper, slog.Default())
	}
	crawler := warrant.NewCrawler(sessions, warrant.Options{
		MaxAttempts:       cfg.Scraper.MaxAttempts,
		NavigationTimeout: cfg.Scraper.NavigationTimeout,
		TableTimeout:      cfg.Scraper.TableTimeout,
		BackoffMin:        cfg.Scraper.BackoffMin,
		BackoffMax:        cfg.Scraper.BackoffMax,
		PageDelay:         cfg.Scraper.PageDelay,
	}, slog.Default(), nil)

	slog.Info("開始爬取", "stock", stockCode, "engine", cfg.Browser.Engine)
	res, err := crawler.Run(cmd.Context(), stockCode, s.headless, s.filter)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return errors.New("使用者中斷執行")
		}
		return fmt.Errorf("執行過程發生錯誤: %w", err)
	}

	// ── 3. Print ────────────────────────────────────────────────────
	return printResult(out, f.format, res)
}

// settings is what one CLI run crawls with.
type settings struct {
	headless bool
	filter   models.FilterSpec
}

// resolve merges the preset file (or the -n defaults) with explicit flags.
func resolve(cmd *cobra.Command, f *flags) (settings, error) {
	var s settings
	if f.normal {
		s.headless = true
	} else {
		qf, err := config.LoadQueryFile(f.configPath)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return s, fmt.Errorf("設定檔不存在: %s（可參考 config.example.json 建立）", f.configPath)
			}
			return s, err
		}
		slog.Info("已載入設定檔", "path", f.configPath)
		s.headless = qf.HeadlessOr(false)
		s.filter.MaxPages = qf.MaxPagesOr(0)
		s.filter.NameContains = qf.FilterNameOr("")
	}

	if cmd.Flags().Changed("headless") {
		s.headless = f.headless
	}
	if f.maxPages > 0 {
		s.filter.MaxPages = f.maxPages
	}
	if f.name != "" {
		s.filter.NameContains = f.name
	}
	s.filter.OutOfMoneyOnly = f.outOfMoney
	return s, nil
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
