package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"sab/internal/config"
	"sab/internal/logger"
	"sab/internal/scan"
	"sab/internal/signal"
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		usage()
		return 2
	}

	cfgPath := os.Getenv("SAB_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Printf("loading config failed: %v", err)
		return 1
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Printf("initializing log file failed: %v", err)
		return 1
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("Config loaded (env=%s, provider=%s, data=%s)", cfg.App.Env, cfg.Data.Provider, cfg.Data.DataDir)

	runner, err := scan.NewRunner(cfg)
	if err != nil {
		log.Printf("initializing runner failed: %v", err)
		return 1
	}
	defer runner.Close()

	ctx := context.Background()
	switch os.Args[1] {
	case "scan":
		return runScan(ctx, runner, os.Args[2:])
	case "sell":
		return runSell(ctx, runner)
	default:
		usage()
		return 2
	}
}

func runScan(ctx context.Context, runner *scan.Runner, args []string) int {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	watchlist := fs.String("watchlist", "", "watchlist file (overrides files.watchlist)")
	limit := fs.Int("limit", 0, "max tickers to evaluate (overrides data.screen_limit)")
	_ = fs.Parse(args)

	summary, err := runner.Scan(ctx, scan.ScanOptions{
		WatchlistPath: *watchlist,
		Limit:         *limit,
	})
	if err != nil {
		logger.Errorf("scan failed: %v", err)
		return 1
	}
	fmt.Printf("Report: %s (%d candidates from %d tickers)\n",
		summary.ReportPath, summary.Candidates, summary.Universe)
	if len(summary.Failures) > 0 {
		logger.Warnf("Scan completed with %d issue(s); see the report appendix", len(summary.Failures))
	}
	return 0
}

func runSell(ctx context.Context, runner *scan.Runner) int {
	summary, err := runner.Sell(ctx)
	if err != nil {
		logger.Errorf("sell evaluation failed: %v", err)
		return 1
	}
	fmt.Printf("Report: %s (%d holdings: %d SELL / %d REVIEW / %d HOLD)\n",
		summary.ReportPath, summary.Evaluated,
		summary.Actions[signal.ActionSell],
		summary.Actions[signal.ActionReview],
		summary.Actions[signal.ActionHold])
	if len(summary.Failures) > 0 {
		logger.Warnf("Sell evaluation completed with %d issue(s); see the report appendix", len(summary.Failures))
	}
	return 0
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: sab <scan|sell> [flags]")
	fmt.Fprintln(os.Stderr, "  scan  -watchlist <path> -limit <n>   evaluate the watchlist and write the buy report")
	fmt.Fprintln(os.Stderr, "  sell                                 evaluate holdings and write the sell report")
	fmt.Fprintln(os.Stderr, "config path comes from SAB_CONFIG (default configs/config.yaml)")
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
