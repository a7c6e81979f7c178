// Package scan orchestrates the daily runs: load the universe, evaluate
// every ticker, write the markdown report, and persist the run to the
// signal log. The evaluators themselves stay pure; all I/O lives here.
package scan

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"sab/internal/calendar"
	"sab/internal/config"
	"sab/internal/holdings"
	"sab/internal/logger"
	"sab/internal/market"
	"sab/internal/report"
	"sab/internal/signal"
	"sab/internal/store/signallog"
)

// evalWorkers caps concurrent per-ticker evaluations.
const evalWorkers = 8

// Runner wires the config, candle source, and optional signal log for one
// process lifetime.
type Runner struct {
	cfg    *config.Config
	source market.Source
	store  *signallog.Store
	now    func() time.Time
}

// Option tweaks a Runner, mostly for tests.
type Option func(*Runner)

// WithSource swaps the candle source.
func WithSource(src market.Source) Option {
	return func(r *Runner) { r.source = src }
}

// WithStore injects an open signal log (nil disables persistence).
func WithStore(s *signallog.Store) Option {
	return func(r *Runner) { r.store = s }
}

// WithClock fixes the evaluation clock.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner builds a Runner over the file-based candle cache. The signal
// log is opened lazily from config unless an option overrides it.
func NewRunner(cfg *config.Config, opts ...Option) (*Runner, error) {
	r := &Runner{
		cfg:    cfg,
		source: market.NewFileSource(cfg.Data.DataDir),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.store == nil && strings.TrimSpace(cfg.Log.SignalDBPath) != "" {
		s, err := signallog.Open(cfg.Log.SignalDBPath)
		if err != nil {
			return nil, fmt.Errorf("open signal log failed: %w", err)
		}
		r.store = s
	}
	return r, nil
}

// Close releases the signal log.
func (r *Runner) Close() error {
	return r.store.Close()
}

func (r *Runner) env() signal.Env {
	return signal.Env{
		Now:       r.now(),
		USHoliday: calendar.USHolidayLookup(r.cfg.Data.DataDir, r.cfg.Files.Holidays),
		Session:   r.cfg.Session.Settings(),
	}
}

// ScanOptions narrows one scan run.
type ScanOptions struct {
	WatchlistPath string // overrides files.watchlist
	Limit         int    // overrides data.screen_limit, 0 keeps config
}

// ScanSummary reports what a scan run produced.
type ScanSummary struct {
	RunID      string
	ReportPath string
	Universe   int
	Candidates int
	Failures   []string
}

// Scan evaluates the watchlist and writes the buy report.
func (r *Runner) Scan(ctx context.Context, opts ScanOptions) (ScanSummary, error) {
	started := r.now()
	cfg := r.cfg

	watchlistPath := cfg.Files.Watchlist
	if strings.TrimSpace(opts.WatchlistPath) != "" {
		watchlistPath = opts.WatchlistPath
	}
	tickers, err := holdings.LoadWatchlist(watchlistPath)
	if err != nil {
		return ScanSummary{}, fmt.Errorf("load watchlist failed: %w", err)
	}
	if len(tickers) == 0 {
		logger.Warnf("Watchlist %s is empty; the buy report will have no candidates", watchlistPath)
	}
	limit := cfg.Data.ScreenLimit
	if opts.Limit > 0 {
		limit = opts.Limit
	}
	if limit > 0 && len(tickers) > limit {
		tickers = tickers[:limit]
	}

	hybrid := cfg.HybridBuy()
	env := r.env()
	buySettings := cfg.Strategy.Settings()
	hybridSettings := cfg.Hybrid.Settings()

	type outcome struct {
		result signal.Result
		name   string
		err    error
	}
	outcomes := make([]outcome, len(tickers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(evalWorkers)
	for i, ticker := range tickers {
		g.Go(func() error {
			candles, meta, err := r.source.DailyCandles(gctx, ticker, cfg.Data.HistoryBars)
			if err != nil {
				outcomes[i] = outcome{err: err, result: signal.Result{Ticker: ticker}}
				return nil
			}
			var res signal.Result
			if hybrid {
				res = signal.EvaluateTickerHybrid(ticker, candles, hybridSettings, meta, env)
			} else {
				res = signal.EvaluateTicker(ticker, candles, buySettings, meta, env)
			}
			outcomes[i] = outcome{result: res, name: meta.DisplayName()}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ScanSummary{}, err
	}

	var candidates []signal.Candidate
	var failures []string
	var decisions []signallog.Decision
	for i, out := range outcomes {
		ticker := tickers[i]
		if out.err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", ticker, out.err))
			continue
		}
		d := signallog.Decision{Ticker: ticker, Name: out.name}
		if c := out.result.Candidate; c != nil {
			candidates = append(candidates, *c)
			d.Accepted = true
			d.Score = c.ScoreValue
			d.Price = c.PriceValue
			d.Pattern = string(c.Pattern)
			d.EntryState = string(c.EntryState)
		} else {
			d.Reasons = []string{out.result.Reason}
		}
		decisions = append(decisions, d)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].ScoreValue != candidates[j].ScoreValue {
			return candidates[i].ScoreValue > candidates[j].ScoreValue
		}
		return candidates[i].Ticker < candidates[j].Ticker
	})

	mode := ""
	if hybrid {
		mode = report.StrategyHybrid
	}
	path, err := report.WriteBuy(cfg.Data.ReportDir, report.BuyReport{
		Provider:      cfg.Data.Provider,
		StrategyMode:  mode,
		UniverseCount: len(tickers),
		Candidates:    candidates,
		Failures:      failures,
		FXRate:        cfg.FX.USDKRW,
		Now:           env.Now,
	})
	if err != nil {
		return ScanSummary{}, fmt.Errorf("write buy report failed: %w", err)
	}
	logger.Infof("Buy report written to %s (%d candidates from %d tickers)", path, len(candidates), len(tickers))

	runID := r.persistRun(ctx, signallog.Run{
		Kind:         "buy",
		Provider:     cfg.Data.Provider,
		StrategyMode: mode,
		Universe:     len(tickers),
		Candidates:   len(candidates),
		ReportPath:   path,
		StartedAt:    started,
		FinishedAt:   r.now(),
	}, decisions)

	return ScanSummary{
		RunID:      runID,
		ReportPath: path,
		Universe:   len(tickers),
		Candidates: len(candidates),
		Failures:   failures,
	}, nil
}

// persistRun records the run and its decisions; failures only log, a broken
// signal log never fails the report.
func (r *Runner) persistRun(ctx context.Context, run signallog.Run, decisions []signallog.Decision) string {
	if r.store == nil {
		return ""
	}
	runID, err := r.store.RecordRun(ctx, run)
	if err != nil {
		logger.Errorf("record %s run failed: %v", run.Kind, err)
		return ""
	}
	if err := r.store.RecordDecisions(ctx, runID, decisions); err != nil {
		logger.Errorf("record %s decisions failed: %v", run.Kind, err)
	}
	return runID
}
