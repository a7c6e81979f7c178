package scan

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"sab/internal/holdings"
	"sab/internal/logger"
	"sab/internal/report"
	"sab/internal/signal"
	"sab/internal/store/signallog"
)

// SellSummary reports what a sell run produced.
type SellSummary struct {
	RunID      string
	ReportPath string
	Evaluated  int
	Actions    map[signal.Action]int
	Failures   []string
}

// Sell evaluates every holding and writes the sell report. Rows sort by
// action urgency (SELL first) then ticker.
func (r *Runner) Sell(ctx context.Context) (SellSummary, error) {
	started := r.now()
	cfg := r.cfg

	registry, err := holdings.NewRegistry(cfg.Files.Holdings)
	if err != nil {
		return SellSummary{}, fmt.Errorf("load holdings failed: %w", err)
	}
	snap := registry.Snapshot()
	if len(snap.Holdings) == 0 {
		logger.Warnf("No holdings configured; generating empty sell report")
	}

	hybrid := cfg.HybridSellMode()
	env := r.env()
	sellSettings := cfg.Sell.Settings()
	hybridSettings := cfg.HybridSell.Settings()

	var rows []report.SellRow
	var failures []string
	var decisions []signallog.Decision
	for _, holding := range snap.Holdings {
		if err := ctx.Err(); err != nil {
			return SellSummary{}, err
		}
		candles, meta, err := r.source.DailyCandles(ctx, holding.Ticker, cfg.Data.HistoryBars)
		if err != nil || len(candles) == 0 {
			failures = append(failures, fmt.Sprintf("%s: No market data available for sell evaluation", holding.Ticker))
			continue
		}

		var eval signal.SellEvaluation
		if hybrid {
			eval = signal.EvaluateSellSignalsHybrid(holding.Ticker, candles, holding, hybridSettings, env)
		} else {
			eval = signal.EvaluateSellSignals(holding.Ticker, candles, holding, sellSettings, env)
		}

		currency := holding.CurrencyOrInferred()
		if strings.TrimSpace(meta.Currency) != "" && strings.TrimSpace(holding.EntryCurrency) == "" {
			currency = meta.Currency
		}
		var pnl *float64
		if holding.EntryPrice != 0 && eval.EvalPrice != 0 {
			v := (eval.EvalPrice - holding.EntryPrice) / holding.EntryPrice
			pnl = &v
		}

		rows = append(rows, report.SellRow{
			Ticker:      holding.Ticker,
			Name:        meta.DisplayName(),
			Currency:    currency,
			Quantity:    holding.Quantity,
			EntryPrice:  holding.EntryPrice,
			EntryDate:   holding.EntryDate,
			LastPrice:   eval.EvalPrice,
			PnlPct:      pnl,
			Action:      eval.Action,
			Reasons:     eval.Reasons,
			StopPrice:   eval.StopPrice,
			TargetPrice: eval.TargetPrice,
			Notes:       holding.Notes,
			EvalDate:    eval.EvalDate,
		})
		decisions = append(decisions, signallog.Decision{
			Ticker:   holding.Ticker,
			Name:     meta.DisplayName(),
			Accepted: eval.Action != signal.ActionHold,
			Action:   string(eval.Action),
			Price:    eval.EvalPrice,
			EvalDate: eval.EvalDate,
			Reasons:  eval.Reasons,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Action.Rank() != rows[j].Action.Rank() {
			return rows[i].Action.Rank() < rows[j].Action.Rank()
		}
		return rows[i].Ticker < rows[j].Ticker
	})

	mode := "classic"
	modeNote := ""
	if hybrid {
		mode = report.StrategyHybrid
		modeNote = fmt.Sprintf("profit %.0f–%.0f%%, stop %.0f–%.0f%%",
			cfg.HybridSell.ProfitTargetLow*100, cfg.HybridSell.ProfitTargetHigh*100,
			cfg.HybridSell.StopLossPctMin*100, cfg.HybridSell.StopLossPctMax*100)
	}

	path, err := report.WriteSell(cfg.Data.ReportDir, report.SellReport{
		Provider:           cfg.Data.Provider,
		Rows:               rows,
		Failures:           failures,
		ATRTrailMultiplier: cfg.Sell.ATRTrailMultiplier,
		TimeStopDays:       cfg.Sell.TimeStopDays,
		FXRate:             cfg.FX.USDKRW,
		FXNote:             cfg.FX.Note,
		SellMode:           mode,
		SellModeNote:       modeNote,
		Now:                env.Now,
	})
	if err != nil {
		return SellSummary{}, fmt.Errorf("write sell report failed: %w", err)
	}
	logger.Infof("Sell report written to %s (%d holdings evaluated)", path, len(rows))

	runID := r.persistRun(ctx, signallog.Run{
		Kind:       "sell",
		Provider:   cfg.Data.Provider,
		Universe:   len(snap.Holdings),
		Candidates: len(rows),
		ReportPath: path,
		StartedAt:  started,
		FinishedAt: r.now(),
	}, decisions)

	actions := make(map[signal.Action]int, 3)
	for _, row := range rows {
		actions[row.Action]++
	}
	return SellSummary{
		RunID:      runID,
		ReportPath: path,
		Evaluated:  len(rows),
		Actions:    actions,
		Failures:   failures,
	}, nil
}
