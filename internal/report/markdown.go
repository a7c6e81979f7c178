// Package report renders the daily buy and sell markdown reports.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sab/internal/market"
	"sab/internal/pkg/format"
	"sab/internal/signal"
)

// StrategyHybrid marks reports produced by the pattern-based buy engine; the
// classic EMA-cross engine leaves the mode blank.
const StrategyHybrid = "sma_ema_hybrid"

var reportTitles = map[string]string{
	"buy":  "Swing Screening",
	"sell": "Holdings Sell Review",
}

// BuyReport carries everything the buy report needs; the writer itself does
// no evaluation.
type BuyReport struct {
	Provider      string
	CacheHint     string
	StrategyMode  string
	UniverseCount int
	Candidates    []signal.Candidate
	Failures      []string
	FXRate        float64 // KRW per USD, 0 when unavailable
	Now           time.Time
}

// WriteBuy renders the buy report into dir and returns the file path.
// Reports are named YYYY-MM-DD.buy.md with a -n suffix on collision, so
// re-runs never overwrite an earlier report.
func WriteBuy(dir string, r BuyReport) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	now := r.Now.In(market.MarketKR.Zone())
	today := now.Format("2006-01-02")
	path, err := nextReportPath(dir, today, "buy")
	if err != nil {
		return "", err
	}

	hybrid := r.StrategyMode == StrategyHybrid

	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("# %s — %s", reportTitles["buy"], today)
	line("- Run at: %s KST", now.Format("2006-01-02 15:04"))
	cacheNote := ""
	if r.CacheHint != "" {
		cacheNote = fmt.Sprintf(" (cache: %s)", r.CacheHint)
	}
	line("- Provider: %s%s", r.Provider, cacheNote)
	if r.StrategyMode != "" {
		label := r.StrategyMode
		if hybrid {
			label = "sma_ema_hybrid (SMA20 + EMA10/21)"
		}
		line("- Strategy: %s", label)
	}
	line("- Universe: %d tickers, Candidates: %d", r.UniverseCount, len(r.Candidates))
	if len(r.Failures) > 0 {
		line("- Notes: %d issue(s) logged (see Appendix)", len(r.Failures))
	}
	line("")

	if len(r.Candidates) > 0 {
		line("## Candidates")
		if hybrid {
			line("| Ticker | Name | Price | SMA20 | EMA10 | EMA21 | RSI14 | Vol(5d) | Pattern | State |")
			line("|--------|------|------:|------:|------:|------:|------:|--------:|---------|------:|")
			for _, c := range r.Candidates {
				line("| %s | %s | %s | %s | %s | %s | %s | %s | %s | %s |",
					c.Ticker, c.Name, c.Price, c.SMATrend, c.EMAShort, c.EMAMid,
					c.RSI14, c.AvgDollarVolume, c.Pattern, c.EntryState)
			}
		} else {
			line("| Ticker | Name | Price | EMA20 | EMA50 | RSI14 | ATR14 | Gap | Score |")
			line("|--------|------|------:|------:|------:|------:|------:|-----:|------:|")
			for _, c := range r.Candidates {
				line("| %s | %s | %s | %s | %s | %s | %s | %s | %s |",
					c.Ticker, c.Name, c.Price, c.EMA20, c.EMA50, c.RSI14, c.ATR14, c.Gap, c.Score)
			}
		}
		line("")

		for _, c := range r.Candidates {
			writeBuyCandidate(line, c, hybrid, r.FXRate)
		}
	} else {
		line("_No candidates for today._")
		line("")
	}

	if len(r.Failures) > 0 {
		line("### Appendix — Failures")
		for _, f := range r.Failures {
			line("- %s", f)
		}
		line("")
	}

	return path, os.WriteFile(path, []byte(b.String()), 0o644)
}

func writeBuyCandidate(line func(string, ...any), c signal.Candidate, hybrid bool, fxRate float64) {
	line("## [매수 후보] %s — %s", c.Ticker, c.Name)
	line("- Price: %s (d/d %s) H: %s L: %s", c.Price, c.PctChange, c.High, c.Low)

	if cur := strings.ToUpper(c.Currency); cur != "" && cur != "KRW" {
		label := fmt.Sprintf("- Currency: %s", cur)
		if cur == "USD" && fxRate > 0 {
			label += fmt.Sprintf(" (가격 ≈ ₩%s)", format.Float(c.PriceValue*fxRate, 0))
		}
		line("%s", label)
	}

	if hybrid {
		line("- Trend: SMA20(%s) / EMA10(%s) / EMA21(%s)", c.SMATrend, c.EMAShort, c.EMAMid)
		line("- Momentum: RSI14=%s", c.RSI14)
		line("- Liquidity: Avg $Vol %s", c.AvgDollarVolume)
		if c.Pattern != "" {
			stateLabel := ""
			if c.EntryState != "" {
				stateLabel = fmt.Sprintf(" (%s)", c.EntryState)
			}
			line("- Pattern: %s%s", c.Pattern, stateLabel)
		}
		if c.PatternReasons != "" {
			line("- Pattern notes: %s", c.PatternReasons)
		}
		if c.EntryStateReason != "" {
			line("- Entry guidance: %s", c.EntryStateReason)
		}
		line("- Checklist: Close>SMA20?, EMA10≥EMA21?")
		if c.ATR14 != "" {
			line("- ATR14: %s", c.ATR14)
		}
		if c.GapGuardPct != "" && c.GapGuardPct != "-" {
			line("- Gap guard: avoid if open > %s (%s) or < %s (%s)",
				c.GapGuardUp, c.GapGuardPct, c.GapGuardDown, c.GapGuardPct)
		}
	} else {
		trend := fmt.Sprintf("- Trend: EMA20(%s) vs EMA50(%s)", c.EMA20, c.EMA50)
		if c.SMA200 != "" && c.SMA200 != "-" {
			trend += fmt.Sprintf(", SMA200(%s)", c.SMA200)
		}
		if c.TrendPass != "" {
			trend += fmt.Sprintf(" (trend pass: %s)", c.TrendPass)
		}
		line("%s", trend)
		line("- Momentum: RSI14=%s", c.RSI14)
		line("- Volatility: ATR14=%s", c.ATR14)
		line("- Gap: %s (threshold %s)", c.Gap, c.GapThreshold)
		line("- Liquidity: Avg $Vol %s", c.AvgDollarVolume)
	}

	if c.RiskGuide != "" {
		line("- Risk guide: %s", c.RiskGuide)
	}
	if c.Score != "" {
		detail := fmt.Sprintf("- Score: %s", c.Score)
		if c.ScoreNotes != "" {
			detail += fmt.Sprintf(" (%s)", c.ScoreNotes)
		}
		line("%s", detail)
	}
	line("")
}

// nextReportPath finds the first free YYYY-MM-DD[-n].<kind>.md path.
func nextReportPath(dir, date, kind string) (string, error) {
	suffix := ".md"
	if kind != "" {
		suffix = "." + kind + ".md"
	}
	path := filepath.Join(dir, date+suffix)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path, nil
	}
	for i := 1; ; i++ {
		path = filepath.Join(dir, fmt.Sprintf("%s-%d%s", date, i, suffix))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		}
	}
}
