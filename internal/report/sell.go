package report

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"sab/internal/market"
	"sab/internal/pkg/format"
	"sab/internal/signal"
)

// SellRow is one evaluated holding in the sell report.
type SellRow struct {
	Ticker      string
	Name        string
	Currency    string
	Quantity    float64
	EntryPrice  float64
	EntryDate   string
	LastPrice   float64
	PnlPct      *float64
	Action      signal.Action
	Reasons     []string
	StopPrice   *float64
	TargetPrice *float64
	Notes       string
	EvalDate    string
}

// SellReport carries the report inputs; rows arrive already sorted by
// urgency (SELL first).
type SellReport struct {
	Provider           string
	CacheHint          string
	Rows               []SellRow
	Failures           []string
	ATRTrailMultiplier float64
	TimeStopDays       int
	FXRate             float64 // KRW per USD, 0 when unavailable
	FXNote             string
	SellMode           string
	SellModeNote       string
	Now                time.Time
}

// WriteSell renders the holdings review into dir and returns the file path.
func WriteSell(dir string, r SellReport) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	now := r.Now.In(market.MarketKR.Zone())
	today := now.Format("2006-01-02")
	path, err := nextReportPath(dir, today, "sell")
	if err != nil {
		return "", err
	}

	hasUSD := false
	for _, row := range r.Rows {
		if strings.EqualFold(row.Currency, "USD") {
			hasUSD = true
			break
		}
	}

	var rules []string
	if r.ATRTrailMultiplier > 0 {
		rules = append(rules, fmt.Sprintf("ATR trail ×%g", r.ATRTrailMultiplier))
	}
	if r.TimeStopDays > 0 {
		rules = append(rules, fmt.Sprintf("Time stop %dd", r.TimeStopDays))
	}

	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("# %s — %s", reportTitles["sell"], today)
	line("- Run at: %s KST", now.Format("2006-01-02 15:04"))
	cacheNote := ""
	if r.CacheHint != "" {
		cacheNote = fmt.Sprintf(" (cache: %s)", r.CacheHint)
	}
	line("- Provider: %s%s", r.Provider, cacheNote)
	line("- Evaluated holdings: %d", len(r.Rows))
	if hasUSD {
		switch {
		case r.FXRate > 0 && r.FXNote != "":
			line("- FX: 1 USD ≈ ₩%s (%s)", format.Float(r.FXRate, 0), r.FXNote)
		case r.FXRate > 0:
			line("- FX: 1 USD ≈ ₩%s", format.Float(r.FXRate, 0))
		case r.FXNote != "":
			line("- FX: %s", r.FXNote)
		default:
			line("- FX: unavailable")
		}
	}
	if len(rules) > 0 {
		line("- Rules: %s", strings.Join(rules, ", "))
	}
	if r.SellMode != "" {
		label := r.SellMode
		if r.SellMode == StrategyHybrid {
			label = "sma_ema_hybrid (SMA20 + EMA10/21)"
		}
		modeLine := fmt.Sprintf("- Sell mode: %s", label)
		if r.SellModeNote != "" {
			modeLine += fmt.Sprintf(" — %s", r.SellModeNote)
		}
		line("%s", modeLine)
	}
	if len(r.Failures) > 0 {
		line("- Notes: %d issue(s) logged (see Appendix)", len(r.Failures))
	}
	line("")

	if len(r.Rows) > 0 {
		line("## Holdings Summary")
		line("| Ticker | Qty | Entry | Last | P/L%% | State | Stop | Target |")
		line("|--------|----:|------:|-----:|-----:|-------|------|--------|")
		for _, row := range r.Rows {
			line("| %s | %s | %s | %s | %s | %s | %s | %s |",
				row.Ticker,
				format.Float(row.Quantity, 0),
				fmtCurrency(row.EntryPrice, row.Currency, r.FXRate),
				fmtCurrency(row.LastPrice, row.Currency, r.FXRate),
				fmtPnl(row.PnlPct),
				row.Action,
				fmtOptCurrency(row.StopPrice, row.Currency, r.FXRate),
				fmtOptCurrency(row.TargetPrice, row.Currency, r.FXRate))
		}
		line("")

		for _, row := range r.Rows {
			writeSellRow(line, row, r.FXRate)
		}
	} else {
		line("_No holdings evaluated._")
		line("")
	}

	if len(r.Failures) > 0 {
		line("### Appendix — Issues")
		for _, f := range r.Failures {
			line("- %s", f)
		}
		line("")
	}

	return path, os.WriteFile(path, []byte(b.String()), 0o644)
}

func writeSellRow(line func(string, ...any), row SellRow, fxRate float64) {
	title := fmt.Sprintf("## [%s] %s", row.Action, row.Ticker)
	if row.Name != "" && row.Name != row.Ticker {
		title += fmt.Sprintf(" — %s", row.Name)
	}
	line("%s", title)

	var position []string
	if row.Quantity != 0 {
		position = append(position, fmt.Sprintf("Qty %g", row.Quantity))
	}
	if row.EntryPrice != 0 {
		position = append(position, fmt.Sprintf("Entry %s", fmtCurrency(row.EntryPrice, row.Currency, fxRate)))
	}
	if row.EntryDate != "" {
		position = append(position, fmt.Sprintf("since %s", row.EntryDate))
	}
	if len(position) > 0 {
		line("- Position: %s", strings.Join(position, " / "))
	}
	if row.LastPrice != 0 {
		last := fmt.Sprintf("- Last close: %s", fmtCurrency(row.LastPrice, row.Currency, fxRate))
		if row.EvalDate != "" {
			last += fmt.Sprintf(" (as of %s)", row.EvalDate)
		}
		line("%s", last)
	}
	line("- P/L: %s", fmtPnl(row.PnlPct))
	if row.StopPrice != nil || row.TargetPrice != nil {
		line("- Risk guide: Stop %s / Target %s",
			fmtOptCurrency(row.StopPrice, row.Currency, fxRate),
			fmtOptCurrency(row.TargetPrice, row.Currency, fxRate))
	}
	if row.Notes != "" {
		line("- Notes: %s", row.Notes)
	}
	if len(row.Reasons) > 0 {
		line("- Reasons:")
		for _, reason := range row.Reasons {
			line("  - %s", reason)
		}
	}
	line("")
}

func fmtPnl(v *float64) string {
	if v == nil {
		return "-"
	}
	return format.SignedPercent(*v)
}

// fmtCurrency renders a price in its trade currency; USD values also show
// the KRW conversion when an FX rate is known.
func fmtCurrency(v float64, currency string, fxRate float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	switch strings.ToUpper(strings.TrimSpace(currency)) {
	case "USD":
		display := "$" + humanize.FormatFloat("#,###.##", v)
		if fxRate > 0 {
			display += fmt.Sprintf(" (₩%s)", format.Float(v*fxRate, 0))
		}
		return display
	case "KRW", "":
		return "₩" + format.Float(v, 0)
	default:
		return fmt.Sprintf("%s %s", strings.ToUpper(currency), humanize.FormatFloat("#,###.##", v))
	}
}

func fmtOptCurrency(v *float64, currency string, fxRate float64) string {
	if v == nil {
		return "-"
	}
	return fmtCurrency(*v, currency, fxRate)
}
