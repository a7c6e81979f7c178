package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sab/internal/signal"
)

var reportNow = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC) // 21:00 KST

func readReport(t *testing.T, path string) string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(raw)
}

func classicCandidate() signal.Candidate {
	return signal.Candidate{
		Ticker:          "005930",
		Name:            "삼성전자",
		Price:           "72,500",
		Currency:        "KRW",
		PriceValue:      72500,
		PctChange:       "1.2%",
		High:            "73,000",
		Low:             "71,800",
		EMA20:           "71,900",
		EMA50:           "70,450",
		RSI14:           "58.2",
		ATR14:           "1,450",
		Gap:             "0.3%",
		GapThreshold:    "2.0%",
		SMA200:          "68,100",
		AvgDollarVolume: "412,000,000,000",
		RiskGuide:       "Stop 71,050 / Target 75,400 (~1:2)",
		Score:           "6.0",
		ScoreValue:      6.0,
		ScoreNotes:      "ema_cross, rsi, sma200, slope, gap, liquidity",
		TrendPass:       "Yes",
	}
}

func hybridCandidate() signal.Candidate {
	return signal.Candidate{
		Ticker:           "AAPL.US",
		Name:             "Apple",
		Price:            "189.5",
		Currency:         "USD",
		PriceValue:       189.5,
		PctChange:        "0.8%",
		High:             "190.2",
		Low:              "187.9",
		RSI14:            "55.4",
		ATR14:            "3.1",
		AvgDollarVolume:  "9,120,000,000",
		SMATrend:         "185.2",
		EMAShort:         "187.1",
		EMAMid:           "186.4",
		Pattern:          signal.PatternTrendPullbackBounce,
		PatternReasons:   "Close reclaimed EMA short",
		EntryState:       signal.EntryReady,
		EntryStateReason: "Bounce confirmed: close above EMA short with RSI>50",
		GapGuardPct:      "±1.6%",
		GapGuardUp:       "192.6",
		GapGuardDown:     "186.4",
		RiskGuide:        "Stop 184 / Target 201 (~1:2)",
	}
}

func TestWriteBuyClassic(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteBuy(dir, BuyReport{
		Provider:      "file",
		CacheHint:     "warm",
		UniverseCount: 25,
		Candidates:    []signal.Candidate{classicCandidate()},
		Failures:      []string{"123456: not enough history"},
		Now:           reportNow,
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2025-06-02.buy.md"), path)

	body := readReport(t, path)
	assert.Contains(t, body, "# Swing Screening — 2025-06-02")
	assert.Contains(t, body, "- Run at: 2025-06-02 21:00 KST")
	assert.Contains(t, body, "- Provider: file (cache: warm)")
	assert.Contains(t, body, "- Universe: 25 tickers, Candidates: 1")
	assert.Contains(t, body, "| Ticker | Name | Price | EMA20 | EMA50 | RSI14 | ATR14 | Gap | Score |")
	assert.Contains(t, body, "| 005930 | 삼성전자 | 72,500 |")
	assert.Contains(t, body, "## [매수 후보] 005930 — 삼성전자")
	assert.Contains(t, body, "- Trend: EMA20(71,900) vs EMA50(70,450), SMA200(68,100) (trend pass: Yes)")
	assert.Contains(t, body, "- Gap: 0.3% (threshold 2.0%)")
	assert.Contains(t, body, "- Score: 6.0 (ema_cross, rsi, sma200, slope, gap, liquidity)")
	assert.Contains(t, body, "### Appendix — Failures")
	assert.Contains(t, body, "- 123456: not enough history")
	assert.NotContains(t, body, "- Strategy:")
	assert.NotContains(t, body, "- Currency:")
}

func TestWriteBuyHybrid(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteBuy(dir, BuyReport{
		Provider:      "file",
		StrategyMode:  StrategyHybrid,
		UniverseCount: 3,
		Candidates:    []signal.Candidate{hybridCandidate()},
		FXRate:        1350,
		Now:           reportNow,
	})
	require.NoError(t, err)

	body := readReport(t, path)
	assert.Contains(t, body, "- Strategy: sma_ema_hybrid (SMA20 + EMA10/21)")
	assert.Contains(t, body, "| Ticker | Name | Price | SMA20 | EMA10 | EMA21 | RSI14 | Vol(5d) | Pattern | State |")
	assert.Contains(t, body, "| AAPL.US | Apple | 189.5 | 185.2 | 187.1 | 186.4 | 55.4 | 9,120,000,000 | trend_pullback_bounce | READY |")
	assert.Contains(t, body, "- Currency: USD (가격 ≈ ₩255,825)")
	assert.Contains(t, body, "- Trend: SMA20(185.2) / EMA10(187.1) / EMA21(186.4)")
	assert.Contains(t, body, "- Pattern: trend_pullback_bounce (READY)")
	assert.Contains(t, body, "- Pattern notes: Close reclaimed EMA short")
	assert.Contains(t, body, "- Entry guidance: Bounce confirmed: close above EMA short with RSI>50")
	assert.Contains(t, body, "- Checklist: Close>SMA20?, EMA10≥EMA21?")
	assert.Contains(t, body, "- Gap guard: avoid if open > 192.6 (±1.6%) or < 186.4 (±1.6%)")
	assert.NotContains(t, body, "- Volatility:")
}

func TestWriteBuyEmptyAndCollision(t *testing.T) {
	dir := t.TempDir()
	first, err := WriteBuy(dir, BuyReport{Provider: "file", Now: reportNow})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2025-06-02.buy.md"), first)
	assert.Contains(t, readReport(t, first), "_No candidates for today._")

	second, err := WriteBuy(dir, BuyReport{Provider: "file", Now: reportNow})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2025-06-02-1.buy.md"), second)

	third, err := WriteBuy(dir, BuyReport{Provider: "file", Now: reportNow})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2025-06-02-2.buy.md"), third)
}

func TestWriteSell(t *testing.T) {
	dir := t.TempDir()
	pnlUp := 0.118
	pnlDown := -0.021
	stop := 171.9
	target := 208.4

	path, err := WriteSell(dir, SellReport{
		Provider:           "file",
		ATRTrailMultiplier: 2.0,
		TimeStopDays:       60,
		FXRate:             1350,
		SellMode:           "classic",
		Now:                reportNow,
		Rows: []SellRow{
			{
				Ticker:      "AAPL.US",
				Name:        "Apple",
				Currency:    "USD",
				Quantity:    10,
				EntryPrice:  169.5,
				EntryDate:   "2025-01-02",
				LastPrice:   189.5,
				PnlPct:      &pnlUp,
				Action:      signal.ActionSell,
				Reasons:     []string{"Reached high profit target (11.8% >= 10%)"},
				StopPrice:   &stop,
				TargetPrice: &target,
				EvalDate:    "20250602",
			},
			{
				Ticker:     "005930",
				Name:       "삼성전자",
				Currency:   "KRW",
				Quantity:   20,
				EntryPrice: 74000,
				LastPrice:  72500,
				PnlPct:     &pnlDown,
				Action:     signal.ActionHold,
				Reasons:    []string{"No hybrid sell criteria triggered"},
				Notes:      "core position",
				EvalDate:   "20250602",
			},
		},
		Failures: []string{"000660: no candle data"},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2025-06-02.sell.md"), path)

	body := readReport(t, path)
	assert.Contains(t, body, "# Holdings Sell Review — 2025-06-02")
	assert.Contains(t, body, "- Evaluated holdings: 2")
	assert.Contains(t, body, "- FX: 1 USD ≈ ₩1,350")
	assert.Contains(t, body, "- Rules: ATR trail ×2, Time stop 60d")
	assert.Contains(t, body, "- Sell mode: classic")
	assert.Contains(t, body, "| Ticker | Qty | Entry | Last | P/L% | State | Stop | Target |")
	assert.Contains(t, body, "| AAPL.US | 10 | $169.50 (₩228,825) | $189.50 (₩255,825) | +11.8% | SELL | $171.90 (₩232,065) | $208.40 (₩281,340) |")
	assert.Contains(t, body, "| 005930 | 20 | ₩74,000 | ₩72,500 | -2.1% | HOLD | - | - |")
	assert.Contains(t, body, "## [SELL] AAPL.US — Apple")
	assert.Contains(t, body, "- Position: Qty 10 / Entry $169.50 (₩228,825) / since 2025-01-02")
	assert.Contains(t, body, "- Last close: $189.50 (₩255,825) (as of 20250602)")
	assert.Contains(t, body, "- P/L: +11.8%")
	assert.Contains(t, body, "- Risk guide: Stop $171.90 (₩232,065) / Target $208.40 (₩281,340)")
	assert.Contains(t, body, "  - Reached high profit target (11.8% >= 10%)")
	assert.Contains(t, body, "## [HOLD] 005930 — 삼성전자")
	assert.Contains(t, body, "- Notes: core position")
	assert.Contains(t, body, "### Appendix — Issues")
	assert.Contains(t, body, "- 000660: no candle data")
}

func TestWriteSellEmpty(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteSell(dir, SellReport{Provider: "file", Now: reportNow})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2025-06-02.sell.md"), path)

	body := readReport(t, path)
	assert.Contains(t, body, "_No holdings evaluated._")
	assert.NotContains(t, body, "- FX:")
	assert.NotContains(t, body, "## Holdings Summary")
}

func TestWriteSellHybridModeLabel(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteSell(dir, SellReport{
		Provider:     "file",
		SellMode:     StrategyHybrid,
		SellModeNote: "strategy-aware rules per holding",
		Now:          reportNow,
	})
	require.NoError(t, err)
	body := readReport(t, path)
	assert.Contains(t, body, "- Sell mode: sma_ema_hybrid (SMA20 + EMA10/21) — strategy-aware rules per holding")
}
