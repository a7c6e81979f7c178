package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sab/internal/market"
)

func hybridSellTestSettings() HybridSellSettings {
	return HybridSellSettings{
		ProfitTargetLow:       0.05,
		ProfitTargetHigh:      0.10,
		PartialProfitFloor:    0.03,
		EMAShortPeriod:        3,
		EMAMidPeriod:          5,
		SMATrendPeriod:        5,
		RSIPeriod:             3,
		StopLossPctMin:        0.03,
		StopLossPctMax:        0.05,
		FailedBreakoutDropPct: 0.03,
		MinBars:               20,
	}
}

func flatCandles(n int, close float64) market.Candles {
	out := make(market.Candles, n)
	for i := range out {
		out[i] = market.Candle{
			Date: seqDate(i), Open: close,
			High: close + 0.5, Low: close - 0.5,
			Close: close, Volume: 1_000_000,
		}
	}
	return out
}

func TestHybridSellProfitTargets(t *testing.T) {
	candles := candlesFromCloses(steadyRise(24), 1_000_000) // ends at 123

	t.Run("high target sells", func(t *testing.T) {
		holding := market.Holding{Ticker: "005930", EntryPrice: 110, Strategy: "hybrid_pullback"}
		eval := EvaluateSellSignalsHybrid("005930", candles, holding, hybridSellTestSettings(), testEnv())
		assert.Equal(t, ActionSell, eval.Action)
		assert.Contains(t, eval.Reasons, "Reached high profit target (11.8% >= 10%)")
		require.NotNil(t, eval.TargetPrice)
		assert.InDelta(t, 121.0, *eval.TargetPrice, 1e-9)
	})

	t.Run("partial zone reviews", func(t *testing.T) {
		holding := market.Holding{Ticker: "005930", EntryPrice: 119, Strategy: "hybrid_pullback"}
		eval := EvaluateSellSignalsHybrid("005930", candles, holding, hybridSellTestSettings(), testEnv())
		assert.Equal(t, ActionReview, eval.Action)
		assert.Contains(t, eval.Reasons, "Reached partial profit zone (3.4% >= 3%)")
	})
}

func TestHybridSellHoldsHealthyTrend(t *testing.T) {
	candles := candlesFromCloses(steadyRise(24), 1_000_000)
	holding := market.Holding{Ticker: "005930", EntryPrice: 123, Strategy: "hybrid_pullback"}

	eval := EvaluateSellSignalsHybrid("005930", candles, holding, hybridSellTestSettings(), testEnv())
	assert.Equal(t, ActionHold, eval.Action)
	assert.Equal(t, []string{"No hybrid sell criteria triggered"}, eval.Reasons)
	assert.Equal(t, 23, eval.EvalIndex)
	assert.Equal(t, 123.0, eval.EvalPrice)
}

func TestHybridSellTrendBreakdown(t *testing.T) {
	// One bar slips under the short EMA and trend SMA; RSI cools but stays
	// above the oversold trigger.
	closes := append(steadyRise(20), 116.8)
	candles := candlesFromCloses(closes, 1_000_000)
	holding := market.Holding{Ticker: "005930", EntryPrice: 116.8, Strategy: "hybrid_pullback"}

	eval := EvaluateSellSignalsHybrid("005930", candles, holding, hybridSellTestSettings(), testEnv())
	assert.Equal(t, ActionReview, eval.Action)
	assert.Contains(t, eval.Reasons, "Close below EMA short")
	assert.Contains(t, eval.Reasons, "Close below SMA trend")
	assert.Contains(t, eval.Reasons, "RSI dropped below 50")
	assert.NotContains(t, eval.Reasons, "RSI dropped into oversold zone (<40)")
}

func TestHybridSellMomentumCross(t *testing.T) {
	closes := append(steadyRise(20), 118.3, 116.8, 115.2)
	candles := candlesFromCloses(closes, 1_000_000)
	holding := market.Holding{Ticker: "005930", EntryPrice: 115.2, Strategy: "hybrid_pullback"}

	eval := EvaluateSellSignalsHybrid("005930", candles, holding, hybridSellTestSettings(), testEnv())
	assert.Equal(t, ActionSell, eval.Action)
	assert.Contains(t, eval.Reasons, "EMA short crossed below EMA mid (momentum down)")
	assert.Contains(t, eval.Reasons, "RSI dropped into oversold zone (<40)")
	assert.Contains(t, eval.Reasons, "Three consecutive bearish candles")
}

func TestHybridSellBearishCandlesOnly(t *testing.T) {
	// Closes keep inching up, but each bar finishes under its open: three
	// red candles with no other rule firing.
	candles := candlesFromCloses(func() []float64 {
		out := make([]float64, 20)
		for i := range out {
			out[i] = 100 + 0.5*float64(i)
		}
		return out
	}(), 1_000_000)
	c := candles[len(candles)-1].Close
	for i := 0; i < 3; i++ {
		open := c + 0.3
		c += 0.1
		candles = append(candles, market.Candle{
			Date: seqDate(len(candles)), Open: open,
			High: open + 0.5, Low: c - 0.5,
			Close: c, Volume: 1_000_000,
		})
	}
	holding := market.Holding{Ticker: "005930", EntryPrice: c, Strategy: "hybrid_pullback"}

	eval := EvaluateSellSignalsHybrid("005930", candles, holding, hybridSellTestSettings(), testEnv())
	assert.Equal(t, ActionReview, eval.Action)
	assert.Equal(t, []string{"Three consecutive bearish candles"}, eval.Reasons)
}

func TestHybridSellFailedBreakout(t *testing.T) {
	candles := flatCandles(23, 100)

	t.Run("breakout entry cut fast", func(t *testing.T) {
		holding := market.Holding{Ticker: "005930", EntryPrice: 104, Strategy: "hybrid_breakout"}
		eval := EvaluateSellSignalsHybrid("005930", candles, holding, hybridSellTestSettings(), testEnv())
		assert.Equal(t, ActionSell, eval.Action)
		assert.Contains(t, eval.Reasons, "Failed breakout: price moved -3.8% below entry (threshold 3%)")
		assert.Contains(t, eval.Reasons, "Hit hard stop band (loss 3.8% >= 3% min)")
		require.NotNil(t, eval.StopPrice)
		assert.InDelta(t, 99.84, *eval.StopPrice, 1e-9)
		require.NotNil(t, eval.TargetPrice)
		assert.InDelta(t, 114.4, *eval.TargetPrice, 1e-9)
	})

	t.Run("same loss without breakout tag hits only the stop band", func(t *testing.T) {
		holding := market.Holding{Ticker: "005930", EntryPrice: 104, Strategy: "hybrid_pullback"}
		eval := EvaluateSellSignalsHybrid("005930", candles, holding, hybridSellTestSettings(), testEnv())
		assert.Equal(t, ActionSell, eval.Action)
		for _, r := range eval.Reasons {
			assert.NotContains(t, r, "Failed breakout")
		}
		assert.Contains(t, eval.Reasons, "Hit hard stop band (loss 3.8% >= 3% min)")
		require.NotNil(t, eval.StopPrice)
		assert.InDelta(t, 99.84, *eval.StopPrice, 1e-9)
	})
}

func TestHybridSellInsufficientData(t *testing.T) {
	candles := flatCandles(5, 100)
	holding := market.Holding{Ticker: "005930", EntryPrice: 100}

	eval := EvaluateSellSignalsHybrid("005930", candles, holding, hybridSellTestSettings(), testEnv())
	assert.Equal(t, ActionReview, eval.Action)
	assert.Equal(t, []string{"Insufficient data for hybrid sell evaluation"}, eval.Reasons)
}
