package signal

import (
	"fmt"
	"math"

	"sab/internal/analysis/indicator"
	"sab/internal/market"
)

// HybridSellSettings configures the hybrid exit evaluator, which layers
// profit taking and failed-breakout handling on top of the generic
// breakdown rules.
type HybridSellSettings struct {
	ProfitTargetLow    float64
	ProfitTargetHigh   float64
	PartialProfitFloor float64

	EMAShortPeriod int
	EMAMidPeriod   int
	SMATrendPeriod int
	RSIPeriod      int

	StopLossPctMin float64
	StopLossPctMax float64

	FailedBreakoutDropPct float64

	MinBars      int
	TimeStopDays int // 0 disables
}

// DefaultHybridSellSettings mirrors the shipped hybrid exit profile.
func DefaultHybridSellSettings() HybridSellSettings {
	return HybridSellSettings{
		ProfitTargetLow:       0.05,
		ProfitTargetHigh:      0.10,
		PartialProfitFloor:    0.03,
		EMAShortPeriod:        10,
		EMAMidPeriod:          21,
		SMATrendPeriod:        20,
		RSIPeriod:             14,
		StopLossPctMin:        0.03,
		StopLossPctMax:        0.05,
		FailedBreakoutDropPct: 0.03,
		MinBars:               20,
	}
}

func pnlPct(entryPrice, lastClose float64) (float64, bool) {
	if entryPrice == 0 || math.IsNaN(entryPrice) || math.IsNaN(lastClose) {
		return 0, false
	}
	return (lastClose - entryPrice) / entryPrice, true
}

// EvaluateSellSignalsHybrid applies the hybrid exit rules to one open
// position. Same precedence contract as the generic evaluator: SELL is
// never downgraded once set.
func EvaluateSellSignalsHybrid(ticker string, candles market.Candles, holding market.Holding, settings HybridSellSettings, env Env) SellEvaluation {
	if len(candles) < max(settings.MinBars, 2) {
		return SellEvaluation{Action: ActionReview, Reasons: []string{"Insufficient data for hybrid sell evaluation"}}
	}

	idxEval, _ := env.evalIndex(candles, metaForHolding(holding))
	if idxEval < 1 {
		return SellEvaluation{Action: ActionReview, Reasons: []string{"Not enough completed candles for hybrid sell"}}
	}
	eval := candles[:idxEval+1]
	closes := eval.Closes()
	last := len(closes) - 1

	latest := candles[idxEval]
	lastClose := latest.Close

	emaShort := indicator.Ema(closes, settings.EMAShortPeriod)
	emaMid := indicator.Ema(closes, settings.EMAMidPeriod)
	smaTrend := indicator.Sma(closes, settings.SMATrendPeriod)
	rsiValues := indicator.Rsi(closes, settings.RSIPeriod)

	var reasons []string
	action := ActionHold
	review := func() {
		if action != ActionSell {
			action = ActionReview
		}
	}

	entryPrice := holding.EntryPrice
	pnl, havePnl := pnlPct(entryPrice, lastClose)

	// 1) Profit taking.
	var stopPrice, targetPrice *float64
	if havePnl && pnl >= settings.ProfitTargetHigh {
		reasons = append(reasons, fmt.Sprintf("Reached high profit target (%.1f%% >= %.0f%%)", pnl*100, settings.ProfitTargetHigh*100))
		action = ActionSell
	} else if havePnl && pnl >= settings.PartialProfitFloor {
		reasons = append(reasons, fmt.Sprintf("Reached partial profit zone (%.1f%% >= %.0f%%)", pnl*100, settings.PartialProfitFloor*100))
		review()
	}
	if entryPrice != 0 && !math.IsNaN(entryPrice) {
		t := entryPrice * (1 + settings.ProfitTargetHigh)
		targetPrice = &t
	}

	// 2) Trend breakdown.
	if lastClose < emaShort[last] {
		reasons = append(reasons, "Close below EMA short")
		review()
	}
	if lastClose < smaTrend[last] {
		reasons = append(reasons, "Close below SMA trend")
		review()
	}
	if last >= 1 && emaShort[last] < emaMid[last] && emaShort[last-1] >= emaMid[last-1] {
		reasons = append(reasons, "EMA short crossed below EMA mid (momentum down)")
		action = ActionSell
	}
	if len(eval) >= 3 {
		bearish := true
		for _, c := range eval[len(eval)-3:] {
			if c.Close >= c.Open {
				bearish = false
				break
			}
		}
		if bearish {
			reasons = append(reasons, "Three consecutive bearish candles")
			review()
		}
	}

	rsiToday := rsiValues[last]
	if rsiToday < 50 {
		reasons = append(reasons, "RSI dropped below 50")
		review()
	}
	if rsiToday < 40 {
		reasons = append(reasons, "RSI dropped into oversold zone (<40)")
		action = ActionSell
	}

	// 3) Failed breakout: a breakout entry that lost its level is cut fast.
	if havePnl && holding.StrategyMentions("breakout") && pnl <= -settings.FailedBreakoutDropPct {
		reasons = append(reasons, fmt.Sprintf("Failed breakout: price moved %.1f%% below entry (threshold %.0f%%)", pnl*100, settings.FailedBreakoutDropPct*100))
		action = ActionSell
	}

	// 4) Hard stop-loss band, with the reported stop at the band midpoint.
	if havePnl && pnl < 0 {
		lossAbs := math.Abs(pnl)
		if lossAbs >= settings.StopLossPctMin {
			reasons = append(reasons, fmt.Sprintf("Hit hard stop band (loss %.1f%% >= %.0f%% min)", lossAbs*100, settings.StopLossPctMin*100))
			action = ActionSell
			midBand := (settings.StopLossPctMin + settings.StopLossPctMax) / 2
			stop := entryPrice * (1 - midBand)
			stopPrice = &stop
		}
	}

	// 5) Optional time stop.
	if settings.TimeStopDays > 0 {
		if days, ok := daysHeld(holding, env.today()); ok && days >= settings.TimeStopDays {
			reasons = append(reasons, fmt.Sprintf("Time stop: %d days >= %d days", days, settings.TimeStopDays))
			review()
		}
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "No hybrid sell criteria triggered")
	}

	return SellEvaluation{
		Action:      action,
		Reasons:     reasons,
		StopPrice:   stopPrice,
		TargetPrice: targetPrice,
		EvalPrice:   lastClose,
		EvalIndex:   idxEval,
		EvalDate:    latest.Date,
	}
}
