package signal

import (
	"fmt"
	"math"
	"time"

	"sab/internal/analysis/indicator"
	"sab/internal/market"
)

// SellSettings configures the generic exit-rule evaluator.
type SellSettings struct {
	ATRTrailMultiplier float64
	TimeStopDays       int
	RequireSMA200      bool
	EMAShortLength     int
	EMALongLength      int
	RSIPeriod          int
	RSIFloor           float64
	RSIFloorAlt        float64
	MinBars            int
}

// DefaultSellSettings mirrors the shipped exit profile.
func DefaultSellSettings() SellSettings {
	return SellSettings{
		ATRTrailMultiplier: 1.0,
		TimeStopDays:       10,
		RequireSMA200:      true,
		EMAShortLength:     20,
		EMALongLength:      50,
		RSIPeriod:          14,
		RSIFloor:           50,
		RSIFloorAlt:        30,
		MinBars:            20,
	}
}

func metaForHolding(h market.Holding) market.Metadata {
	return market.Metadata{Ticker: h.Ticker, Currency: h.CurrencyOrInferred()}
}

// daysHeld counts calendar days between the holding's ISO entry date and
// the evaluation day. Both sides collapse to UTC midnight of their calendar
// date before differencing, so the count does not shift with the host time
// zone. ok is false for blank or malformed entry dates.
func daysHeld(h market.Holding, today time.Time) (int, bool) {
	if h.EntryDate == "" {
		return 0, false
	}
	entry, err := time.Parse("2006-01-02", h.EntryDate)
	if err != nil {
		return 0, false
	}
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	return int(day.Sub(entry).Hours() / 24), true
}

// EvaluateSellSignals applies the generic exit rules to one open position.
// Rules escalate HOLD -> REVIEW -> SELL; once a rule sets SELL, later
// REVIEW-only rules never downgrade it.
func EvaluateSellSignals(ticker string, candles market.Candles, holding market.Holding, settings SellSettings, env Env) SellEvaluation {
	if len(candles) < settings.MinBars {
		return SellEvaluation{Action: ActionReview, Reasons: []string{"Insufficient data for sell evaluation"}}
	}

	idxEval, _ := env.evalIndex(candles, metaForHolding(holding))
	if idxEval < 1 {
		return SellEvaluation{Action: ActionReview, Reasons: []string{"Not enough completed candles"}}
	}
	eval := candles[:idxEval+1]
	closes := eval.Closes()
	last := len(closes) - 1

	atrValues := indicator.Atr(eval.Highs(), eval.Lows(), closes, 14)
	emaShort := indicator.Ema(closes, settings.EMAShortLength)
	emaLong := indicator.Ema(closes, settings.EMALongLength)
	rsiValues := indicator.Rsi(closes, settings.RSIPeriod)

	latest := candles[idxEval]
	closeToday := latest.Close
	atrToday := atrValues[last]

	var reasons []string
	action := ActionHold
	review := func() {
		if action != ActionSell {
			action = ActionReview
		}
	}

	if settings.RequireSMA200 {
		smaVal := indicator.Sma(closes, 200)[last]
		if !(closeToday > smaVal && emaShort[last] > smaVal && emaLong[last] > smaVal) {
			reasons = append(reasons, "Below SMA200 context")
			action = ActionReview
		}
	}

	if emaShort[last] < emaLong[last] && emaShort[last-1] >= emaLong[last-1] {
		reasons = append(reasons, "Short EMA crossed below long EMA")
		action = ActionSell
	} else if closeToday < emaShort[last] && closeToday < emaLong[last] {
		reasons = append(reasons, "Price below both EMAs")
		review()
	}

	rsiToday := rsiValues[last]
	if rsiToday < settings.RSIFloor {
		reasons = append(reasons, fmt.Sprintf("RSI dropped below %.0f", settings.RSIFloor))
		review()
	}
	if rsiToday < settings.RSIFloorAlt {
		reasons = append(reasons, fmt.Sprintf("RSI dropped below %.0f", settings.RSIFloorAlt))
		action = ActionSell
	}

	// An explicit per-holding stop override replaces the computed trail and
	// is surfaced as-is; the automatic trigger only applies to the ATR trail.
	var stopPrice *float64
	if holding.StopOverride != nil {
		v := *holding.StopOverride
		stopPrice = &v
		reasons = append(reasons, "Custom stop override in effect")
	} else if !math.IsNaN(atrToday) && atrToday > 0 {
		stop := closeToday - settings.ATRTrailMultiplier*atrToday
		stopPrice = &stop
		reasons = append(reasons, fmt.Sprintf("ATR trail %g×ATR → %.2f", settings.ATRTrailMultiplier, stop))
		if closeToday <= stop {
			reasons = append(reasons, "Price hit ATR trailing stop")
			action = ActionSell
		}
	}

	var targetPrice *float64
	if holding.TargetOverride != nil {
		v := *holding.TargetOverride
		targetPrice = &v
	}

	if settings.TimeStopDays > 0 {
		if days, ok := daysHeld(holding, env.today()); ok && days >= settings.TimeStopDays {
			reasons = append(reasons, fmt.Sprintf("Time stop: %d days >= %d days", days, settings.TimeStopDays))
			review()
		}
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "No sell criteria triggered")
	}

	return SellEvaluation{
		Action:      action,
		Reasons:     reasons,
		StopPrice:   stopPrice,
		TargetPrice: targetPrice,
		EvalPrice:   closeToday,
		EvalIndex:   idxEval,
		EvalDate:    latest.Date,
	}
}
