// Package signal contains the rule engines that turn candle series into
// buy candidates and sell decisions. Every evaluator here is a pure function
// of (candles, metadata, settings, env): identical inputs always produce an
// identical decision, which is what makes the per-ticker parallel scan safe.
package signal

import (
	"time"

	"sab/internal/market"
)

// Action is the sell-side verdict. Precedence is SELL > REVIEW > HOLD: a
// rule may escalate the action but a SELL is never downgraded by a later
// REVIEW-only rule.
type Action string

const (
	ActionHold   Action = "HOLD"
	ActionReview Action = "REVIEW"
	ActionSell   Action = "SELL"
)

// Rank orders actions by urgency for report sorting (SELL first).
func (a Action) Rank() int {
	switch a {
	case ActionSell:
		return 0
	case ActionReview:
		return 1
	default:
		return 2
	}
}

// EntryState classifies a matched buy pattern: READY means the strongest
// trigger fired and the setup is immediately actionable, WATCH means the
// pattern matched on a weaker trigger and still needs confirmation.
type EntryState string

const (
	EntryReady EntryState = "READY"
	EntryWatch EntryState = "WATCH"
)

// Pattern names the hybrid buy setup that matched, in detector priority
// order.
type Pattern string

const (
	PatternTrendPullbackBounce Pattern = "trend_pullback_bounce"
	PatternSwingHighBreakout   Pattern = "swing_high_breakout"
	PatternRSIOversoldReversal Pattern = "rsi_oversold_reversal"
)

// Env snapshots the ambient inputs an evaluation run depends on: the clock
// and the holiday calendar are resolved by the orchestrator before the core
// runs, so evaluators stay deterministic and never touch I/O.
type Env struct {
	Now       time.Time
	USHoliday market.HolidayLookup
	Session   market.SessionSettings
}

func (e Env) now() time.Time {
	if e.Now.IsZero() {
		return time.Now()
	}
	return e.Now
}

func (e Env) today() time.Time {
	n := e.now()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, n.Location())
}

func (e Env) evalIndex(candles market.Candles, meta market.Metadata) (int, bool) {
	return market.ChooseEvalIndex(candles, meta, e.now(), e.USHoliday, e.Session)
}

// Candidate is one accepted buy signal with display-ready fields for the
// report tables. The classic evaluator fills the EMA20/50 block; the hybrid
// detector fills the pattern/entry-state block. PriceValue and ScoreValue
// stay numeric for sorting.
type Candidate struct {
	Ticker   string
	Name     string
	Price    string
	Currency string

	PriceValue float64
	ScoreValue float64

	PctChange string
	High      string
	Low       string
	RiskGuide string

	// Classic EMA-cross fields.
	EMA20           string
	EMA50           string
	RSI14           string
	ATR14           string
	Gap             string
	GapThreshold    string
	SMA200          string
	AvgDollarVolume string
	RSReturn        string
	RSDiff          string
	RSBenchmark     string
	Score           string
	ScoreNotes      string
	TrendPass       string
	SlopePass       string

	// Hybrid pattern fields.
	SMATrend         string
	EMAShort         string
	EMAMid           string
	Pattern          Pattern
	PatternReasons   string
	EntryState       EntryState
	EntryStateReason string
	GapGuardPct      string
	GapGuardUp       string
	GapGuardDown     string
}

// Result is the outcome of one buy evaluation: either a candidate or the
// first unmet condition's reason. Reason stays empty on acceptance.
type Result struct {
	Ticker    string
	Candidate *Candidate
	Reason    string
}

// SellEvaluation is the outcome of one sell-rule pass over a holding.
type SellEvaluation struct {
	Action      Action
	Reasons     []string
	StopPrice   *float64
	TargetPrice *float64
	EvalPrice   float64
	EvalIndex   int
	EvalDate    string
}
