package signal

import (
	"fmt"
	"math"
	"strings"

	"sab/internal/analysis/indicator"
	"sab/internal/market"
	"sab/internal/pkg/format"
)

// Settings configures the classic EMA-cross buy evaluator. The zero value
// disables every optional filter.
type Settings struct {
	UseSMA200Filter   bool
	GapATRMultiplier  float64
	MinDollarVolume   float64
	USMinDollarVolume float64 // 0 means no US override
	MinHistoryBars    int
	ExcludeETFETN     bool
	RequireSlopeUp    bool
	RSLookbackDays    int
	RSBenchmarkReturn float64
	MinPrice          float64
	USMinPrice        float64 // 0 means no US override
}

// DefaultSettings mirrors the shipped strategy profile.
func DefaultSettings() Settings {
	return Settings{
		GapATRMultiplier: 1.0,
		MinHistoryBars:   120,
		RSLookbackDays:   20,
	}
}

// Name keywords that mark leveraged/inverse exchange-traded products.
var etfKeywords = []string{"ETF", "ETN", "레버리지", "인버스"}

func nameLooksETF(name string) bool {
	upper := strings.ToUpper(name)
	for _, k := range etfKeywords {
		if strings.Contains(upper, k) {
			return true
		}
	}
	return false
}

func allNaN(values []float64) bool {
	for _, v := range values {
		if !math.IsNaN(v) {
			return false
		}
	}
	return true
}

// avgDollarVolume is the mean of close*volume over the trailing window.
func avgDollarVolume(candles market.Candles, window int) float64 {
	if len(candles) == 0 {
		return 0
	}
	sub := candles
	if len(candles) >= window {
		sub = candles[len(candles)-window:]
	}
	total := 0.0
	for _, c := range sub {
		price := c.Close
		vol := c.Volume
		if math.IsNaN(price) {
			price = 0
		}
		if math.IsNaN(vol) {
			vol = 0
		}
		total += price * vol
	}
	return total / float64(len(sub))
}

// EvaluateTicker runs the EMA(20/50) cross strategy against one series.
// Filters short-circuit in a fixed order and the result carries only the
// first unmet condition's reason; the score counts satisfied optional
// criteria and is used purely for report ordering.
func EvaluateTicker(ticker string, candles market.Candles, settings Settings, meta market.Metadata, env Env) Result {
	if len(candles) < settings.MinHistoryBars {
		return Result{Ticker: ticker, Reason: fmt.Sprintf("Not enough history (<%d bars)", settings.MinHistoryBars)}
	}

	idxEval, _ := env.evalIndex(candles, meta)
	if idxEval < 1 {
		return Result{Ticker: ticker, Reason: "Not enough completed candles"}
	}
	eval := candles[:idxEval+1]

	closes := eval.Closes()
	highs := eval.Highs()
	lows := eval.Lows()
	if allNaN(closes) || allNaN(highs) || allNaN(lows) {
		return Result{Ticker: ticker, Reason: "Insufficient price data"}
	}

	ema20 := indicator.Ema(closes, 20)
	ema50 := indicator.Ema(closes, 50)
	rsi14 := indicator.Rsi(closes, 14)
	atr14 := indicator.Atr(highs, lows, closes, 14)
	sma200 := indicator.Sma(closes, 200)

	latest := candles[idxEval]
	previous := candles[idxEval-1]
	last := len(closes) - 1

	isUS := meta.Market() == market.MarketUS

	effMinPrice := settings.MinPrice
	if isUS && settings.USMinPrice > 0 {
		effMinPrice = settings.USMinPrice
	}
	if effMinPrice > 0 && latest.Close < effMinPrice {
		return Result{Ticker: ticker, Reason: fmt.Sprintf("Price %.0f < MIN_PRICE %.0f", latest.Close, effMinPrice)}
	}

	emaCrossUp := ema20[last] > ema50[last] && ema20[last-1] <= ema50[last-1]
	rsiRebound := rsi14[last] > 30 && rsi14[last-1] <= 30
	rsiNotOverbought := rsi14[last] < 70
	gapPct := 0.0
	if previous.Close != 0 && !math.IsNaN(previous.Close) {
		gapPct = (latest.Open - previous.Close) / previous.Close
	}
	atrValue := atr14[last]

	if !emaCrossUp {
		return Result{Ticker: ticker, Reason: "EMA(20/50) cross not satisfied"}
	}
	if !(rsiRebound && rsiNotOverbought) {
		return Result{Ticker: ticker, Reason: "RSI signal not satisfied"}
	}

	trendPass := true
	sma200Value := sma200[last]
	if settings.UseSMA200Filter {
		trendPass = !math.IsNaN(sma200Value) &&
			latest.Close > sma200Value &&
			ema20[last] > sma200Value &&
			ema50[last] > sma200Value
		if !trendPass {
			return Result{Ticker: ticker, Reason: "Below SMA200 filter"}
		}
	}

	slopePass := true
	if settings.RequireSlopeUp {
		slopePass = ema20[last] > ema20[last-1] && ema50[last] > ema50[last-1]
		if !slopePass {
			return Result{Ticker: ticker, Reason: "EMA slope not rising"}
		}
	}

	gapThreshold := 0.03
	if settings.GapATRMultiplier > 0 && !math.IsNaN(atrValue) && atrValue > 0 && previous.Close > 0 {
		gapThreshold = settings.GapATRMultiplier * atrValue / previous.Close
	}
	gapOK := math.Abs(gapPct) <= gapThreshold
	if !gapOK {
		return Result{Ticker: ticker, Reason: fmt.Sprintf("Gap %.1f%% exceeds threshold", gapPct*100)}
	}

	avgDV := avgDollarVolume(eval, 20)
	effMinDV := settings.MinDollarVolume
	if isUS && settings.USMinDollarVolume > 0 {
		effMinDV = settings.USMinDollarVolume
	}
	if effMinDV > 0 && avgDV < effMinDV {
		return Result{Ticker: ticker, Reason: fmt.Sprintf("Avg dollar volume %s < %s", format.Float(avgDV, 0), format.Float(effMinDV, 0))}
	}

	if settings.ExcludeETFETN && nameLooksETF(meta.Name) {
		return Result{Ticker: ticker, Reason: "ETF/ETN excluded"}
	}

	// Relative strength vs benchmark: informational scoring only.
	var rsReturn, rsDiff *float64
	if settings.RSLookbackDays > 0 && len(closes) > settings.RSLookbackDays {
		baseClose := closes[len(closes)-settings.RSLookbackDays-1]
		if baseClose != 0 && !math.IsNaN(baseClose) {
			r := (latest.Close - baseClose) / baseClose
			d := r - settings.RSBenchmarkReturn
			rsReturn, rsDiff = &r, &d
		}
	}

	pctChange := 0.0
	if previous.Close != 0 && !math.IsNaN(previous.Close) {
		pctChange = (latest.Close - previous.Close) / previous.Close
	}

	riskGuide := "-"
	if !math.IsNaN(atrValue) {
		stop := math.Max(latest.Close-atrValue, 0)
		target := latest.Close + atrValue*2
		riskGuide = fmt.Sprintf("Stop %s / Target %s (~1:2)", format.Float(stop, 0), format.Float(target, 0))
	}

	score := 0.0
	var breakdown []string
	add := func(note string) {
		score++
		breakdown = append(breakdown, note)
	}
	add("ema_cross")
	add("rsi")
	if trendPass {
		add("sma200")
	}
	if slopePass {
		add("slope")
	}
	if gapOK {
		add("gap")
	}
	if avgDV > 0 {
		add("liquidity")
	}
	if rsReturn != nil {
		if rsDiff == nil || *rsDiff >= 0 {
			add("rs")
		} else {
			breakdown = append(breakdown, "rs_below")
		}
	}

	yesNo := func(b bool) string {
		if b {
			return "Yes"
		}
		return "No"
	}
	optPercent := func(p *float64) string {
		if p == nil {
			return "-"
		}
		return format.Percent(*p)
	}

	candidate := &Candidate{
		Ticker:          ticker,
		Name:            meta.DisplayName(),
		Price:           format.Float(latest.Close, 0),
		Currency:        strings.ToUpper(meta.Currency),
		PriceValue:      latest.Close,
		ScoreValue:      score,
		PctChange:       format.Percent(pctChange),
		High:            format.Float(latest.High, 0),
		Low:             format.Float(latest.Low, 0),
		RiskGuide:       riskGuide,
		EMA20:           format.Float(ema20[last], 2),
		EMA50:           format.Float(ema50[last], 2),
		RSI14:           format.Float(rsi14[last], 2),
		ATR14:           format.Float(atrValue, 2),
		Gap:             format.Percent(gapPct),
		GapThreshold:    format.Percent(gapThreshold),
		SMA200:          format.Float(sma200Value, 0),
		AvgDollarVolume: format.Float(avgDV, 0),
		RSReturn:        optPercent(rsReturn),
		RSDiff:          optPercent(rsDiff),
		RSBenchmark:     format.Percent(settings.RSBenchmarkReturn),
		Score:           fmt.Sprintf("%.1f", score),
		ScoreNotes:      strings.Join(breakdown, ", "),
		TrendPass:       yesNo(trendPass),
		SlopePass:       yesNo(slopePass),
	}
	return Result{Ticker: ticker, Candidate: candidate}
}
