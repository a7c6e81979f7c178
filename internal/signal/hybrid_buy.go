package signal

import (
	"fmt"
	"math"
	"strings"

	"sab/internal/analysis/indicator"
	"sab/internal/market"
	"sab/internal/pkg/format"
)

// HybridSettings configures the three-pattern hybrid buy detector.
type HybridSettings struct {
	SMATrendPeriod int
	EMAShortPeriod int
	EMAMidPeriod   int
	RSIPeriod      int

	RSIZoneLow      float64
	RSIZoneHigh     float64
	RSIOversoldLow  float64
	RSIOversoldHigh float64
	RSIReadyFloor   float64 // oversold rebound must reach this for READY

	PullbackMaxBars              int
	BreakoutConsolidationMinBars int
	BreakoutConsolidationMaxBars int
	BreakoutATRBuffer            float64 // close beyond swingHigh + buffer*ATR counts as extended

	VolumeLookbackDays int
	MaxGapPct          float64
	GapATRMultiplier   float64

	UseSMA60Filter                 bool
	SMA60Period                    int
	KRBreakoutRequiresConfirmation bool

	// Shared entry filters.
	MinHistoryBars    int
	MinPrice          float64
	USMinPrice        float64
	MinDollarVolume   float64
	USMinDollarVolume float64
	ExcludeETFETN     bool
}

// DefaultHybridSettings mirrors the shipped hybrid profile: SMA20 trend,
// EMA10/21 momentum pair, RSI14 with a 40-60 swing zone and 25-40 oversold
// band.
func DefaultHybridSettings() HybridSettings {
	return HybridSettings{
		SMATrendPeriod:               20,
		EMAShortPeriod:               10,
		EMAMidPeriod:                 21,
		RSIPeriod:                    14,
		RSIZoneLow:                   40,
		RSIZoneHigh:                  60,
		RSIOversoldLow:               25,
		RSIOversoldHigh:              40,
		RSIReadyFloor:                45,
		PullbackMaxBars:              5,
		BreakoutConsolidationMinBars: 5,
		BreakoutConsolidationMaxBars: 15,
		BreakoutATRBuffer:            1.0,
		VolumeLookbackDays:           5,
		MaxGapPct:                    0.03,
		GapATRMultiplier:             1.0,
		SMA60Period:                  60,
		MinHistoryBars:               60,
	}
}

// patternFlags carries the raw trigger facts a detector observed, used
// afterwards to classify entry state without re-deriving indicator values.
type patternFlags struct {
	rsi                float64
	closeAboveEMAShort bool
	triggerReclaim     bool
	triggerVolume      bool
	triggerRSI50       bool
	triggerHammer      bool
	swingHigh          float64
}

// hybridSeries bundles the indicator columns every detector reads.
type hybridSeries struct {
	closes   []float64
	smaTrend []float64
	emaShort []float64
	emaMid   []float64
	rsi      []float64
	candles  market.Candles
}

type patternDetector func(s hybridSeries, settings HybridSettings) (bool, []string, Pattern, patternFlags)

// Detector priority is a contract: later patterns are only attempted once
// earlier ones fail, so no scoring tie-break is ever needed.
var hybridDetectors = []patternDetector{
	detectTrendPullbackBounce,
	detectSwingHighBreakout,
	detectRSIOversoldReversal,
}

func volumeStats(candles market.Candles, lookbackDays int) (prevVol, avgVol float64) {
	if len(candles) == 0 {
		return 0, 0
	}
	vols := candles.Volumes()
	prevVol = vols[len(vols)-1]
	if len(vols) >= 2 {
		prevVol = vols[len(vols)-2]
	}
	window := vols
	if lookbackDays > 0 && len(vols) >= lookbackDays {
		window = vols[len(vols)-lookbackDays:]
	}
	sum := 0.0
	for _, v := range window {
		sum += v
	}
	return prevVol, sum / float64(len(window))
}

// detectTrendPullbackBounce matches a shallow pullback to the short EMA
// inside an uptrend that is now bouncing: close above the trend SMA, short
// EMA holding at or above mid, RSI in the swing zone, no heavy-volume red
// bar inside the pullback run, and at least one bounce trigger fired.
func detectTrendPullbackBounce(s hybridSeries, settings HybridSettings) (bool, []string, Pattern, patternFlags) {
	idx := len(s.closes) - 1
	close := s.closes[idx]
	rsiVal := s.rsi[idx]
	flags := patternFlags{rsi: rsiVal, closeAboveEMAShort: close > s.emaShort[idx]}

	if !(close > s.smaTrend[idx]) {
		return false, []string{"Close not above SMA trend"}, "", flags
	}
	if !(s.emaShort[idx] >= s.emaMid[idx]) {
		return false, []string{"EMA short < EMA mid (momentum missing)"}, "", flags
	}
	if !(settings.RSIZoneLow <= rsiVal && rsiVal <= settings.RSIZoneHigh) {
		return false, []string{"RSI not in swing zone"}, "", flags
	}

	_, avgVol := volumeStats(s.candles, settings.VolumeLookbackDays)

	// Contiguous trailing run of closes at or below the short EMA.
	pullbackBars := 0
	for i := idx; i >= 0; i-- {
		if s.closes[i] <= s.emaShort[i] {
			pullbackBars++
			if pullbackBars > settings.PullbackMaxBars {
				break
			}
		} else {
			break
		}
	}

	// A big red bar on outsized volume inside the pullback means real
	// distribution, not a routine dip.
	for _, c := range s.candles[len(s.candles)-pullbackBars:] {
		if c.Close < c.Open && avgVol > 0 && c.Volume > avgVol*1.5 {
			return false, []string{"Heavy selling volume during pullback"}, "", flags
		}
	}

	var reasons []string
	today := s.candles[len(s.candles)-1]

	if idx >= 1 && s.closes[idx-1] <= s.emaShort[idx-1] && close > s.emaShort[idx] {
		reasons = append(reasons, "Close reclaimed EMA short")
		flags.triggerReclaim = true
	}
	if len(s.candles) >= 2 {
		yest := s.candles[len(s.candles)-2]
		if today.Close > today.Open && today.Volume > math.Max(yest.Volume, avgVol) {
			reasons = append(reasons, "Bullish candle with rising volume")
			flags.triggerVolume = true
		}
	}
	if idx >= 1 && s.rsi[idx-1] <= 50 && rsiVal > 50 {
		reasons = append(reasons, "RSI crossed above 50")
		flags.triggerRSI50 = true
	}
	body := math.Abs(today.Close - today.Open)
	lowerShadow := math.Min(today.Close, today.Open) - today.Low
	if lowerShadow > body && close != 0 && math.Abs(today.Low-s.emaShort[idx])/close < 0.02 {
		reasons = append(reasons, "Reversal candle near EMA short")
		flags.triggerHammer = true
	}

	if len(reasons) == 0 {
		return false, []string{"No pullback-bounce trigger"}, "", flags
	}
	return true, reasons, PatternTrendPullbackBounce, flags
}

// detectSwingHighBreakout matches a tight consolidation under a swing high
// inside a stacked uptrend, broken today on above-average volume.
func detectSwingHighBreakout(s hybridSeries, settings HybridSettings) (bool, []string, Pattern, patternFlags) {
	idx := len(s.closes) - 1
	close := s.closes[idx]
	flags := patternFlags{rsi: s.rsi[idx], closeAboveEMAShort: close > s.emaShort[idx]}

	if !(s.emaShort[idx] > s.emaMid[idx] && s.emaMid[idx] > s.smaTrend[idx]) {
		return false, []string{"EMAs not aligned for uptrend"}, "", flags
	}
	if s.rsi[idx] >= 60 {
		return false, []string{"RSI too extended for breakout"}, "", flags
	}

	window := s.candles
	if settings.BreakoutConsolidationMaxBars > 0 && len(s.candles) >= settings.BreakoutConsolidationMaxBars {
		window = s.candles[len(s.candles)-settings.BreakoutConsolidationMaxBars:]
	}
	if len(window) < settings.BreakoutConsolidationMinBars {
		return false, []string{"Not enough bars for consolidation"}, "", flags
	}

	highs := window.Highs()
	lows := window.Lows()
	swingHigh := highs[0]
	if len(highs) > 1 {
		swingHigh = maxOf(highs[:len(highs)-1])
	}
	flags.swingHigh = swingHigh
	rangePct := 0.0
	if swingHigh != 0 {
		rangePct = (maxOf(highs) - minOf(lows)) / swingHigh
	}
	if rangePct > 0.1 {
		return false, []string{"Consolidation range too wide"}, "", flags
	}

	today := s.candles[len(s.candles)-1]
	_, avgVol := volumeStats(s.candles, settings.VolumeLookbackDays)
	if !(close > swingHigh && today.Volume > avgVol) {
		return false, []string{"No confirmed breakout over swing high"}, "", flags
	}

	return true, []string{"Close broke above recent swing high with volume > 5d avg"}, PatternSwingHighBreakout, flags
}

// detectRSIOversoldReversal matches a hammer-style rebound out of the
// oversold band, landing on EMA support while the larger trend holds.
func detectRSIOversoldReversal(s hybridSeries, settings HybridSettings) (bool, []string, Pattern, patternFlags) {
	idx := len(s.closes) - 1
	close := s.closes[idx]
	rsiVal := s.rsi[idx]
	flags := patternFlags{rsi: rsiVal, closeAboveEMAShort: close > s.emaShort[idx]}

	if !(close > s.smaTrend[idx]) {
		return false, []string{"Price not above SMA trend"}, "", flags
	}
	if idx < 1 ||
		!(settings.RSIOversoldLow <= s.rsi[idx-1] && s.rsi[idx-1] <= settings.RSIOversoldHigh && rsiVal > 40) {
		return false, []string{"RSI did not rebound from oversold band"}, "", flags
	}

	today := s.candles[len(s.candles)-1]
	_, avgVol := volumeStats(s.candles, settings.VolumeLookbackDays)
	if today.Close <= today.Open || !(avgVol == 0 || today.Volume >= avgVol) {
		return false, []string{"No strong bullish candle with rising volume"}, "", flags
	}

	body := math.Abs(today.Close - today.Open)
	lowerShadow := math.Min(today.Close, today.Open) - today.Low
	if lowerShadow <= body {
		return false, []string{"No clear reversal candle off lows"}, "", flags
	}

	if close != 0 &&
		(math.Abs(today.Low-s.emaShort[idx])/close < 0.03 || math.Abs(today.Low-s.emaMid[idx])/close < 0.03) {
		return true, []string{"Reversal off EMA short/mid with volume"}, PatternRSIOversoldReversal, flags
	}
	return false, []string{"Reversal not near EMA support"}, "", flags
}

// classifyEntryState turns a matched pattern's trigger flags into
// READY/WATCH with a short explanation.
func classifyEntryState(pattern Pattern, flags patternFlags, lastClose, atrValue float64, settings HybridSettings) (EntryState, string) {
	switch pattern {
	case PatternTrendPullbackBounce:
		if flags.closeAboveEMAShort && flags.rsi > 50 {
			return EntryReady, "Bounce confirmed: close above EMA short with RSI>50"
		}
		return EntryWatch, "Weak trigger only; wait for close above EMA short with RSI>50"
	case PatternSwingHighBreakout:
		buffer := settings.BreakoutATRBuffer
		if buffer <= 0 {
			buffer = 1.0
		}
		if !math.IsNaN(atrValue) && flags.swingHigh > 0 && lastClose > flags.swingHigh+buffer*atrValue {
			return EntryWatch, fmt.Sprintf("Price extended beyond swing high + %.1f ATR; wait for a pullback entry", buffer)
		}
		return EntryReady, "Confirmed breakout above swing high, not yet extended"
	default: // PatternRSIOversoldReversal
		if flags.rsi >= settings.RSIReadyFloor && flags.closeAboveEMAShort {
			return EntryReady, fmt.Sprintf("Rebound confirmed: RSI %.1f above %.0f with close above EMA short", flags.rsi, settings.RSIReadyFloor)
		}
		return EntryWatch, fmt.Sprintf("Need RSI above %.0f with close above EMA short", settings.RSIReadyFloor)
	}
}

func (s HybridSettings) basicFilters(candles market.Candles, meta market.Metadata, evalIndex int) (ok bool, reason string, lastClose, avgDV float64) {
	if len(candles) < s.MinHistoryBars {
		return false, fmt.Sprintf("Not enough history (<%d bars)", s.MinHistoryBars), 0, 0
	}
	idx := max(0, min(evalIndex, len(candles)-1))
	latest := candles[idx]
	isUS := meta.Market() == market.MarketUS

	lastClose = latest.Close
	effMinPrice := s.MinPrice
	if isUS && s.USMinPrice > 0 {
		effMinPrice = s.USMinPrice
	}
	if effMinPrice > 0 && lastClose < effMinPrice {
		return false, fmt.Sprintf("Price %.2f < MIN_PRICE %.2f", lastClose, effMinPrice), 0, 0
	}

	avgDV = avgDollarVolume(candles[:idx+1], 20)
	effMinDV := s.MinDollarVolume
	if isUS && s.USMinDollarVolume > 0 {
		effMinDV = s.USMinDollarVolume
	}
	if effMinDV > 0 && avgDV < effMinDV {
		return false, fmt.Sprintf("Avg dollar volume %s < %s", format.Float(avgDV, 0), format.Float(effMinDV, 0)), 0, avgDV
	}

	if s.ExcludeETFETN && nameLooksETF(meta.Name) {
		return false, "ETF/ETN excluded", lastClose, avgDV
	}
	return true, "", lastClose, avgDV
}

// EvaluateTickerHybrid runs the three pattern detectors in priority order
// and returns the first match as a candidate with entry-state and gap-guard
// guidance, or the rejection reason when nothing fires.
func EvaluateTickerHybrid(ticker string, candles market.Candles, settings HybridSettings, meta market.Metadata, env Env) Result {
	idxEval, _ := env.evalIndex(candles, meta)
	if idxEval < 0 {
		return Result{Ticker: ticker, Reason: "No candle data"}
	}
	eval := candles[:idxEval+1]

	ok, reason, lastClose, avgDV := settings.basicFilters(candles, meta, idxEval)
	if !ok {
		return Result{Ticker: ticker, Reason: reason}
	}

	closes := eval.Closes()
	series := hybridSeries{
		closes:   closes,
		smaTrend: indicator.Sma(closes, settings.SMATrendPeriod),
		emaShort: indicator.Ema(closes, settings.EMAShortPeriod),
		emaMid:   indicator.Ema(closes, settings.EMAMidPeriod),
		rsi:      indicator.Rsi(closes, settings.RSIPeriod),
		candles:  eval,
	}

	var (
		pattern        Pattern
		patternReasons []string
		flags          patternFlags
	)
	for _, detect := range hybridDetectors {
		matched, reasons, pat, f := detect(series, settings)
		if matched {
			pattern, patternReasons, flags = pat, reasons, f
			break
		}
	}
	if pattern == "" {
		return Result{Ticker: ticker, Reason: "Did not meet hybrid signal criteria"}
	}

	atr14 := indicator.Atr(eval.Highs(), eval.Lows(), closes, 14)
	atrValue := atr14[len(atr14)-1]

	latest := candles[idxEval]
	prev := latest
	if idxEval >= 1 {
		prev = candles[idxEval-1]
	}
	pctChange := 0.0
	if prev.Close != 0 && !math.IsNaN(prev.Close) {
		pctChange = (lastClose - prev.Close) / prev.Close
	}

	entryState, entryReason := classifyEntryState(pattern, flags, lastClose, atrValue, settings)

	// Gap guard: the overnight-gap tolerance band around the eval close,
	// ATR-scaled with the fixed max-gap percentage as fallback.
	guardPct := settings.MaxGapPct
	if settings.GapATRMultiplier > 0 && !math.IsNaN(atrValue) && atrValue > 0 && lastClose > 0 {
		guardPct = settings.GapATRMultiplier * atrValue / lastClose
	}

	riskGuide := "-"
	if !math.IsNaN(atrValue) {
		stop := math.Max(lastClose-atrValue, 0)
		target := lastClose + atrValue*2
		riskGuide = fmt.Sprintf("Stop %s / Target %s (~1:2)", format.Float(stop, 0), format.Float(target, 0))
	}

	candidate := &Candidate{
		Ticker:           ticker,
		Name:             meta.DisplayName(),
		Price:            format.Float(lastClose, 0),
		Currency:         strings.ToUpper(meta.Currency),
		PriceValue:       lastClose,
		ScoreValue:       1.0,
		Score:            "1.0",
		PctChange:        format.Percent(pctChange),
		High:             format.Float(latest.High, 0),
		Low:              format.Float(latest.Low, 0),
		RiskGuide:        riskGuide,
		RSI14:            format.Float(series.rsi[len(series.rsi)-1], 1),
		ATR14:            format.Float(atrValue, 2),
		AvgDollarVolume:  format.Float(avgDV, 0),
		SMATrend:         format.Float(series.smaTrend[len(series.smaTrend)-1], 2),
		EMAShort:         format.Float(series.emaShort[len(series.emaShort)-1], 2),
		EMAMid:           format.Float(series.emaMid[len(series.emaMid)-1], 2),
		Pattern:          pattern,
		PatternReasons:   strings.Join(patternReasons, ", "),
		EntryState:       entryState,
		EntryStateReason: entryReason,
		GapGuardPct:      fmt.Sprintf("±%.1f%%", guardPct*100),
		GapGuardUp:       format.Float(lastClose*(1+guardPct), 0),
		GapGuardDown:     format.Float(lastClose*(1-guardPct), 0),
	}
	return Result{Ticker: ticker, Candidate: candidate}
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
