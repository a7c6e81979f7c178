// Package indicator implements the daily-bar indicators the signal rules
// are tuned against: SMA, EMA, RSI and ATR.
//
// These are deliberate hand ports, not talib calls. The rule thresholds were
// calibrated against these exact recurrences, whose warm-up behavior differs
// from talib in small but rule-visible ways (EMA is seeded with the first
// value instead of an SMA, ATR seeds Wilder smoothing from tr[1:period+1]).
// Every output slice has the same length as its input, with NaN marking the
// positions where the indicator is not yet defined; NaN propagates instead
// of erroring.
package indicator

import "math"

// Sma returns the simple moving average with window size period. Positions
// before the window fills are NaN. NaN inputs contribute zero to the window
// sum rather than poisoning it, so a series with missing leading data still
// produces (depressed) averages once the window fills.
func Sma(values []float64, period int) []float64 {
	n := len(values)
	out := nanSlice(n)
	if period <= 0 || n == 0 {
		return out
	}
	windowSum := 0.0
	for i, v := range values {
		if !math.IsNaN(v) {
			windowSum += v
		}
		if i >= period {
			prev := values[i-period]
			if math.IsNaN(prev) {
				prev = 0.0
			}
			windowSum -= prev
		}
		if i >= period-1 {
			out[i] = windowSum / float64(period)
		}
	}
	return out
}

// Ema returns the exponential moving average with smoothing 2/(period+1).
// The recurrence is seeded with the first input value, so out[0] equals
// values[0] and every later position is defined. A NaN input poisons the
// running state permanently, matching how the rules treat broken series.
func Ema(values []float64, period int) []float64 {
	n := len(values)
	out := nanSlice(n)
	if period <= 0 || n == 0 {
		return out
	}
	k := 2.0 / float64(period+1)
	prev := values[0]
	out[0] = prev
	for i := 1; i < n; i++ {
		prev = values[i]*k + prev*(1-k)
		out[i] = prev
	}
	return out
}

// Rsi returns Wilder's relative strength index. The first defined position
// is index period, seeded from the simple average of the first period gains
// and losses; later positions use Wilder smoothing. When the average loss is
// zero the RSI saturates at 100.
func Rsi(closes []float64, period int) []float64 {
	n := len(closes)
	out := nanSlice(n)
	if period <= 0 || n < 2 {
		return out
	}
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		ch := closes[i] - closes[i-1]
		gains[i] = math.Max(0, ch)
		losses[i] = math.Max(0, -ch)
	}
	avgGain, avgLoss := 0.0, 0.0
	if n > period {
		for i := 1; i <= period; i++ {
			avgGain += gains[i]
			avgLoss += losses[i]
		}
		avgGain /= float64(period)
		avgLoss /= float64(period)
	}
	if period < n {
		out[period] = rsiValue(avgGain, avgLoss)
	}
	for i := period + 1; i < n; i++ {
		avgGain = (avgGain*float64(period-1) + gains[i]) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + losses[i]) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	return 100 - 100/(1+avgGain/avgLoss)
}

// Atr returns Wilder's average true range. The true range of the first bar
// uses its own close as the previous close, the seed at index period is the
// simple average of tr[1:period+1], and later positions use Wilder
// smoothing. Mismatched input lengths are truncated to the shortest.
func Atr(highs, lows, closes []float64, period int) []float64 {
	n := min3(len(highs), len(lows), len(closes))
	out := nanSlice(n)
	if period <= 0 || n == 0 {
		return out
	}
	tr := make([]float64, n)
	prevClose := closes[0]
	for i := 0; i < n; i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - prevClose)
		lc := math.Abs(lows[i] - prevClose)
		tr[i] = math.Max(hl, math.Max(hc, lc))
		prevClose = closes[i]
	}
	if n > period {
		first := 0.0
		for i := 1; i <= period; i++ {
			first += tr[i]
		}
		out[period] = first / float64(period)
		for i := period + 1; i < n; i++ {
			out[i] = (out[i-1]*float64(period-1) + tr[i]) / float64(period)
		}
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
