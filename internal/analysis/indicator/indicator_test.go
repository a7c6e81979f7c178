package indicator

import (
	"math"
	"math/rand"
	"testing"

	talib "github.com/markcheno/go-talib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomWalk(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	v := 100.0
	for i := range out {
		v += rng.Float64()*2 - 1
		out[i] = v
	}
	return out
}

func TestSma(t *testing.T) {
	t.Run("warm-up is NaN then exact window average", func(t *testing.T) {
		got := Sma([]float64{1, 2, 3, 4, 5}, 3)
		assert.True(t, math.IsNaN(got[0]))
		assert.True(t, math.IsNaN(got[1]))
		assert.InDelta(t, 2.0, got[2], 1e-12)
		assert.InDelta(t, 3.0, got[3], 1e-12)
		assert.InDelta(t, 4.0, got[4], 1e-12)
	})

	t.Run("NaN inputs fold as zero", func(t *testing.T) {
		got := Sma([]float64{math.NaN(), 2, 4}, 2)
		assert.True(t, math.IsNaN(got[0]))
		assert.InDelta(t, 1.0, got[1], 1e-12) // (0+2)/2
		assert.InDelta(t, 3.0, got[2], 1e-12)
	})

	t.Run("degenerate inputs", func(t *testing.T) {
		assert.Empty(t, Sma(nil, 3))
		for _, v := range Sma([]float64{1, 2, 3}, 0) {
			assert.True(t, math.IsNaN(v))
		}
	})

	t.Run("matches talib once past warm-up", func(t *testing.T) {
		closes := randomWalk(120, 1)
		got := Sma(closes, 20)
		ref := talib.Sma(closes, 20)
		for i := 19; i < len(closes); i++ {
			assert.InDelta(t, ref[i], got[i], 1e-9, "index %d", i)
		}
	})
}

func TestEma(t *testing.T) {
	t.Run("seeded with first value", func(t *testing.T) {
		closes := []float64{10, 11, 12}
		got := Ema(closes, 3)
		require.Len(t, got, 3)
		assert.Equal(t, 10.0, got[0])
		// k = 0.5 for period 3
		assert.InDelta(t, 10.5, got[1], 1e-12)
		assert.InDelta(t, 11.25, got[2], 1e-12)
	})

	t.Run("converges to talib on long series", func(t *testing.T) {
		// Different seeds decay geometrically; the tails must agree.
		closes := randomWalk(500, 2)
		got := Ema(closes, 20)
		ref := talib.Ema(closes, 20)
		for i := 450; i < len(closes); i++ {
			assert.InDelta(t, ref[i], got[i], 1e-6, "index %d", i)
		}
	})

	t.Run("NaN input poisons the rest of the series", func(t *testing.T) {
		got := Ema([]float64{10, math.NaN(), 12, 13}, 3)
		assert.Equal(t, 10.0, got[0])
		for i := 1; i < len(got); i++ {
			assert.True(t, math.IsNaN(got[i]), "index %d", i)
		}
	})
}

func TestRsi(t *testing.T) {
	t.Run("first defined index is period", func(t *testing.T) {
		closes := randomWalk(40, 3)
		got := Rsi(closes, 14)
		for i := 0; i < 14; i++ {
			assert.True(t, math.IsNaN(got[i]), "index %d", i)
		}
		assert.False(t, math.IsNaN(got[14]))
	})

	t.Run("monotonic rise saturates at 100", func(t *testing.T) {
		closes := make([]float64, 30)
		for i := range closes {
			closes[i] = 100 + float64(i)
		}
		got := Rsi(closes, 14)
		for i := 14; i < len(closes); i++ {
			assert.Equal(t, 100.0, got[i], "index %d", i)
		}
	})

	t.Run("matches talib", func(t *testing.T) {
		closes := randomWalk(200, 4)
		got := Rsi(closes, 14)
		ref := talib.Rsi(closes, 14)
		for i := 14; i < len(closes); i++ {
			assert.InDelta(t, ref[i], got[i], 1e-6, "index %d", i)
		}
	})

	t.Run("too-short series is all NaN", func(t *testing.T) {
		got := Rsi([]float64{100}, 14)
		require.Len(t, got, 1)
		assert.True(t, math.IsNaN(got[0]))
	})
}

func TestAtr(t *testing.T) {
	series := func(n int, seed int64) (highs, lows, closes []float64) {
		closes = randomWalk(n, seed)
		highs = make([]float64, n)
		lows = make([]float64, n)
		rng := rand.New(rand.NewSource(seed + 100))
		for i := range closes {
			highs[i] = closes[i] + rng.Float64()
			lows[i] = closes[i] - rng.Float64()
		}
		return
	}

	t.Run("seed is simple average of tr[1:period+1]", func(t *testing.T) {
		highs := []float64{11, 12, 13, 14}
		lows := []float64{9, 10, 11, 12}
		closes := []float64{10, 11, 12, 13}
		got := Atr(highs, lows, closes, 3)
		for i := 0; i < 3; i++ {
			assert.True(t, math.IsNaN(got[i]), "index %d", i)
		}
		// tr[i] = max(2, |high-prevClose|, |low-prevClose|) = 2 each bar
		assert.InDelta(t, 2.0, got[3], 1e-12)
	})

	t.Run("converges to talib", func(t *testing.T) {
		highs, lows, closes := series(400, 5)
		got := Atr(highs, lows, closes, 14)
		ref := talib.Atr(highs, lows, closes, 14)
		for i := 350; i < len(closes); i++ {
			assert.InDelta(t, ref[i], got[i], 1e-6, "index %d", i)
		}
	})

	t.Run("mismatched lengths truncate", func(t *testing.T) {
		got := Atr([]float64{11, 12, 13}, []float64{9, 10}, []float64{10, 11, 12}, 1)
		assert.Len(t, got, 2)
	})
}
