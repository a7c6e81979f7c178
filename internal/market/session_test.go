package market

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func buildCandles(dates []string, closeStart, volume float64) Candles {
	out := make(Candles, 0, len(dates))
	for i, d := range dates {
		c := closeStart + float64(i)
		out = append(out, Candle{
			Date: d, Open: c, High: c + 1, Low: c - 1, Close: c, Volume: volume,
		})
	}
	return out
}

func at(zone string, y int, m time.Month, d, hh, mm int) time.Time {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		panic(fmt.Sprintf("load zone %s: %v", zone, err))
	}
	return time.Date(y, m, d, hh, mm, 0, 0, loc)
}

func TestChooseEvalIndex(t *testing.T) {
	usWeek := []string{"20250106", "20250107", "20250108", "20250109", "20250110", "20250113"}
	krWeek := []string{"20250106", "20250107", "20250108", "20250109", "20250110"}
	usMeta := Metadata{Ticker: "FAKE.US", Currency: "USD"}
	krMeta := Metadata{Ticker: "005930", Currency: "KRW"}
	settings := DefaultSessionSettings()

	t.Run("us intraday drops today", func(t *testing.T) {
		candles := buildCandles(usWeek, 100, 1_000_000)
		now := at("America/New_York", 2025, time.January, 13, 15, 0)
		idx, dropped := ChooseEvalIndex(candles, usMeta, now, nil, settings)
		assert.Equal(t, len(candles)-2, idx)
		assert.True(t, dropped)
	})

	t.Run("us after close keeps last", func(t *testing.T) {
		candles := buildCandles(usWeek, 100, 1_000_000)
		now := at("America/New_York", 2025, time.January, 13, 18, 0)
		idx, dropped := ChooseEvalIndex(candles, usMeta, now, nil, settings)
		assert.Equal(t, len(candles)-1, idx)
		assert.False(t, dropped)
	})

	t.Run("us holiday forces closed and keeps last", func(t *testing.T) {
		candles := buildCandles([]string{"20250116", "20250117", "20250120"}, 100, 1_000_000)
		now := at("America/New_York", 2025, time.January, 20, 10, 0)
		holiday := func(day string) bool { return day == "20250120" }
		idx, dropped := ChooseEvalIndex(candles, usMeta, now, holiday, settings)
		assert.Equal(t, len(candles)-1, idx)
		assert.False(t, dropped)
	})

	t.Run("us intraday without today bar keeps last", func(t *testing.T) {
		candles := buildCandles(krWeek, 100, 1_000_000) // ends 20250110
		now := at("America/New_York", 2025, time.January, 13, 11, 0)
		idx, dropped := ChooseEvalIndex(candles, usMeta, now, nil, settings)
		assert.Equal(t, len(candles)-1, idx)
		assert.False(t, dropped)
	})

	t.Run("us pre-open thin volume drops today", func(t *testing.T) {
		candles := buildCandles(usWeek, 100, 2_000_000)
		candles[len(candles)-1].Volume = 50_000
		now := at("America/New_York", 2025, time.January, 13, 8, 0)
		idx, dropped := ChooseEvalIndex(candles, usMeta, now, nil, settings)
		assert.Equal(t, len(candles)-2, idx)
		assert.True(t, dropped)
	})

	t.Run("kr intraday thin volume drops today", func(t *testing.T) {
		candles := buildCandles(krWeek, 50000, 5_000_000)
		candles[len(candles)-1].Volume = 10_000
		now := at("Asia/Seoul", 2025, time.January, 10, 10, 0)
		idx, dropped := ChooseEvalIndex(candles, krMeta, now, nil, settings)
		assert.Equal(t, len(candles)-2, idx)
		assert.True(t, dropped)
	})

	t.Run("kr intraday normal volume keeps last", func(t *testing.T) {
		candles := buildCandles(krWeek, 50000, 5_000_000)
		now := at("Asia/Seoul", 2025, time.January, 10, 10, 0)
		idx, dropped := ChooseEvalIndex(candles, krMeta, now, nil, settings)
		assert.Equal(t, len(candles)-1, idx)
		assert.False(t, dropped)
	})

	t.Run("kr after close thin volume keeps last", func(t *testing.T) {
		candles := buildCandles(krWeek, 50000, 5_000_000)
		candles[len(candles)-1].Volume = 10_000
		now := at("Asia/Seoul", 2025, time.January, 10, 16, 0)
		idx, dropped := ChooseEvalIndex(candles, krMeta, now, nil, settings)
		assert.Equal(t, len(candles)-1, idx)
		assert.False(t, dropped)
	})

	t.Run("single candle returns zero", func(t *testing.T) {
		candles := buildCandles([]string{"20250106"}, 100, 1_000_000)
		idx, dropped := ChooseEvalIndex(candles, usMeta, time.Now(), nil, settings)
		assert.Equal(t, 0, idx)
		assert.False(t, dropped)
	})

	t.Run("no candles returns minus one", func(t *testing.T) {
		idx, dropped := ChooseEvalIndex(nil, usMeta, time.Now(), nil, settings)
		assert.Equal(t, -1, idx)
		assert.False(t, dropped)
	})

	t.Run("end-of-day provider skips heuristics", func(t *testing.T) {
		candles := buildCandles(krWeek, 50000, 5_000_000)
		candles[len(candles)-1].Volume = 10_000
		meta := Metadata{Ticker: "005930", Currency: "KRW", Provider: ProviderEndOfDay}
		now := at("Asia/Seoul", 2025, time.January, 10, 10, 0)
		idx, dropped := ChooseEvalIndex(candles, meta, now, nil, settings)
		assert.Equal(t, len(candles)-1, idx)
		assert.False(t, dropped)
	})

	t.Run("weekend is closed", func(t *testing.T) {
		candles := buildCandles(usWeek, 100, 1_000_000)
		now := at("America/New_York", 2025, time.January, 18, 11, 0) // Saturday
		idx, dropped := ChooseEvalIndex(candles, usMeta, now, nil, settings)
		assert.Equal(t, len(candles)-1, idx)
		assert.False(t, dropped)
	})
}

func TestSessionStateAt(t *testing.T) {
	cases := []struct {
		name   string
		market Market
		now    time.Time
		want   SessionState
	}{
		{"us pre-open", MarketUS, at("America/New_York", 2025, time.January, 13, 9, 29), SessionPreOpen},
		{"us open boundary", MarketUS, at("America/New_York", 2025, time.January, 13, 9, 30), SessionIntraday},
		{"us close boundary", MarketUS, at("America/New_York", 2025, time.January, 13, 16, 0), SessionAfterClose},
		{"kr pre-open", MarketKR, at("Asia/Seoul", 2025, time.January, 10, 8, 59), SessionPreOpen},
		{"kr intraday", MarketKR, at("Asia/Seoul", 2025, time.January, 10, 15, 29), SessionIntraday},
		{"kr after close", MarketKR, at("Asia/Seoul", 2025, time.January, 10, 15, 30), SessionAfterClose},
		{"sunday closed", MarketKR, at("Asia/Seoul", 2025, time.January, 12, 10, 0), SessionClosed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, sessionStateAt(tc.market, tc.now))
		})
	}
}

func TestInferCurrency(t *testing.T) {
	assert.Equal(t, "USD", InferCurrency("AAPL.US"))
	assert.Equal(t, "USD", InferCurrency("msft.nasdaq"))
	assert.Equal(t, "KRW", InferCurrency("005930"))
	assert.Equal(t, "KRW", InferCurrency("005930.KS"))
}
