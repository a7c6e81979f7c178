// Package market holds the domain types shared by the signal engine: daily
// candles, market/provider identities and the session-index selector.
package market

import (
	"strings"
	"time"
)

// Candle is one completed (or still forming) daily trading session.
// Date is a YYYYMMDD token; OHLC fields may be NaN for unavailable data and
// NaN propagates through the indicator library rather than erroring.
type Candle struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Bullish reports whether the session closed above its open.
func (c Candle) Bullish() bool { return c.Close > c.Open }

// Day parses the YYYYMMDD date token. ok is false for blank or malformed
// tokens.
func (c Candle) Day() (time.Time, bool) {
	s := strings.TrimSpace(c.Date)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("20060102", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Candles is an ascending-by-date series. The engine only reads and slices
// it; it never mutates the caller's backing array.
type Candles []Candle

func (cs Candles) Closes() []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Close
	}
	return out
}

func (cs Candles) Highs() []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.High
	}
	return out
}

func (cs Candles) Lows() []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Low
	}
	return out
}

func (cs Candles) Volumes() []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Volume
	}
	return out
}

// Market identifies the venue whose session clock governs evaluation.
type Market int

const (
	MarketKR Market = iota
	MarketUS
)

func (m Market) String() string {
	if m == MarketUS {
		return "US"
	}
	return "KR"
}

// Provider says how the upstream feed delivers candles. An end-of-day-only
// provider can never hand us a partially formed "today" bar, so the session
// selector skips all intraday heuristics for it.
type Provider int

const (
	ProviderLive Provider = iota
	ProviderEndOfDay
)

func (p Provider) String() string {
	if p == ProviderEndOfDay {
		return "eod"
	}
	return "live"
}

// ResolveProvider maps a provider tag from config/metadata onto the closed
// enum. "pykrx" is the end-of-day-only secondary feed; everything else is
// treated as a live feed.
func ResolveProvider(tag string) Provider {
	if strings.EqualFold(strings.TrimSpace(tag), "pykrx") {
		return ProviderEndOfDay
	}
	return ProviderLive
}

// ResolveMarket maps a currency code onto the venue enum. USD means US;
// anything else (KRW, blank) is the KR default.
func ResolveMarket(currency string) Market {
	if strings.EqualFold(strings.TrimSpace(currency), "USD") {
		return MarketUS
	}
	return MarketKR
}

// Metadata is the read-only evaluation context attached to one series.
type Metadata struct {
	Ticker   string
	Name     string
	Currency string
	Provider Provider
}

// Market derives the venue from the metadata currency.
func (m Metadata) Market() Market { return ResolveMarket(m.Currency) }

// DisplayName falls back to the ticker when no company name is known.
func (m Metadata) DisplayName() string {
	if strings.TrimSpace(m.Name) != "" {
		return m.Name
	}
	return m.Ticker
}

var usSuffixes = map[string]struct{}{
	"US": {}, "NASDAQ": {}, "NASD": {}, "NAS": {},
	"NYSE": {}, "NYS": {}, "AMEX": {}, "AMS": {},
}

// InferCurrency guesses the trade currency from a ticker suffix
// ("AAPL.US" -> USD, "005930" -> KRW).
func InferCurrency(ticker string) string {
	if i := strings.LastIndex(ticker, "."); i >= 0 {
		suffix := strings.ToUpper(strings.TrimSpace(ticker[i+1:]))
		if _, ok := usSuffixes[suffix]; ok {
			return "USD"
		}
	}
	return "KRW"
}
