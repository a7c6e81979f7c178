package market

import "strings"

// Holding is one open position under sell-rule review. It is loaded from the
// holdings file and consumed read-only by the sell evaluators.
type Holding struct {
	Ticker         string
	Quantity       float64
	EntryPrice     float64
	EntryCurrency  string
	EntryDate      string // ISO date (2006-01-02)
	Strategy       string
	Notes          string
	Tags           []string
	StopOverride   *float64
	TargetOverride *float64
}

// Currency resolves the holding's currency, falling back to a ticker-suffix
// guess when the file does not say.
func (h Holding) CurrencyOrInferred() string {
	if c := strings.TrimSpace(h.EntryCurrency); c != "" {
		return strings.ToUpper(c)
	}
	return InferCurrency(h.Ticker)
}

// StrategyMentions reports whether the free-text strategy tag contains the
// given keyword (case-insensitive). Used by the failed-breakout sell rule.
func (h Holding) StrategyMentions(keyword string) bool {
	return strings.Contains(strings.ToLower(h.Strategy), strings.ToLower(keyword))
}
