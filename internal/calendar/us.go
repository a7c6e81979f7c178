package calendar

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
)

// NYSE/NASDAQ full-day closures, 2024 through 2026. Years beyond the static
// table come from the override file or the merged broker cache.
var builtinUSHolidays = map[string]string{
	"20240101": "New Year's Day",
	"20240115": "Martin Luther King Jr. Day",
	"20240219": "Presidents Day",
	"20240329": "Good Friday",
	"20240527": "Memorial Day",
	"20240619": "Juneteenth",
	"20240704": "Independence Day",
	"20240902": "Labor Day",
	"20241128": "Thanksgiving",
	"20241225": "Christmas",

	"20250101": "New Year's Day",
	"20250120": "Martin Luther King Jr. Day",
	"20250217": "Presidents Day",
	"20250418": "Good Friday",
	"20250526": "Memorial Day",
	"20250619": "Juneteenth",
	"20250704": "Independence Day",
	"20250901": "Labor Day",
	"20251127": "Thanksgiving",
	"20251225": "Christmas",

	"20260101": "New Year's Day",
	"20260119": "Martin Luther King Jr. Day",
	"20260216": "Presidents Day",
	"20260403": "Good Friday",
	"20260525": "Memorial Day",
	"20260619": "Juneteenth",
	"20260703": "Independence Day (observed)",
	"20260907": "Labor Day",
	"20261126": "Thanksgiving",
	"20261225": "Christmas",
}

// LoadUSTradingCalendar returns the YYYYMMDD -> note map of US market
// holidays: the built-in table overlaid with us_trading_calendar.json from
// dataDir when present. Override values may be either a bare note string or
// an object with a "note" field; keys may carry dashes.
func LoadUSTradingCalendar(dataDir string) map[string]string {
	merged := make(map[string]string, len(builtinUSHolidays))
	for k, v := range builtinUSHolidays {
		merged[k] = v
	}
	for k, v := range loadUSOverrides(dataDir) {
		merged[k] = v
	}
	return merged
}

func loadUSOverrides(dataDir string) map[string]string {
	if dataDir == "" {
		return nil
	}
	raw, err := os.ReadFile(filepath.Join(dataDir, "us_trading_calendar.json"))
	if err != nil || !gjson.ValidBytes(raw) {
		return nil
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return nil
	}
	out := map[string]string{}
	doc.ForEach(func(key, value gjson.Result) bool {
		date := strings.ReplaceAll(key.String(), "-", "")
		if date == "" {
			return true
		}
		note := value.String()
		if value.IsObject() {
			note = value.Get("note").String()
		}
		out[date] = note
		return true
	})
	return out
}

// USHolidayLookup builds the closed-session predicate the session selector
// consumes: a date counts as a holiday when the US calendar lists it or the
// merged broker cache at cachePath marks it closed.
func USHolidayLookup(dataDir, cachePath string) func(yyyymmdd string) bool {
	table := LoadUSTradingCalendar(dataDir)
	cache := LoadPath(cachePath)
	return func(day string) bool {
		if _, ok := table[day]; ok {
			return true
		}
		return cache.IsHoliday(day)
	}
}
