// Package calendar maintains the on-disk market-holiday cache and the
// built-in US trading calendar the session selector consults.
package calendar

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
)

// Entry is one cached calendar row. IsOpen false marks a holiday.
type Entry struct {
	Date   string `json:"-"`
	Note   string `json:"note"`
	IsOpen bool   `json:"is_open"`
}

// Cache is the YYYYMMDD-keyed holiday cache for one country.
type Cache map[string]Entry

// IsHoliday reports whether the date is a known closed session.
func (c Cache) IsHoliday(yyyymmdd string) bool {
	e, ok := c[yyyymmdd]
	return ok && !e.IsOpen
}

func cachePath(cacheDir, countryCode string) string {
	return filepath.Join(cacheDir, "holidays_"+strings.ToLower(countryCode)+".json")
}

// Load reads the cached holidays for a country from its conventional path
// under cacheDir. See LoadPath.
func Load(cacheDir, countryCode string) Cache {
	return LoadPath(cachePath(cacheDir, countryCode))
}

// LoadPath reads a holiday cache file. Missing or corrupt files yield an
// empty cache rather than an error; the engine can always fall back to the
// built-in calendar.
func LoadPath(path string) Cache {
	raw, err := os.ReadFile(path)
	if err != nil || !gjson.ValidBytes(raw) {
		return Cache{}
	}
	out := Cache{}
	gjson.ParseBytes(raw).ForEach(func(key, value gjson.Result) bool {
		date := key.String()
		if date == "" {
			return true
		}
		isOpen := true
		if v := value.Get("is_open"); v.Exists() {
			isOpen = v.Bool()
		}
		out[date] = Entry{Date: date, Note: value.Get("note").String(), IsOpen: isOpen}
		return true
	})
	return out
}

// Save writes the cache back to disk, creating the directory if needed.
func Save(cacheDir, countryCode string, entries Cache) error {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	payload, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode holiday cache: %w", err)
	}
	if err := os.WriteFile(cachePath(cacheDir, countryCode), payload, 0o644); err != nil {
		return fmt.Errorf("write holiday cache: %w", err)
	}
	return nil
}

// Merge folds broker calendar rows into the cache and persists the result.
// Upstream feeds disagree on field names, so several aliases are accepted:
// the trading date may arrive as base_date, TRD_DT or trd_dt; the note as
// base_event, evnt_nm, note or tr_mket_name; the open flag as cntr_div_cd or
// open_yn. Rows carrying a country tag other than countryCode are skipped.
// A row without an open flag is treated as closed.
func Merge(cacheDir, countryCode string, fetched []map[string]any, lg logf) Cache {
	cached := Load(cacheDir, countryCode)
	for _, item := range fetched {
		if nation := strAt(item, "natn_eng_abrv_cd"); nation != "" && !strings.EqualFold(nation, countryCode) {
			continue
		}
		date := strings.ReplaceAll(firstStr(item, "base_date", "TRD_DT", "trd_dt"), "-", "")
		if date == "" {
			continue
		}
		note := firstStr(item, "base_event", "evnt_nm", "note", "tr_mket_name")
		flag := strings.ToUpper(firstStr(item, "cntr_div_cd", "open_yn"))
		isOpen := flag == "Y" || flag == "OPEN"
		cached[date] = Entry{Date: date, Note: note, IsOpen: isOpen}
	}
	if err := Save(cacheDir, countryCode, cached); err != nil && lg != nil {
		lg("save holiday cache failed: %v", err)
	}
	return cached
}

type logf func(format string, args ...any)

func strAt(item map[string]any, key string) string {
	if v, ok := item[key]; ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func firstStr(item map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := strAt(item, k); s != "" {
			return s
		}
	}
	return ""
}
