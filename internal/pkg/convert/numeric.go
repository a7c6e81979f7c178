// Package convert provides tolerant numeric coercion for file boundaries.
package convert

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ToFloat64 converts loosely typed values (YAML/JSON scalars, numeric
// strings with separators) to float64. Returns 0 for unsupported types or
// parse failures.
func ToFloat64(v any) float64 {
	f, _ := ParseFloat(v)
	return f
}

// ParseFloat is ToFloat64 with an explicit ok flag, so callers can tell a
// real zero apart from a failed parse.
func ParseFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		if s == "" {
			return 0, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return 0, false
		}
		return d.InexactFloat64(), true
	default:
		return 0, false
	}
}

// OptFloat returns a pointer when v parses as a finite number, nil otherwise.
// Used for optional overrides (stop/target prices) in holdings files.
func OptFloat(v any) *float64 {
	f, ok := ParseFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
