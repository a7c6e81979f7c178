// Package format renders numbers for report output.
package format

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

// Float renders v with thousands separators and the given number of decimal
// digits. NaN and Inf render as "-" so missing data never leaks into reports.
func Float(v float64, digits int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return humanize.CommafWithDigits(roundTo(v, digits), digits)
}

// Percent renders a fraction (0.031 -> "3.1%").
func Percent(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", v*100)
}

// SignedPercent renders a fraction with an explicit sign (0.031 -> "+3.1%").
func SignedPercent(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return fmt.Sprintf("%+.1f%%", v*100)
}

func roundTo(v float64, digits int) float64 {
	if digits <= 0 {
		return math.Round(v)
	}
	pow := math.Pow10(digits)
	return math.Round(v*pow) / pow
}
