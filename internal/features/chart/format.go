package chart

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	glyphUp   = "▲"
	glyphDown = "▼"
)

// FormatClock renders HH:MM, 24-hour, zero-padded.
func FormatClock(t time.Time) string {
	return t.Format("15:04")
}

// FormatPrice renders a price with a fixed number of decimals.
func FormatPrice(p decimal.Decimal, places int32) string {
	return p.StringFixed(places)
}

// FormatHeader builds "TICKER last ▲ delta (+pct%)" in one string.
func FormatHeader(label string, s Statistics, places int32) string {
	glyph := glyphUp
	if s.Diff.IsNegative() {
		glyph = glyphDown
	}

	pct := "n/a"
	if s.HasPercent {
		sign := "+"
		if s.Percent.IsNegative() {
			sign = ""
		}
		pct = sign + s.Percent.StringFixed(2) + "%"
	}

	return fmt.Sprintf("%s %s %s %s (%s)",
		label,
		FormatPrice(s.Last, places),
		glyph,
		FormatPrice(s.Diff.Abs(), places),
		pct)
}
