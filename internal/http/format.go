package http

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var italian = message.NewPrinter(language.Italian)

// formatNumber renders v the Italian way with at most three fraction digits
// ("1.234,5").
func formatNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return italian.Sprint(number.Decimal(v, number.MaxFractionDigits(3)))
}
