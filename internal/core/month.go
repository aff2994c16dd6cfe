package core

import (
	"strconv"
	"time"
)

var italianShortMonths = [12]string{"gen", "feb", "mar", "apr", "mag", "giu", "lug", "ago", "set", "ott", "nov", "dic"}

// MonthLabel renders a month key the Italian way ("2025-01" -> "gen 2025").
// Keys that do not parse are returned unchanged.
func MonthLabel(month string) string {
	if !ValidMonthKey(month) {
		return month
	}
	m, _ := strconv.Atoi(month[5:])
	return italianShortMonths[m-1] + " " + month[:4]
}

// CurrentMonthKey returns the YYYY-MM key of t.
func CurrentMonthKey(t time.Time) string {
	return t.Format("2006-01")
}
