// Package core provides the meter reading domain.
//
// This file contains the lenient number parsing used by form input and CSV
// import, and the comma-decimal formatting used by CSV export.
package core

import (
	"math"
	"strconv"
	"strings"
)

// ParseReading parses a user-typed reading.
//
// Both dot (12.5) and comma (12,5) are accepted as decimal separator; only the
// first comma is treated as one. Like a spreadsheet cell, the longest numeric
// prefix is used, so "12,5 kWh" reads as 12.5. Empty, unparsable or non-finite
// input yields 0 and ok=false.
//
// Examples:
//
//	ParseReading("12.5")   -> 12.5, true
//	ParseReading("12,5")   -> 12.5, true
//	ParseReading(" 7 ")    -> 7, true
//	ParseReading("abc")    -> 0, false
//	ParseReading("")       -> 0, false
func ParseReading(s string) (float64, bool) {
	s = strings.TrimSpace(strings.Replace(s, ",", ".", 1))
	prefix := numericPrefix(s)
	if prefix == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(prefix, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// numericPrefix returns the longest leading substring of s shaped like
// [+-]digits[.digits][e[+-]digits].
func numericPrefix(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		frac := 0
		for j < len(s) && isDigit(s[j]) {
			j++
			frac++
		}
		if digits > 0 || frac > 0 {
			i = j
			digits += frac
		}
	}
	if digits == 0 {
		return ""
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		exp := 0
		for j < len(s) && isDigit(s[j]) {
			j++
			exp++
		}
		if exp > 0 {
			i = j
		}
	}
	return strings.TrimSuffix(s[:i], ".")
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// FormatCSVNumber renders v with the shortest exact representation and a
// comma as decimal separator (12.5 -> "12,5").
func FormatCSVNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return strings.Replace(strconv.FormatFloat(v, 'f', -1, 64), ".", ",", 1)
}
