package utils

import (
	"math"
	"regexp"
	"strings"
)

// OB amounts are decimal strings, max 13 integer and 5 fraction digits.
var amountPattern = regexp.MustCompile(`^\d{1,13}(\.\d{1,5})?$`)

// ValidAmount reports whether s is a well-formed OB amount string.
func ValidAmount(s string) bool {
	return amountPattern.MatchString(s)
}

// Round2 rounds x to 2 decimal places (banking-style simple round).
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// AmountEquals compares two amount strings numerically, so "10.0" equals
// "10.00". The comparison is on normalized decimal strings, never floats:
// 13+5 digit amounts exceed float64 precision, and a lossy compare here
// would let a payment through with an amount its consent never approved.
// Malformed amounts never compare equal.
func AmountEquals(a, b string) bool {
	if !ValidAmount(a) || !ValidAmount(b) {
		return false
	}
	return normalizeAmount(a) == normalizeAmount(b)
}

// normalizeAmount strips leading integer zeros and trailing fraction zeros,
// e.g. "010.50" -> "10.5".
func normalizeAmount(s string) string {
	intPart, frac, _ := strings.Cut(s, ".")
	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	frac = strings.TrimRight(frac, "0")
	if frac == "" {
		return intPart
	}
	return intPart + "." + frac
}
