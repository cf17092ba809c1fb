package domain

import (
	"regexp"
	"strings"
)

var (
	symbolPattern  = regexp.MustCompile(`^[A-Za-z0-9.-]+$`)
	numericPattern = regexp.MustCompile(`^[-+]?\d[\d,]*(\.\d+)?$`)
)

// IsWellFormedSymbol reports whether symbol has at least two characters drawn from
// letters, digits, dot and hyphen
func IsWellFormedSymbol(symbol string) bool {
	return len(symbol) >= 2 && symbolPattern.MatchString(symbol)
}

// IsQuotableSymbol reports whether symbol can be sent to a quote source.
// It is a well-formed symbol that is not a bare number.
func IsQuotableSymbol(symbol string) bool {
	return IsWellFormedSymbol(symbol) && !IsNumeric(symbol)
}

// IsNumeric reports whether s, trimmed, is a plain decimal number (thousands separators allowed)
func IsNumeric(s string) bool {
	return numericPattern.MatchString(strings.TrimSpace(s))
}
