package domain

import "strings"

// Exchange identifies the Indian exchange a holding is listed on
type Exchange string

const (
	ExchangeNSE Exchange = "NSE"
	ExchangeBSE Exchange = "BSE"
)

// ParseExchange returns BSE only for the value "BSE", surrounding whitespace ignored.
// Anything else, including lower-case "bse", is NSE.
func ParseExchange(raw string) Exchange {
	if strings.TrimSpace(raw) == string(ExchangeBSE) {
		return ExchangeBSE
	}
	return ExchangeNSE
}

// YahooSuffix returns the ticker suffix used for this exchange in generated symbols.
// BSE symbols are returned bare.
func (e Exchange) YahooSuffix() string {
	if e == ExchangeBSE {
		return ""
	}
	return ".NS"
}

// Quote is a single symbol's result from a batch lookup.
// PERatio and Earnings are nil when the source did not supply them.
type Quote struct {
	Symbol   string   `json:"symbol"`
	Price    float64  `json:"price"`
	PERatio  *float64 `json:"pe_ratio,omitempty"`
	Earnings *string  `json:"earnings,omitempty"`
}

// Metrics holds fundamentals for a single symbol
type Metrics struct {
	PERatio  *float64 `json:"pe_ratio,omitempty"`
	Earnings *string  `json:"earnings,omitempty"`
}

// NormalizeSymbol trims and upper-cases a ticker for comparison
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
