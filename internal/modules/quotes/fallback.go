package quotes

import (
	"math/rand"
	"sync"
	"time"

	"github.com/aristath/holdings/internal/domain"
)

const (
	// defaultBasePrice is used for symbols without a documented base price
	defaultBasePrice = 1000.0
	// maxJitter bounds the synthetic perturbation as a fraction of the base price
	maxJitter = 0.05
)

// basePrices are reference prices for well-known NSE listings, keyed by bare ticker
var basePrices = map[string]float64{
	"RELIANCE":   2850,
	"TCS":        3900,
	"HDFCBANK":   1650,
	"INFY":       1520,
	"ICICIBANK":  1250,
	"HINDUNILVR": 2450,
	"ITC":        430,
	"SBIN":       800,
	"BHARTIARTL": 1550,
	"KOTAKBANK":  1750,
	"LT":         3500,
	"AXISBANK":   1150,
	"ASIANPAINT": 2900,
	"MARUTI":     12500,
	"BAJFINANCE": 7000,
	"BAJAJ-AUTO": 9500,
	"WIPRO":      480,
	"HCLTECH":    1650,
	"TECHM":      1600,
	"SUNPHARMA":  1800,
	"TATAMOTORS": 950,
	"TATASTEEL":  150,
	"JSWSTEEL":   950,
	"TITAN":      3400,
	"ULTRACEMCO": 11000,
	"NESTLEIND":  2400,
	"POWERGRID":  320,
	"NTPC":       360,
	"ADANIENT":   2900,
	"ONGC":       270,
}

// SyntheticSource produces placeholder prices when no real quote is available
type SyntheticSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSyntheticSource creates a synthetic price source seeded with seed
func NewSyntheticSource(seed int64) *SyntheticSource {
	return &SyntheticSource{rng: rand.New(rand.NewSource(seed))}
}

// NewTimeSeededSyntheticSource creates a synthetic price source seeded from the clock
func NewTimeSeededSyntheticSource() *SyntheticSource {
	return NewSyntheticSource(time.Now().UnixNano())
}

// BasePrice returns the reference price for symbol and whether it is a known listing
func BasePrice(symbol string) (float64, bool) {
	p, ok := basePrices[bareTicker(symbol)]
	if !ok {
		return defaultBasePrice, false
	}
	return p, true
}

// Price returns the base price for symbol perturbed by at most ±5%. It is always positive.
func (s *SyntheticSource) Price(symbol string) float64 {
	base, _ := BasePrice(symbol)

	s.mu.Lock()
	jitter := (s.rng.Float64()*2 - 1) * maxJitter
	s.mu.Unlock()

	return base * (1 + jitter)
}

// bareTicker strips exchange suffixes such as .NS and .BO
func bareTicker(symbol string) string {
	s := domain.NormalizeSymbol(symbol)
	for _, suffix := range []string{".NS", ".BO"} {
		if len(s) > len(suffix) && s[len(s)-len(suffix):] == suffix {
			return s[:len(s)-len(suffix)]
		}
	}
	return s
}
