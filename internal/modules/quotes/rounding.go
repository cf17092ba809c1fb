package quotes

import "github.com/shopspring/decimal"

// round2 rounds half away from zero to two decimal places
func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
