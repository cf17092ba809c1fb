package domain

import "context"

// QuoteSource provides prices and fundamentals from an external market data provider.
// Any call may fail; GetBatch may silently omit symbols it could not resolve.
type QuoteSource interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
	GetMetrics(ctx context.Context, symbol string) (Metrics, error)
	GetBatch(ctx context.Context, symbols []string) ([]Quote, error)
}
