package yahoo

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/multi"
	"github.com/wnjoon/go-yfinance/pkg/ticker"

	"github.com/aristath/holdings/internal/domain"
)

// NativeClient implements domain.QuoteSource using the go-yfinance library.
// The library has no context support; ctx is checked before each call.
type NativeClient struct {
	log zerolog.Logger
}

// NewNativeClient creates a new native Yahoo Finance client
func NewNativeClient(log zerolog.Logger) *NativeClient {
	return &NativeClient{
		log: log.With().Str("client", "yahoo-native").Logger(),
	}
}

// GetBatch downloads recent daily bars for symbols and quotes the last close.
// Symbols without bars are left out of the result.
func (c *NativeClient) GetBatch(ctx context.Context, symbols []string) ([]domain.Quote, error) {
	if len(symbols) == 0 {
		return []domain.Quote{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params := models.DefaultDownloadParams()
	params.Symbols = symbols
	params.Period = "5d" // Get last 5 days to ensure we have recent data
	params.Interval = "1d"

	result, err := multi.Download(symbols, &params)
	if err != nil {
		return nil, fmt.Errorf("failed to download batch quotes: %w", err)
	}

	quotes := make([]domain.Quote, 0, len(symbols))
	for _, symbol := range symbols {
		if bars, ok := result.Data[symbol]; ok && len(bars) > 0 {
			lastBar := bars[len(bars)-1]
			if lastBar.Close > 0 {
				quotes = append(quotes, domain.Quote{Symbol: symbol, Price: lastBar.Close})
			}
		} else if err, ok := result.Errors[symbol]; ok {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to get quote for symbol")
		}
	}

	return quotes, nil
}

// GetPrice returns the regular market price, falling back to the info current price
// and previous close
func (c *NativeClient) GetPrice(ctx context.Context, symbol string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	t, err := ticker.New(symbol)
	if err != nil {
		return 0, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	// Try Quote first (faster)
	quote, err := t.Quote()
	if err == nil && quote != nil && quote.RegularMarketPrice > 0 {
		return quote.RegularMarketPrice, nil
	}

	info, err := t.Info()
	if err != nil {
		return 0, fmt.Errorf("failed to get info: %w", err)
	}
	if info != nil {
		if info.CurrentPrice > 0 {
			return info.CurrentPrice, nil
		}
		if info.RegularMarketPreviousClose > 0 {
			return info.RegularMarketPreviousClose, nil
		}
	}

	return 0, fmt.Errorf("%w for %s", errNoPrice, symbol)
}

// GetMetrics returns the trailing P/E. The library exposes no earnings description.
func (c *NativeClient) GetMetrics(ctx context.Context, symbol string) (domain.Metrics, error) {
	if err := ctx.Err(); err != nil {
		return domain.Metrics{}, err
	}

	t, err := ticker.New(symbol)
	if err != nil {
		return domain.Metrics{}, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	info, err := t.Info()
	if err != nil {
		return domain.Metrics{}, fmt.Errorf("failed to get info: %w", err)
	}

	var metrics domain.Metrics
	if info != nil && info.TrailingPE > 0 {
		// Copy before taking the address; the library may reuse buffers
		trailingPE := info.TrailingPE
		metrics.PERatio = &trailingPE
	}
	return metrics, nil
}
