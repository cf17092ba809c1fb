// Package yahoo provides Yahoo Finance quote sources for the portfolio refresh.
package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/holdings/internal/domain"
)

const (
	// DefaultBaseURL is the public Yahoo Finance query host
	DefaultBaseURL = "https://query1.finance.yahoo.com"

	// Yahoo API limit: ~100 symbols per request
	batchSize = 100

	defaultMaxRetries = 3
	defaultBackoff    = time.Second

	userAgent   = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
	quoteFields = "symbol,regularMarketPrice,currentPrice,regularMarketPreviousClose,trailingPE,earningsTimestamp,epsTrailingTwelveMonths"
)

// errNoPrice is returned when a quote carries no usable price
var errNoPrice = errors.New("no price in quote")

// Client is a Yahoo Finance API client backed by the v7 quote endpoint
type Client struct {
	baseURL    string
	client     *http.Client
	maxRetries int
	backoff    time.Duration
	log        zerolog.Logger
}

// NewClient creates a new Yahoo Finance client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
		log:        log.With().Str("client", "yahoo").Logger(),
	}
}

// yahooQuoteResponse represents the response from Yahoo Finance quote API
type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []map[string]interface{} `json:"result"`
		Error  interface{}              `json:"error"`
	} `json:"quoteResponse"`
}

// retryableError marks failures worth another attempt (transport errors, 429, 5xx)
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// GetPrice returns the latest market price for symbol
func (c *Client) GetPrice(ctx context.Context, symbol string) (float64, error) {
	info, err := c.getQuoteInfo(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("failed to get quote info: %w", err)
	}

	price, ok := quotePrice(info)
	if !ok {
		return 0, fmt.Errorf("%w for %s", errNoPrice, symbol)
	}
	return price, nil
}

// GetMetrics returns the trailing P/E and an earnings description for symbol
func (c *Client) GetMetrics(ctx context.Context, symbol string) (domain.Metrics, error) {
	info, err := c.getQuoteInfo(ctx, symbol)
	if err != nil {
		return domain.Metrics{}, fmt.Errorf("failed to get quote info: %w", err)
	}
	return quoteMetrics(info), nil
}

// GetBatch fetches quotes for symbols in chunks. A failed chunk is logged and its
// symbols are left out of the result; an error is returned only when every chunk fails.
func (c *Client) GetBatch(ctx context.Context, symbols []string) ([]domain.Quote, error) {
	if len(symbols) == 0 {
		return []domain.Quote{}, nil
	}

	quotes := make([]domain.Quote, 0, len(symbols))
	var lastErr error
	failed := 0
	chunks := 0

	for i := 0; i < len(symbols); i += batchSize {
		end := i + batchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		chunks++

		batch := symbols[i:end]
		results, err := c.fetchQuotes(ctx, batch)
		if err != nil {
			c.log.Warn().Err(err).Int("batch_size", len(batch)).Msg("Failed to fetch batch quotes")
			lastErr = err
			failed++
			continue
		}

		for _, info := range results {
			symbol := getString(info, "symbol", "")
			price, ok := quotePrice(info)
			if symbol == "" || !ok {
				c.log.Debug().Str("symbol", symbol).Msg("No price in batch quote")
				continue
			}
			metrics := quoteMetrics(info)
			quotes = append(quotes, domain.Quote{
				Symbol:   symbol,
				Price:    price,
				PERatio:  metrics.PERatio,
				Earnings: metrics.Earnings,
			})
		}
	}

	if failed == chunks {
		return nil, fmt.Errorf("failed to fetch batch quotes: %w", lastErr)
	}
	return quotes, nil
}

func (c *Client) getQuoteInfo(ctx context.Context, symbol string) (map[string]interface{}, error) {
	results, err := c.fetchQuotes(ctx, []string{symbol})
	if err != nil {
		return nil, err
	}
	for _, info := range results {
		if strings.EqualFold(getString(info, "symbol", ""), symbol) {
			return info, nil
		}
	}
	return nil, fmt.Errorf("no quote data returned for symbol %s", symbol)
}

// fetchQuotes requests symbols with retries and exponential backoff
func (c *Client) fetchQuotes(ctx context.Context, symbols []string) ([]map[string]interface{}, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			waitTime := c.backoff * time.Duration(1<<uint(attempt-1))
			c.log.Warn().Err(lastErr).Int("attempt", attempt+1).Dur("wait", waitTime).Msg("Retrying")
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
			case <-time.After(waitTime):
			}
		}

		results, err := c.doQuoteRequest(ctx, symbols)
		if err == nil {
			return results, nil
		}
		lastErr = err

		var retryable *retryableError
		if !errors.As(err, &retryable) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) doQuoteRequest(ctx context.Context, symbols []string) ([]map[string]interface{}, error) {
	params := url.Values{}
	params.Add("symbols", strings.Join(symbols, ","))
	params.Add("fields", quoteFields)

	reqURL := c.baseURL + "/v7/finance/quote?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers to mimic browser
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("failed to fetch quote: %w", err)
		}
		return nil, &retryableError{fmt.Errorf("failed to fetch quote: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &retryableError{fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("yahoo finance API returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, &retryableError{err}
		}
		return nil, err
	}

	var result yahooQuoteResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if result.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("yahoo finance API error: %v", result.QuoteResponse.Error)
	}

	return result.QuoteResponse.Result, nil
}

// quotePrice picks regularMarketPrice, then currentPrice, then the previous close
func quotePrice(info map[string]interface{}) (float64, bool) {
	for _, key := range []string{"regularMarketPrice", "currentPrice", "regularMarketPreviousClose"} {
		if p := getFloat64(info, key); p != nil && *p > 0 {
			return *p, true
		}
	}
	return 0, false
}

func quoteMetrics(info map[string]interface{}) domain.Metrics {
	var metrics domain.Metrics
	if pe := getFloat64(info, "trailingPE"); pe != nil && *pe > 0 {
		metrics.PERatio = pe
	}
	metrics.Earnings = earningsDescription(info)
	return metrics
}

// earningsDescription prefers the last earnings date and falls back to trailing EPS
func earningsDescription(info map[string]interface{}) *string {
	if ts := getFloat64(info, "earningsTimestamp"); ts != nil && *ts > 0 {
		s := "Reported " + time.Unix(int64(*ts), 0).UTC().Format("02 Jan 2006")
		return &s
	}
	if eps := getFloat64(info, "epsTrailingTwelveMonths"); eps != nil {
		s := fmt.Sprintf("EPS %.2f (TTM)", *eps)
		return &s
	}
	return nil
}

func getFloat64(m map[string]interface{}, key string) *float64 {
	if val, ok := m[key]; ok && val != nil {
		switch v := val.(type) {
		case float64:
			return &v
		case int:
			f := float64(v)
			return &f
		case int64:
			f := float64(v)
			return &f
		}
	}
	return nil
}

func getString(m map[string]interface{}, key string, defaultVal string) string {
	if val, ok := m[key]; ok && val != nil {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return defaultVal
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
