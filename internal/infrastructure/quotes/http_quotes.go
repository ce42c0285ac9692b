package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// HTTPQuoteSource asks the market-data service for the current price of a
// symbol: GET {baseURL}/api/price/{symbol} -> {"symbol": "TCS", "price": 3500.5}.
type HTTPQuoteSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPQuoteSource(baseURL string, timeout time.Duration) *HTTPQuoteSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPQuoteSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (q *HTTPQuoteSource) GetCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	path := "/api/price/" + url.PathEscape(symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.baseURL+path, nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := q.client.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, err
	}
	if resp.StatusCode >= 400 {
		return decimal.Zero, fmt.Errorf("quote API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result struct {
		Symbol string           `json:"symbol"`
		Price  *decimal.Decimal `json:"price"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return decimal.Zero, fmt.Errorf("decode quote for %s: %w", symbol, err)
	}
	if result.Price == nil || !result.Price.IsPositive() {
		return decimal.Zero, fmt.Errorf("no price for %s", symbol)
	}
	return *result.Price, nil
}
