// Package marketdata is a thin external-collaborator client for the broker's
// market-data API: PipelineRuntime's live-mode subject polls it once per
// ticker per hop instead of replaying a CSV. Uses a stdlib net/http client
// with a fixed timeout; the concrete vendor is out of scope, only this
// polling shape is specified.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketintel/internal/model"
)

// Client polls a broker market-data HTTP API for the latest candle per
// ticker.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        zerolog.Logger
}

// New constructs a Client bound to baseURL with the given request timeout.
func New(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		log:        log.With().Str("client", "marketdata").Logger(),
	}
}

type quoteResponse struct {
	Ticker    string  `json:"ticker"`
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// LatestCandle fetches the most recent OHLCV bar for ticker.
func (c *Client) LatestCandle(ctx context.Context, ticker string) (model.Candle, error) {
	endpoint := fmt.Sprintf("%s/quote?ticker=%s", c.baseURL, url.QueryEscape(ticker))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.Candle{}, fmt.Errorf("marketdata: build request for %s: %w", ticker, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.Candle{}, fmt.Errorf("marketdata: fetch %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Candle{}, fmt.Errorf("marketdata: %s returned status %d", ticker, resp.StatusCode)
	}

	var q quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		return model.Candle{}, fmt.Errorf("marketdata: decode %s response: %w", ticker, err)
	}

	return model.Candle{
		Ticker:    ticker,
		Timestamp: time.Unix(q.Timestamp, 0).UTC(),
		Open:      q.Open,
		High:      q.High,
		Low:       q.Low,
		Close:     q.Close,
		Volume:    q.Volume,
	}, nil
}
